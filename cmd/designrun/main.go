// Package main provides the designrun CLI, a pipeline driver that turns
// reference screenshots and a short brief into generated design
// candidates. A run is a folder of numbered steps; each subcommand
// either mutates run state on disk or drives one of the web operators
// against a browser session.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
)

const version = "0.1.0"

// errUsage marks command-line errors so main can exit 2 instead of 1.
var errUsage = errors.New("usage error")

func usageErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{errUsage}, args...)...)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init-run":
		err = cmdInitRun(args)
	case "add-step":
		err = cmdAddStep(args)
	case "set-input":
		err = cmdSetInput(args)
	case "add-references":
		err = cmdAddReferences(args)
	case "run-gpt":
		err = cmdRunGPT(args)
	case "reexport-gpt":
		err = cmdReexportGPT(args)
	case "run-aura":
		err = cmdRunAura(args)
	case "run-variant":
		err = cmdRunVariant(args)
	case "export-variant":
		err = cmdExportVariant(args)
	case "version", "-version", "--version":
		fmt.Printf("designrun v%s\n", version)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "designrun %s: %v\n", cmd, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `designrun - generative design pipeline driver

Usage: designrun <command> [options]

Run state:
  init-run        Create a run folder with its manifest and event log
  add-step        Append a numbered step to a run
  set-input       Record a step's brief text and mode (DNA|VARIATIONS|FEEDBACK)
  add-references  Copy reference images (max 2, under 5MB each) into a step

Operators:
  run-gpt         Submit the analysis prompt and capture the structured response
  reexport-gpt    Re-capture the last response without submitting anything
  run-aura        Generate a page in the visual editor and export HTML + screenshot
  run-variant     Fan a prompt out into variants and capture each shared page
  export-variant  Re-capture a previous variant round from its recorded ids

Run 'designrun <command> -h' for command options.

Environment:
  DESIGN_RUNS_DIR  Overrides the configured runs directory
  OPENAI_API_KEY   API key for 'run-gpt -api' (name configurable)
`)
}

// printJSON writes the command result to stdout as indented JSON, the
// contract scripting callers rely on.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// newFlagSet builds a flag set that prints its own defaults on -h but
// doesn't exit the process, so usage errors flow through errUsage.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		return usageErrorf("%v", err)
	}
	return nil
}
