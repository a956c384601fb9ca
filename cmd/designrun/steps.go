package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/entrhq/designrun/pkg/run"
)

func cmdInitRun(args []string) error {
	fs := newFlagSet("init-run")
	var common commonFlags
	addCommonFlags(fs, &common)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	_, mgr, err := loadEnv(&common)
	if err != nil {
		return err
	}

	runID := common.runID
	if runID == "" {
		runID = fmt.Sprintf("run_%d", time.Now().UnixMilli())
	}
	runDir, err := mgr.InitRun(runID)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"run_id": runID, "run_dir": runDir})
}

func cmdAddStep(args []string) error {
	fs := newFlagSet("add-step")
	var common commonFlags
	addCommonFlags(fs, &common)
	name := fs.String("name", "", "Step name, appended to the step number (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireRun(&common); err != nil {
		return err
	}
	if *name == "" {
		return usageErrorf("-name is required")
	}

	_, mgr, err := loadEnv(&common)
	if err != nil {
		return err
	}
	stepID, err := mgr.AddStep(common.runID, *name)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"step_id":  stepID,
		"step_dir": mgr.StepDir(common.runID, stepID),
	})
}

func cmdSetInput(args []string) error {
	fs := newFlagSet("set-input")
	var common commonFlags
	addCommonFlags(fs, &common)
	mode := fs.String("mode", "", "Step mode: DNA, VARIATIONS or FEEDBACK (required)")
	userText := fs.String("user-text", "", "Brief text for the step")
	userTextFile := fs.String("user-text-file", "", "File containing the brief text")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireRunAndStep(&common); err != nil {
		return err
	}
	if *mode == "" {
		return usageErrorf("-mode is required")
	}
	if (*userText == "") == (*userTextFile == "") {
		return usageErrorf("exactly one of -user-text and -user-text-file is required")
	}

	text := *userText
	if *userTextFile != "" {
		data, err := os.ReadFile(*userTextFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", *userTextFile, err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return usageErrorf("brief text is empty")
	}

	_, mgr, err := loadEnv(&common)
	if err != nil {
		return err
	}
	if err := mgr.SetStepInput(common.runID, common.stepID, text, *mode); err != nil {
		return err
	}
	return printJSON(map[string]string{
		"run_id":  common.runID,
		"step_id": common.stepID,
		"mode":    strings.ToUpper(strings.TrimSpace(*mode)),
	})
}

func cmdAddReferences(args []string) error {
	fs := newFlagSet("add-references")
	var common commonFlags
	addCommonFlags(fs, &common)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireRunAndStep(&common); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return usageErrorf("at least one image path is required")
	}

	_, mgr, err := loadEnv(&common)
	if err != nil {
		return err
	}
	if err := mgr.AddReferences(common.runID, common.stepID, paths, nil); err != nil {
		return err
	}
	copied, err := mgr.ReferenceImages(common.runID, common.stepID)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"run_id":     common.runID,
		"step_id":    common.stepID,
		"references": copied,
		"count":      len(copied),
	})
}

// resolveMode reads and validates the step mode against the modes a
// command accepts.
func resolveMode(mgr *run.Manager, runID, stepID string, allowed ...string) (string, error) {
	mode, err := mgr.StepMode(runID, stepID)
	if err != nil {
		return "", fmt.Errorf("step has no mode yet (run set-input first): %w", err)
	}
	for _, a := range allowed {
		if mode == a {
			return mode, nil
		}
	}
	return "", fmt.Errorf("step mode %s is not valid here (want %s)", mode, strings.Join(allowed, " or "))
}
