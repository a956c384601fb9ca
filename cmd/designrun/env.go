package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/designrun/pkg/browser"
	"github.com/entrhq/designrun/pkg/config"
	"github.com/entrhq/designrun/pkg/run"
)

// commonFlags are shared by every subcommand that touches run state.
type commonFlags struct {
	configPath string
	runsDir    string
	runID      string
	stepID     string
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVar(&f.configPath, "config", config.DefaultPath, "Path to the config file")
	fs.StringVar(&f.runsDir, "runs-dir", "", "Runs directory (overrides DESIGN_RUNS_DIR and config)")
	fs.StringVar(&f.runID, "run", "", "Run identifier")
	fs.StringVar(&f.stepID, "step", "", "Step identifier (e.g. S01_dna)")
}

// loadEnv resolves config and the run manager from the common flags.
func loadEnv(f *commonFlags) (*config.Config, *run.Manager, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	mgr := run.NewManager(run.ResolveRunsDir(f.runsDir, cfg.RunsDir))
	return cfg, mgr, nil
}

func requireRun(f *commonFlags) error {
	if f.runID == "" {
		return usageErrorf("-run is required")
	}
	return nil
}

func requireRunAndStep(f *commonFlags) error {
	if err := requireRun(f); err != nil {
		return err
	}
	if f.stepID == "" {
		return usageErrorf("-step is required")
	}
	return nil
}

// browserFlags configure how operator commands obtain a browser.
type browserFlags struct {
	headed     bool
	profileDir string
	connect    string
	timeoutS   int
}

func addBrowserFlags(fs *flag.FlagSet, f *browserFlags) {
	fs.BoolVar(&f.headed, "headed", false, "Run the browser with a visible window")
	fs.StringVar(&f.profileDir, "profile-dir", "", "Persistent browser profile directory (overrides config)")
	fs.StringVar(&f.connect, "connect", "", "CDP endpoint of a running Chrome, e.g. http://localhost:9222")
	fs.IntVar(&f.timeoutS, "timeout-s", 300, "Generation wait timeout in seconds")
}

func (f *browserFlags) timeout() time.Duration {
	return time.Duration(f.timeoutS) * time.Second
}

// openSession initializes playwright, starts a session per the flags and
// config, and navigates it to url. The caller owns shutdown.
func openSession(cfg *config.Config, bf *browserFlags, url string) (*browser.SessionManager, *browser.Session, error) {
	manager := browser.NewSessionManager()
	if err := manager.Initialize(); err != nil {
		return nil, nil, err
	}

	opts := browser.SessionOptions{
		Headless: cfg.Browser.Headless && !bf.headed,
		Viewport: &browser.Viewport{
			Width:  cfg.Browser.ViewportWidth,
			Height: cfg.Browser.ViewportHeight,
		},
		ProfileDir: firstNonEmpty(bf.profileDir, cfg.Browser.ProfileDir),
		ConnectURL: firstNonEmpty(bf.connect, cfg.Browser.ConnectURL),
		MatchURL:   url,
	}

	sess, err := manager.StartSession("designrun", opts)
	if err != nil {
		_ = manager.Shutdown()
		return nil, nil, err
	}
	if err := sess.Navigate(url, browser.NavigateOptions{WaitUntil: "domcontentloaded"}); err != nil {
		_ = manager.Shutdown()
		return nil, nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	return manager, sess, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// stepUserText reads the brief recorded by set-input.
func stepUserText(mgr *run.Manager, runID, stepID string) (string, error) {
	path := filepath.Join(mgr.StepDir(runID, stepID), "input", "user_text.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("step has no input yet (run set-input first): %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// stepOutput reads one of the normalized analysis outputs, returning
// empty when the file doesn't exist.
func stepOutput(mgr *run.Manager, runID, stepID, name string) string {
	path := filepath.Join(mgr.StepDir(runID, stepID), "gpt", "outputs", name)
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
