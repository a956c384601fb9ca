package operator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/designrun/pkg/artifact"
	"github.com/entrhq/designrun/pkg/browser"
	"github.com/entrhq/designrun/pkg/capture"
	"github.com/entrhq/designrun/pkg/logging"
)

const (
	// editorURLFragment marks the redirect into a freshly created
	// project after a cold-start prompt.
	editorURLFragment = "aura.build/editor/"

	// generatingText is the busy indicator the editor shows while
	// producing code.
	generatingText = "Generating code..."

	editorRedirectTimeout = 60 * time.Second
	postGenerateSettle    = 5 * time.Second
)

var auraLoginLabels = []string{"Log in", "Sign in", "Sign up"}

// AuraMode selects how the operator drives the editor.
type AuraMode string

const (
	// AuraModeDNA starts a new project from the landing page prompt.
	AuraModeDNA AuraMode = "DNA"

	// AuraModeFeedback submits edit instructions inside an existing
	// project's sidebar chat.
	AuraModeFeedback AuraMode = "FEEDBACK"
)

// AuraOptions configures a generation round against the editor.
type AuraOptions struct {
	Mode    AuraMode
	Prompt  string
	Images  []string
	OutDir  string
	Timeout time.Duration
}

// AuraResult summarizes a completed generation round.
type AuraResult struct {
	Mode        AuraMode `json:"mode"`
	ProjectURL  string   `json:"project_url"`
	ExportPath  string   `json:"export_path,omitempty"`
	CapturePath string   `json:"capture_path,omitempty"`
	PageTitle   string   `json:"page_title,omitempty"`
	Done        DoneInfo `json:"done"`
	StartedMs   int64    `json:"started_ms"`
	FinishedMs  int64    `json:"finished_ms"`
}

// AuraOperator drives the visual editor: submit a prompt (new project or
// feedback on an existing one), wait for generation, then export the
// HTML and a full-page screenshot.
type AuraOperator struct {
	logger *logging.Logger
}

// NewAuraOperator creates an editor operator that logs to the given logger.
func NewAuraOperator(logger *logging.Logger) *AuraOperator {
	return &AuraOperator{logger: logger}
}

// Run executes one generation round. The session must already be
// navigated: to the landing page for DNA mode, to the project URL for
// FEEDBACK mode.
func (o *AuraOperator) Run(sess *browser.Session, opts AuraOptions) (*AuraResult, error) {
	page := sess.Page
	result := &AuraResult{Mode: opts.Mode, StartedMs: nowMs()}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	if authGateVisible(page, auraLoginLabels) {
		saveDebug(page, opts.OutDir)
		return nil, fmt.Errorf("editor is behind a login wall; sign in with a persistent profile first")
	}

	if opts.Mode == AuraModeFeedback {
		if err := o.ensureSidebarVisible(page); err != nil {
			o.logger.Warnf("Could not confirm sidebar visibility: %v", err)
		}
	}

	composer, err := findComposer(page)
	if err != nil {
		saveDebug(page, opts.OutDir)
		return nil, fmt.Errorf("failed to locate prompt input: %w", err)
	}
	if err := fillViaClipboard(page, composer, opts.Prompt); err != nil {
		saveDebug(page, opts.OutDir)
		return nil, err
	}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(opts.OutDir, "prompt_used.txt"), []byte(opts.Prompt), 0644); err != nil {
		return nil, fmt.Errorf("failed to record prompt: %w", err)
	}

	if len(opts.Images) > 0 {
		if err := attachImages(page, opts.Images); err != nil {
			o.logger.Warnf("Attaching references failed, continuing without: %v", err)
		}
	}

	if _, err := clickSend(page, composer); err != nil {
		saveDebug(page, opts.OutDir)
		return nil, err
	}

	if opts.Mode == AuraModeDNA {
		url, err := sess.WaitForURLContains(editorURLFragment, editorRedirectTimeout, pollInterval)
		if err != nil {
			saveDebug(page, opts.OutDir)
			return nil, fmt.Errorf("editor redirect never happened: %w", err)
		}
		result.ProjectURL = url
		if err := os.WriteFile(filepath.Join(opts.OutDir, "url.txt"), []byte(url), 0644); err != nil {
			return nil, fmt.Errorf("failed to record project url: %w", err)
		}
		o.logger.Infof("Project created at %s", url)
	} else {
		result.ProjectURL = page.URL()
	}

	result.Done = waitSeenThenGone(page, func() bool { return auraGenerating(page) }, opts.Timeout)
	if result.Done.Reason == "timeout" {
		saveDebug(page, opts.OutDir)
		if !result.Done.SeenBusy {
			return nil, fmt.Errorf("generation never started within %s", opts.Timeout)
		}
		return nil, fmt.Errorf("generation still running after %s", opts.Timeout)
	}
	page.WaitForTimeout(float64(postGenerateSettle.Milliseconds()))

	exportPath, title, err := o.exportHTML(page, opts.OutDir)
	if err != nil {
		o.logger.Warnf("HTML export failed: %v", err)
		saveDebug(page, opts.OutDir)
	} else {
		result.ExportPath = exportPath
		result.PageTitle = title
	}

	capturePath, err := o.capturePreview(page, opts.OutDir)
	if err != nil {
		o.logger.Warnf("Preview capture failed: %v", err)
	} else {
		result.CapturePath = capturePath
	}

	result.FinishedMs = nowMs()
	sess.UpdateLastUsed()
	if err := writeJSONFile(filepath.Join(opts.OutDir, "result.json"), result); err != nil {
		return nil, err
	}
	return result, nil
}

// ensureSidebarVisible opens the chat sidebar if the project loaded with
// it collapsed.
func (o *AuraOperator) ensureSidebarVisible(page playwright.Page) error {
	if count, err := page.Locator("aside textarea, [class*='sidebar'] textarea").Count(); err == nil && count > 0 {
		return nil
	}
	for _, name := range []string{"Chat", "Show sidebar", "Toggle sidebar"} {
		loc := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: name})
		if count, err := loc.Count(); err == nil && count > 0 {
			if err := loc.First().Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err == nil {
				page.WaitForTimeout(500)
				return nil
			}
		}
	}
	return fmt.Errorf("no sidebar toggle found")
}

func auraGenerating(page playwright.Page) bool {
	loc := page.GetByText(generatingText)
	if count, err := loc.Count(); err == nil && count > 0 {
		if visible, err := loc.First().IsVisible(); err == nil && visible {
			return true
		}
	}
	return false
}

// exportHTML walks the Export menu, copies the generated HTML via the
// clipboard, sanitizes it and writes it under exports/.
func (o *AuraOperator) exportHTML(page playwright.Page, outDir string) (string, string, error) {
	if err := o.clickNamedButton(page, "Export"); err != nil {
		return "", "", err
	}
	page.WaitForTimeout(500)
	if err := o.clickNamedButton(page, "Copy HTML"); err != nil {
		return "", "", err
	}
	page.WaitForTimeout(500)

	raw, err := readClipboard(page)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", "", fmt.Errorf("clipboard was empty after Copy HTML")
	}

	cleaned, err := artifact.Sanitize(raw)
	if err != nil {
		return "", "", fmt.Errorf("failed to sanitize export: %w", err)
	}

	exportsDir := filepath.Join(outDir, "exports")
	if err := os.MkdirAll(exportsDir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create exports dir: %w", err)
	}
	path := filepath.Join(exportsDir, fmt.Sprintf("export_%d.html", nowMs()))
	if err := os.WriteFile(path, []byte(cleaned.HTML), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, cleaned.Title, nil
}

func (o *AuraOperator) clickNamedButton(page playwright.Page, name string) error {
	loc := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: name})
	if count, err := loc.Count(); err == nil && count > 0 {
		if err := loc.First().Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err == nil {
			return nil
		}
	}
	// Menu items sometimes render as plain text nodes.
	text := page.GetByText(name)
	if count, err := text.Count(); err == nil && count > 0 {
		if err := text.First().Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no clickable %q control found", name)
}

// capturePreview screenshots the generated page with the chat sidebar
// hidden so the capture shows only the design.
func (o *AuraOperator) capturePreview(page playwright.Page, outDir string) (string, error) {
	capturesDir := filepath.Join(outDir, "captures")
	if err := os.MkdirAll(capturesDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create captures dir: %w", err)
	}
	path := filepath.Join(capturesDir, fmt.Sprintf("screenshot_%d.png", nowMs()))

	_, _ = page.Evaluate(jsHideSidebar)
	defer func() { _, _ = page.Evaluate(jsShowSidebar) }()

	if _, err := capture.FullPage(page, path); err != nil {
		return "", err
	}
	return path, nil
}

const jsHideSidebar = `() => {
  for (const el of document.querySelectorAll("aside, [class*='sidebar']")) {
    el.dataset.prevDisplay = el.style.display || '';
    el.style.display = 'none';
  }
}`

const jsShowSidebar = `() => {
  for (const el of document.querySelectorAll("aside, [class*='sidebar']")) {
    if ('prevDisplay' in el.dataset) {
      el.style.display = el.dataset.prevDisplay;
      delete el.dataset.prevDisplay;
    }
  }
}`
