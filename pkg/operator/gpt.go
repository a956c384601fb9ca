package operator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/designrun/pkg/browser"
	"github.com/entrhq/designrun/pkg/logging"
)

// chatGPT login wall labels, checked before touching the composer.
var gptLoginLabels = []string{"Log in", "Sign up", "Welcome back"}

// assistantMessageSelectors locate the last assistant message when the
// Copy button path fails. Ordered most specific first.
var assistantMessageSelectors = []string{
	"[data-message-author-role='assistant']",
	"article",
	"[role='article']",
}

// GPTOptions configures a chat analysis run.
type GPTOptions struct {
	// Prompt is the full analysis prompt, typically assembled from the
	// step's user text and reference labels.
	Prompt string

	// Images are local paths of reference images to attach.
	Images []string

	// OutDir receives raw.txt, blocks.json, extracted.json and
	// result.json (plus debug artifacts on failure).
	OutDir string

	// Timeout bounds the wait for generation to finish.
	Timeout time.Duration

	// LoginWait, when nonzero, is how long to wait for a human to get
	// past a login wall in a headed session before giving up.
	LoginWait time.Duration
}

// GPTResult summarizes a completed chat analysis.
type GPTResult struct {
	Raw           string   `json:"-"`
	RawChars      int      `json:"raw_chars"`
	BlocksCount   int      `json:"blocks_count"`
	ExtractedKeys []string `json:"extracted_keys"`
	ChatURL       string   `json:"chat_url"`
	SendMethod    string   `json:"send_method"`
	CopySource    string   `json:"copy_source"`
	Done          DoneInfo `json:"done"`
	StartedMs     int64    `json:"started_ms"`
	FinishedMs    int64    `json:"finished_ms"`
}

// GPTOperator drives a chat UI through a full analysis round trip:
// submit prompt and references, wait for generation, capture the
// response text, and persist the parsed artifacts.
type GPTOperator struct {
	logger *logging.Logger
}

// NewGPTOperator creates a chat operator that logs to the given logger.
func NewGPTOperator(logger *logging.Logger) *GPTOperator {
	return &GPTOperator{logger: logger}
}

// Run executes the full prompt-and-capture cycle against an already
// navigated session. Artifacts are written even on partial failure so a
// run can be inspected and re-exported.
func (o *GPTOperator) Run(sess *browser.Session, opts GPTOptions) (*GPTResult, error) {
	page := sess.Page
	result := &GPTResult{StartedMs: nowMs()}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	if err := o.passAuthGate(page, opts.LoginWait); err != nil {
		saveDebug(page, opts.OutDir)
		return nil, err
	}

	composer, err := findComposer(page)
	if err != nil {
		saveDebug(page, opts.OutDir)
		return nil, fmt.Errorf("failed to locate composer: %w", err)
	}

	if len(opts.Images) > 0 {
		if err := attachImages(page, opts.Images); err != nil {
			o.logger.Warnf("Attaching references failed, continuing without: %v", err)
		}
	}

	if err := composer.Click(); err != nil {
		saveDebug(page, opts.OutDir)
		return nil, fmt.Errorf("failed to focus composer: %w", err)
	}
	clearComposer(page, composer)
	if err := composer.PressSequentially(opts.Prompt, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(1),
	}); err != nil {
		saveDebug(page, opts.OutDir)
		return nil, fmt.Errorf("failed to type prompt: %w", err)
	}

	method, err := clickSend(page, composer)
	if err != nil {
		saveDebug(page, opts.OutDir)
		return nil, err
	}
	result.SendMethod = method
	o.logger.Infof("Prompt submitted via %s, waiting up to %s", method, opts.Timeout)

	result.Done = waitSeenThenGone(page, func() bool { return gptBusy(page) }, opts.Timeout)
	if result.Done.Reason == "timeout" && !result.Done.SeenBusy {
		o.logger.Warnf("Never observed a stop button; capturing whatever is on the page")
	}

	return o.capture(sess, opts.OutDir, result)
}

// ReExport re-captures the last assistant response from an existing
// conversation without submitting anything new. The page is given a
// short settle window first.
func (o *GPTOperator) ReExport(sess *browser.Session, outDir string) (*GPTResult, error) {
	result := &GPTResult{StartedMs: nowMs()}
	sess.Page.WaitForTimeout(10000)
	return o.capture(sess, outDir, result)
}

func (o *GPTOperator) passAuthGate(page playwright.Page, loginWait time.Duration) error {
	if !authGateVisible(page, gptLoginLabels) {
		return nil
	}
	if loginWait <= 0 {
		return fmt.Errorf("login wall detected and no login wait configured")
	}
	o.logger.Infof("Login wall detected, waiting up to %s for manual sign-in", loginWait)
	deadline := time.Now().Add(loginWait)
	for time.Now().Before(deadline) {
		if !authGateVisible(page, gptLoginLabels) {
			return nil
		}
		page.WaitForTimeout(float64(pollInterval.Milliseconds()))
	}
	return fmt.Errorf("login wall still present after %s", loginWait)
}

// capture reads the response text, extracts its blocks and writes the
// artifact set.
func (o *GPTOperator) capture(sess *browser.Session, outDir string, result *GPTResult) (*GPTResult, error) {
	page := sess.Page

	raw, source, err := copyLastAssistant(page)
	if err != nil {
		saveDebug(page, outDir)
		return nil, fmt.Errorf("failed to capture response: %w", err)
	}
	result.Raw = raw
	result.RawChars = len(raw)
	result.CopySource = source
	result.ChatURL = page.URL()
	sess.UpdateLastUsed()

	blocks := ExtractCodeBlocks(raw)
	extracted := ExtractPromptBlocks(raw)
	result.BlocksCount = len(blocks)
	result.ExtractedKeys = sortedKeys(extracted)
	result.FinishedMs = nowMs()

	if err := writeGPTArtifacts(outDir, raw, blocks, extracted, result); err != nil {
		return nil, err
	}
	o.logger.Infof("Captured %d chars, %d blocks, keys %v via %s", result.RawChars, result.BlocksCount, result.ExtractedKeys, source)
	return result, nil
}

// gptBusy reports whether generation is in flight, detected by the stop
// button the chat UI shows while streaming.
func gptBusy(page playwright.Page) bool {
	for _, selector := range []string{"button[data-testid='stop-button']", "button[aria-label*='Stop']"} {
		loc := page.Locator(selector)
		if count, err := loc.Count(); err == nil && count > 0 {
			if visible, err := loc.First().IsVisible(); err == nil && visible {
				return true
			}
		}
	}
	return false
}

// copyLastAssistant captures the last assistant message, preferring the
// UI's own Copy button (exact markdown via clipboard) and falling back
// to reading the message DOM.
func copyLastAssistant(page playwright.Page) (string, string, error) {
	copyButtons := page.Locator("button[aria-label*='Copy']")
	if btn, ok := lastVisible(copyButtons); ok {
		if err := btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err == nil {
			page.WaitForTimeout(500)
			if text, err := readClipboard(page); err == nil && strings.TrimSpace(text) != "" {
				return text, "copy_button", nil
			}
		}
	}

	for _, selector := range assistantMessageSelectors {
		loc := page.Locator(selector)
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		text, err := loc.Nth(count - 1).InnerText()
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		return text, "dom_" + selector, nil
	}

	return "", "", fmt.Errorf("no assistant response found on page")
}

func writeGPTArtifacts(dir string, raw string, blocks []CodeBlock, extracted map[string]string, result *GPTResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "raw.txt"), []byte(raw), 0644); err != nil {
		return fmt.Errorf("failed to write raw response: %w", err)
	}
	if err := writeJSONFile(filepath.Join(dir, "blocks.json"), blocks); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(dir, "extracted.json"), extracted); err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(dir, "result.json"), result)
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
