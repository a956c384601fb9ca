package operator

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// pollInterval is how often busy indicators and URL changes are sampled.
const pollInterval = 750 * time.Millisecond

// composerCandidates are checked in order when hunting for the prompt
// input. Only the first few matches of each selector are inspected.
var composerCandidates = []string{
	"textarea",
	"[role='textbox']",
	"[contenteditable='true']",
}

const composerScanLimit = 6

// DoneInfo records how a wait for generation completion ended.
type DoneInfo struct {
	Reason   string `json:"reason"`
	SeenBusy bool   `json:"seen_busy"`
	WaitedMs int64  `json:"waited_ms"`
}

// authGateVisible reports whether the page is showing a login wall,
// detected as any visible link or button carrying one of the given
// labels.
func authGateVisible(page playwright.Page, labels []string) bool {
	for _, label := range labels {
		for _, role := range []playwright.AriaRole{*playwright.AriaRoleLink, *playwright.AriaRoleButton} {
			loc := page.GetByRole(role, playwright.PageGetByRoleOptions{Name: label})
			count, err := loc.Count()
			if err != nil || count == 0 {
				continue
			}
			if visible, err := loc.First().IsVisible(); err == nil && visible {
				return true
			}
		}
	}
	return false
}

// findComposer returns the first visible prompt input on the page.
func findComposer(page playwright.Page) (playwright.Locator, error) {
	for _, selector := range composerCandidates {
		loc := page.Locator(selector)
		count, err := loc.Count()
		if err != nil {
			continue
		}
		if count > composerScanLimit {
			count = composerScanLimit
		}
		for i := 0; i < count; i++ {
			candidate := loc.Nth(i)
			if visible, err := candidate.IsVisible(); err == nil && visible {
				return candidate, nil
			}
		}
	}
	return nil, fmt.Errorf("no visible prompt input found")
}

// clearComposer empties the prompt input so drafts or placeholder text
// left from a previous visit do not prepend the submitted prompt.
// Fill does not work on contenteditable composers, so fall back to
// select-all plus backspace.
func clearComposer(page playwright.Page, composer playwright.Locator) {
	if err := composer.Fill(""); err == nil {
		return
	}
	if err := composer.Click(); err != nil {
		return
	}
	if err := page.Keyboard().Press("ControlOrMeta+a"); err != nil {
		return
	}
	_ = page.Keyboard().Press("Backspace")
}

// findFileInput returns a file input suitable for image upload. Image
// inputs are preferred; hidden inputs are acceptable since upload
// widgets routinely hide the real element.
func findFileInput(page playwright.Page) (playwright.Locator, error) {
	for _, selector := range []string{"input[type='file'][accept*='image']", "input[type='file']"} {
		loc := page.Locator(selector)
		count, err := loc.Count()
		if err != nil {
			continue
		}
		if count > 0 {
			return loc.First(), nil
		}
	}
	return nil, fmt.Errorf("no file input found")
}

// clickSend submits the composer, trying the visible send control first
// and falling back to pressing Enter in the composer itself. It returns
// the method used, for telemetry.
func clickSend(page playwright.Page, composer playwright.Locator) (string, error) {
	for _, name := range []string{"Send", "Submit"} {
		loc := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: name})
		if count, err := loc.Count(); err == nil && count > 0 {
			if visible, err := loc.First().IsVisible(); err == nil && visible {
				if err := loc.First().Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err == nil {
					return "role_button", nil
				}
			}
		}
	}

	aria := page.Locator("button[aria-label*='Send']")
	if count, err := aria.Count(); err == nil && count > 0 {
		if err := aria.First().Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err == nil {
			return "aria_label", nil
		}
	}

	if composer == nil {
		return "", fmt.Errorf("no send control found and no composer to press Enter in")
	}
	if err := composer.Press("Enter"); err != nil {
		return "", fmt.Errorf("failed to submit prompt: %w", err)
	}
	return "enter_key", nil
}

// waitSeenThenGone waits for a busy indicator to appear and then
// disappear. Completion requires both phases: a probe that never fires
// times out rather than reporting instant success, since slow pages can
// take a while to show the indicator at all.
func waitSeenThenGone(page playwright.Page, probe func() bool, timeout time.Duration) DoneInfo {
	start := time.Now()
	seen := false
	for time.Since(start) < timeout {
		visible := probe()
		if visible {
			seen = true
		} else if seen {
			return DoneInfo{Reason: "indicator_disappeared", SeenBusy: true, WaitedMs: time.Since(start).Milliseconds()}
		}
		page.WaitForTimeout(float64(pollInterval.Milliseconds()))
	}
	return DoneInfo{Reason: "timeout", SeenBusy: seen, WaitedMs: time.Since(start).Milliseconds()}
}

// fillViaClipboard writes text to the clipboard and pastes it into the
// composer. Typing multi-line prompts directly is unsafe on chat
// composers where Enter submits; paste delivers newlines atomically.
func fillViaClipboard(page playwright.Page, composer playwright.Locator, text string) error {
	if _, err := page.Evaluate("t => navigator.clipboard.writeText(t)", text); err != nil {
		return fmt.Errorf("failed to stage prompt on clipboard: %w", err)
	}
	if err := composer.Click(); err != nil {
		return fmt.Errorf("failed to focus composer: %w", err)
	}
	if err := page.Keyboard().Press("ControlOrMeta+v"); err != nil {
		return fmt.Errorf("failed to paste prompt: %w", err)
	}
	return nil
}

// readClipboard returns the page clipboard contents. The session must
// have been created with clipboard permissions granted.
func readClipboard(page playwright.Page) (string, error) {
	value, err := page.Evaluate("() => navigator.clipboard.readText()")
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("clipboard read returned %T, expected string", value)
	}
	return text, nil
}

// attachImages uploads the given files through the page's file input.
func attachImages(page playwright.Page, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	input, err := findFileInput(page)
	if err != nil {
		return err
	}
	if err := input.SetInputFiles(paths); err != nil {
		return fmt.Errorf("failed to attach images: %w", err)
	}
	// Give the upload widget a moment to ingest the files.
	page.WaitForTimeout(1500)
	return nil
}

// lastVisible scans a locator's matches from the end and returns the
// last visible one.
func lastVisible(loc playwright.Locator) (playwright.Locator, bool) {
	count, err := loc.Count()
	if err != nil {
		return nil, false
	}
	for i := count - 1; i >= 0; i-- {
		candidate := loc.Nth(i)
		if visible, err := candidate.IsVisible(); err == nil && visible {
			return candidate, true
		}
	}
	return nil, false
}

// saveDebug snapshots the page HTML and a screenshot next to the other
// step artifacts so failed runs can be diagnosed offline.
func saveDebug(page playwright.Page, dir string) {
	if html, err := page.Content(); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "debug.html"), []byte(html), 0644)
	}
	_, _ = page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(filepath.Join(dir, "debug.png")),
	})
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
