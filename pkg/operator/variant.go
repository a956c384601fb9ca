package operator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/designrun/pkg/browser"
	"github.com/entrhq/designrun/pkg/capture"
	"github.com/entrhq/designrun/pkg/logging"
)

var (
	variantLoginLabels = []string{"Log in", "Sign in", "Sign up"}

	// chatIDRe pulls the chat identifier out of a project or chat URL.
	chatIDRe = regexp.MustCompile(`variant\.com/(?:chat|projects)/([^/?&#]+)`)

	// streamingURLRe matches the polling endpoint that reports
	// generation progress for a chat.
	streamingURLRe = regexp.MustCompile(`variant\.com/chats/[^/]+/streaming`)
)

const (
	variantSharedURLFormat = "https://variant.com/shared/%s"
	projectRedirectTimeout = 90 * time.Second
	sharedPageSettle       = 3 * time.Second
)

// VariantOptions configures a multi-variant generation round.
type VariantOptions struct {
	Prompt   string
	Images   []string
	OutDir   string
	StartURL string
	Timeout  time.Duration
}

// VariantExport records one exported variant: its version id, the
// shareable URL and the capture written for it.
type VariantExport struct {
	VersionID string `json:"versionId"`
	URL       string `json:"url"`
	Capture   string `json:"capture"`
}

// VariantResult summarizes a completed variant round.
type VariantResult struct {
	ProjectURL string          `json:"project_url"`
	ChatID     string          `json:"chat_id"`
	VersionIDs []string        `json:"version_ids"`
	Exports    []VariantExport `json:"exports"`
	Done       DoneInfo        `json:"done"`
	StartedMs  int64           `json:"started_ms"`
	FinishedMs int64           `json:"finished_ms"`
}

// VariantOperator drives the variants generator: submit a prompt, track
// generation through the streaming endpoint the page polls, then visit
// each variant's shared page and capture it.
type VariantOperator struct {
	logger *logging.Logger
}

// NewVariantOperator creates a variants operator that logs to the given logger.
func NewVariantOperator(logger *logging.Logger) *VariantOperator {
	return &VariantOperator{logger: logger}
}

// streamTracker accumulates generation state from streaming responses.
// Observations arrive on playwright's event goroutine, so access is
// mutex-guarded.
type streamTracker struct {
	mu         sync.Mutex
	chatID     string
	seenActive bool
	complete   bool
	order      []string
	seen       map[string]bool
}

func newStreamTracker() *streamTracker {
	return &streamTracker{seen: make(map[string]bool)}
}

// observe folds one streaming payload into the tracker. The phase lives
// under streamState; cards are top-level. The first chatId seen pins the
// tracker to that chat and payloads for other chats (or without one) are
// ignored, so stray tabs polling the same endpoint can't pollute the
// state. Version ids are recorded in first seen order. Completion is the
// idle phase after at least one active phase, so a page that starts idle
// doesn't count as done.
func (t *streamTracker) observe(body []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var payload struct {
		ChatID      string `json:"chatId"`
		StreamState struct {
			Phase string `json:"phase"`
		} `json:"streamState"`
		Cards []struct {
			Meta struct {
				VersionID string `json:"versionId"`
			} `json:"meta"`
		} `json:"cards"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return
	}
	if payload.ChatID == "" {
		return
	}
	if t.chatID == "" {
		t.chatID = payload.ChatID
	}
	if payload.ChatID != t.chatID {
		return
	}

	switch payload.StreamState.Phase {
	case "active":
		t.seenActive = true
		for _, card := range payload.Cards {
			id := card.Meta.VersionID
			if id == "" || t.seen[id] {
				continue
			}
			t.seen[id] = true
			t.order = append(t.order, id)
		}
	case "idle":
		if t.seenActive {
			t.complete = true
		}
	}
}

func (t *streamTracker) snapshot() ([]string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, len(t.order))
	copy(ids, t.order)
	return ids, t.complete
}

// extractChatID returns the chat identifier embedded in a project URL,
// or empty when the URL doesn't carry one.
func extractChatID(url string) string {
	m := chatIDRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// expectedVariantCount is how many output cards a generation round is
// expected to produce.
const expectedVariantCount = 4

// jsOutputCardLabels walks from each visible card menu button to an
// ancestor and lifts that card's label, in DOM order. Output cards are
// the only cards carrying a menu button, so the labels double as a card
// census.
const jsOutputCardLabels = `() => {
  const selectors = [
    'button[aria-label*="Menu" i]',
    '[role="button"][aria-label*="Menu" i]',
    '[data-testid*="menu" i]',
  ];
  let buttons = [];
  for (const sel of selectors) {
    buttons = Array.from(document.querySelectorAll(sel));
    if (buttons.length > 0) break;
  }
  const labels = [];
  for (const btn of buttons) {
    if (!btn.offsetParent) continue;
    let el = btn.closest('a') || btn.closest('article') || btn.parentElement;
    for (let i = 0; i < 8 && el; i++, el = el.parentElement) {
      const heading = el.querySelector('h1, h2, h3, h4, [class*="title" i], [class*="label" i], [class*="name" i]');
      const label = heading
        ? (heading.textContent || '').trim()
        : (el.textContent || '').trim().split('\n')[0].slice(0, 120);
      if (label) {
        labels.push(label);
        break;
      }
    }
  }
  return labels;
}`

// outputCardLabels reads the labels of the output cards currently on the
// page. Errors degrade to an empty list.
func outputCardLabels(page playwright.Page) []string {
	value, err := page.Evaluate(jsOutputCardLabels)
	if err != nil {
		return nil
	}
	raw, ok := value.([]interface{})
	if !ok {
		return nil
	}
	labels := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			labels = append(labels, strings.TrimSpace(s))
		}
	}
	return labels
}

// newOutputLabels returns the labels in current that were not present
// before the round started, preserving DOM order.
func newOutputLabels(current, existing []string) []string {
	known := make(map[string]bool, len(existing))
	for _, label := range existing {
		known[label] = true
	}
	fresh := make([]string, 0, len(current))
	for _, label := range current {
		if !known[label] {
			fresh = append(fresh, label)
		}
	}
	return fresh
}

// Run executes a full variant round. The session must already be
// navigated to the generator start page.
func (o *VariantOperator) Run(sess *browser.Session, opts VariantOptions) (*VariantResult, error) {
	page := sess.Page
	result := &VariantResult{StartedMs: nowMs()}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}

	if authGateVisible(page, variantLoginLabels) {
		saveDebug(page, opts.OutDir)
		return nil, fmt.Errorf("generator is behind a login wall; sign in with a persistent profile first")
	}

	// The listener must be live before the prompt is submitted or the
	// first streaming responses are lost.
	tracker := newStreamTracker()
	page.OnResponse(func(resp playwright.Response) {
		if resp.Request().Method() != "GET" || !streamingURLRe.MatchString(resp.URL()) {
			return
		}
		body, err := resp.Body()
		if err != nil {
			return
		}
		tracker.observe(body)
	})

	// Labels present now belong to earlier rounds; the completion
	// fallback counts only cards that appear after this point.
	existingLabels := outputCardLabels(page)

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

	projectURL, err := o.waitForProjectURL(sess, opts.StartURL)
	if err != nil {
		saveDebug(page, opts.OutDir)
		return nil, err
	}
	result.ProjectURL = projectURL
	result.ChatID = extractChatID(projectURL)
	o.logger.Infof("Generation started, project %s (chat %s)", projectURL, result.ChatID)

	result.Done = o.waitForGeneration(page, tracker, existingLabels, opts.Timeout)
	result.VersionIDs, _ = tracker.snapshot()
	if len(result.VersionIDs) == 0 {
		saveDebug(page, opts.OutDir)
		return nil, fmt.Errorf("no variant version ids observed (%s after %dms)", result.Done.Reason, result.Done.WaitedMs)
	}
	if result.Done.Reason == "timeout" {
		o.logger.Warnf("Generation did not go idle within %s; exporting %d variants anyway", opts.Timeout, len(result.VersionIDs))
	}

	result.Exports = o.exportVariants(page, result.VersionIDs, opts.OutDir)
	result.FinishedMs = nowMs()
	sess.UpdateLastUsed()

	if err := writeJSONFile(filepath.Join(opts.OutDir, "result.json"), result); err != nil {
		return nil, err
	}
	if err := writeJSONFile(filepath.Join(opts.OutDir, "urls.json"), result.Exports); err != nil {
		return nil, err
	}
	return result, nil
}

// ReExport re-captures the variants of a previous round, reading the
// version ids from its result.json instead of watching the stream.
func (o *VariantOperator) ReExport(sess *browser.Session, outDir string) (*VariantResult, error) {
	data, err := os.ReadFile(filepath.Join(outDir, "result.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read previous result: %w", err)
	}
	var prev VariantResult
	if err := json.Unmarshal(data, &prev); err != nil {
		return nil, fmt.Errorf("failed to parse previous result: %w", err)
	}
	if len(prev.VersionIDs) == 0 {
		return nil, fmt.Errorf("previous result carries no version ids")
	}

	result := &VariantResult{
		ProjectURL: prev.ProjectURL,
		ChatID:     prev.ChatID,
		VersionIDs: prev.VersionIDs,
		StartedMs:  nowMs(),
	}
	result.Exports = o.exportVariants(sess.Page, prev.VersionIDs, outDir)
	result.FinishedMs = nowMs()

	if err := writeJSONFile(filepath.Join(outDir, "urls.json"), result.Exports); err != nil {
		return nil, err
	}
	return result, nil
}

// waitForProjectURL waits for the page to leave the start URL and land
// on a chat or project URL.
func (o *VariantOperator) waitForProjectURL(sess *browser.Session, startURL string) (string, error) {
	deadline := time.Now().Add(projectRedirectTimeout)
	for time.Now().Before(deadline) {
		url := sess.Page.URL()
		if url != startURL && extractChatID(url) != "" {
			return url, nil
		}
		sess.Page.WaitForTimeout(float64(pollInterval.Milliseconds()))
	}
	return "", fmt.Errorf("never redirected to a project URL within %s", projectRedirectTimeout)
}

// waitForGeneration waits for the round to finish, watching two signals:
// the streaming tracker going idle after activity, and — as the fallback
// when streaming data never materializes — the card grid growing by a
// full set of new labels.
func (o *VariantOperator) waitForGeneration(page playwright.Page, tracker *streamTracker, existingLabels []string, timeout time.Duration) DoneInfo {
	start := time.Now()
	for time.Since(start) < timeout {
		if _, complete := tracker.snapshot(); complete {
			return DoneInfo{Reason: "generation_complete", SeenBusy: true, WaitedMs: time.Since(start).Milliseconds()}
		}
		if fresh := newOutputLabels(outputCardLabels(page), existingLabels); len(fresh) >= expectedVariantCount {
			return DoneInfo{Reason: "new_outputs_ready", SeenBusy: true, WaitedMs: time.Since(start).Milliseconds()}
		}
		page.WaitForTimeout(float64(pollInterval.Milliseconds()))
	}
	ids, _ := tracker.snapshot()
	return DoneInfo{Reason: "timeout", SeenBusy: len(ids) > 0, WaitedMs: time.Since(start).Milliseconds()}
}

// exportVariants visits each variant's shared page and writes a
// full-page capture. Failures are logged per variant, not fatal, so one
// broken share link doesn't lose the rest.
func (o *VariantOperator) exportVariants(page playwright.Page, versionIDs []string, outDir string) []VariantExport {
	capturesDir := filepath.Join(outDir, "captures")
	if err := os.MkdirAll(capturesDir, 0755); err != nil {
		o.logger.Errorf("Failed to create captures dir: %v", err)
		return nil
	}

	exports := make([]VariantExport, 0, len(versionIDs))
	for _, id := range versionIDs {
		url := fmt.Sprintf(variantSharedURLFormat, id)
		if _, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			o.logger.Warnf("Failed to open shared page for %s: %v", id, err)
			continue
		}
		page.WaitForTimeout(float64(sharedPageSettle.Milliseconds()))

		capturePath := filepath.Join(capturesDir, fmt.Sprintf("capture_%s.png", id))
		if _, err := capture.FullPage(page, capturePath); err != nil {
			o.logger.Warnf("Failed to capture %s: %v", id, err)
			continue
		}
		exports = append(exports, VariantExport{
			VersionID: id,
			URL:       url,
			Capture:   filepath.Join("captures", filepath.Base(capturePath)),
		})
		o.logger.Infof("Exported variant %s", id)
	}
	return exports
}
