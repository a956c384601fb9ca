package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// UpdateLastUsed updates the LastUsedAt timestamp to the current time.
func (s *Session) UpdateLastUsed() {
	s.LastUsedAt = time.Now()
}

// Navigate navigates the session's page to the specified URL.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	s.UpdateLastUsed()

	playwrightOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if _, err := s.Page.Goto(url, playwrightOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}

	s.CurrentURL = s.Page.URL()
	return nil
}

// WaitForURLContains blocks until the page's URL contains the given
// substring, polling every interval up to timeout. Single-page apps redirect
// without emitting navigation events, so URL polling is the reliable signal.
func (s *Session) WaitForURLContains(substr string, timeout, interval time.Duration) (string, error) {
	s.UpdateLastUsed()

	deadline := time.Now().Add(timeout)
	for {
		current := s.Page.URL()
		if strings.Contains(current, substr) {
			s.CurrentURL = current
			return current, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("url did not contain %q within %s (last: %s)", substr, timeout, current)
		}
		s.Page.WaitForTimeout(float64(interval.Milliseconds()))
	}
}

// GetMetadata returns current page metadata.
func (s *Session) GetMetadata() (map[string]string, error) {
	s.UpdateLastUsed()

	title, err := s.Page.Title()
	if err != nil {
		title = ""
	}
	return map[string]string{
		"title": title,
		"url":   s.Page.URL(),
	}, nil
}
