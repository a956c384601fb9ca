package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Default configuration values.
const (
	DefaultMaxSessions    = 5
	DefaultIdleTimeout    = 300 // seconds
	DefaultTimeout        = 30000.0
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// clipboardPermissions are granted on every context this package owns:
// operators paste prompts through the page clipboard and read exported
// markup back out of it.
var clipboardPermissions = []string{"clipboard-read", "clipboard-write"}

// Viewport defines browser viewport dimensions.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SessionOptions configures how a session's browser comes to life. The three
// launch paths are mutually exclusive and checked in order:
//   - ConnectURL set: attach over CDP to an already-running Chrome.
//   - ProfileDir set: launch a persistent context over that user-data dir so
//     logged-in state survives across runs.
//   - neither: launch a throwaway browser with a fresh context.
type SessionOptions struct {
	Headless bool      `json:"headless"`
	Viewport *Viewport `json:"viewport,omitempty"`
	Timeout  float64   `json:"timeout,omitempty"`

	// ProfileDir is a Chromium user-data directory for persistent launches.
	ProfileDir string `json:"profile_dir,omitempty"`

	// ConnectURL is a CDP endpoint such as http://localhost:9222.
	ConnectURL string `json:"connect_url,omitempty"`

	// MatchURL selects which existing tab to adopt when attaching over CDP:
	// the first page whose URL contains this substring wins. Empty adopts
	// the first page.
	MatchURL string `json:"match_url,omitempty"`
}

// NavigateOptions configures page navigation.
type NavigateOptions struct {
	WaitUntil string  `json:"wait_until,omitempty"` // load, domcontentloaded, networkidle
	Timeout   float64 `json:"timeout,omitempty"`
}

// Session represents an active browser session. Browser is nil for
// persistent-context launches (Playwright owns no separate Browser there) and
// for attached sessions the underlying Chrome belongs to the user: Attached
// sessions are never closed, only forgotten.
type Session struct {
	Name       string
	Browser    playwright.Browser
	Context    playwright.BrowserContext
	Page       playwright.Page
	Headless   bool
	Attached   bool
	CreatedAt  time.Time
	LastUsedAt time.Time
	CurrentURL string
}

// SessionInfo contains metadata about a browser session.
type SessionInfo struct {
	Name       string
	CurrentURL string
	Headless   bool
	Attached   bool
	CreatedAt  time.Time
	LastUsedAt time.Time
}
