package browser

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// SessionManager owns the Playwright driver and all active browser sessions.
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	playwright  *playwright.Playwright
	maxSessions int
	idleTimeout time.Duration
	initialized bool
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
		idleTimeout: time.Duration(DefaultIdleTimeout) * time.Second,
	}
}

// Initialize installs and starts the Playwright driver. It must be called
// before creating any sessions. Driver output is discarded so it cannot
// interleave with the CLI's own output.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// StartSession creates a new browser session with the given name and options.
func (m *SessionManager) StartSession(name string, opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[name]; exists {
		return nil, fmt.Errorf("session %q already exists", name)
	}
	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", m.maxSessions)
	}
	if !m.initialized {
		return nil, fmt.Errorf("session manager not initialized")
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	var session *Session
	var err error
	switch {
	case opts.ConnectURL != "":
		session, err = m.attachSession(name, opts)
	case opts.ProfileDir != "":
		session, err = m.launchPersistentSession(name, opts)
	default:
		session, err = m.launchSession(name, opts)
	}
	if err != nil {
		return nil, err
	}

	session.Page.SetDefaultTimeout(opts.Timeout)
	m.sessions[name] = session
	return session, nil
}

// launchSession starts a throwaway browser with a fresh context.
func (m *SessionManager) launchSession(name string, opts SessionOptions) (*Session, error) {
	browser, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
		Permissions: clipboardPermissions,
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return newSession(name, browser, context, page, opts.Headless, false), nil
}

// launchPersistentSession starts Chromium over an existing user-data
// directory so cookies and logins carry across runs.
func (m *SessionManager) launchPersistentSession(name string, opts SessionOptions) (*Session, error) {
	context, err := m.playwright.Chromium.LaunchPersistentContext(opts.ProfileDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: &opts.Headless,
			Viewport: &playwright.Size{
				Width:  opts.Viewport.Width,
				Height: opts.Viewport.Height,
			},
			Permissions: clipboardPermissions,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to launch persistent context at %s: %w", opts.ProfileDir, err)
	}

	var page playwright.Page
	if pages := context.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = context.NewPage()
		if err != nil {
			context.Close()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
	}

	return newSession(name, nil, context, page, opts.Headless, false), nil
}

// attachSession connects to a user-launched Chrome over CDP and adopts one of
// its tabs. The browser is the user's: teardown forgets the session without
// closing anything.
func (m *SessionManager) attachSession(name string, opts SessionOptions) (*Session, error) {
	endpoint := NormalizeCDPURL(opts.ConnectURL)
	browser, err := m.playwright.Chromium.ConnectOverCDP(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	contexts := browser.Contexts()
	if len(contexts) == 0 {
		return nil, fmt.Errorf("no browser contexts at %s", endpoint)
	}
	context := contexts[0]

	page, err := adoptPage(context, opts.MatchURL)
	if err != nil {
		return nil, err
	}

	return newSession(name, browser, context, page, opts.Headless, true), nil
}

// adoptPage picks the tab to drive: the first page whose URL contains match,
// falling back to the first open page, falling back to a new one.
func adoptPage(context playwright.BrowserContext, match string) (playwright.Page, error) {
	pages := context.Pages()
	if match != "" {
		for _, p := range pages {
			if strings.Contains(p.URL(), match) {
				return p, nil
			}
		}
	}
	if len(pages) > 0 {
		return pages[0], nil
	}
	page, err := context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

// NormalizeCDPURL rewrites a localhost CDP endpoint to 127.0.0.1. Chrome's
// DevTools listener binds the IPv4 loopback only, and on hosts where
// localhost resolves to ::1 first the connection fails.
func NormalizeCDPURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() != "localhost" {
		return raw
	}
	host := "127.0.0.1"
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	return u.String()
}

func newSession(name string, browser playwright.Browser, context playwright.BrowserContext, page playwright.Page, headless, attached bool) *Session {
	now := time.Now()
	return &Session{
		Name:       name,
		Browser:    browser,
		Context:    context,
		Page:       page,
		Headless:   headless,
		Attached:   attached,
		CreatedAt:  now,
		LastUsedAt: now,
		CurrentURL: page.URL(),
	}
}

// CloseSession closes and removes a browser session. Attached sessions are
// only removed: the underlying Chrome keeps running.
func (m *SessionManager) CloseSession(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[name]
	if !exists {
		return fmt.Errorf("session %q not found", name)
	}

	closeSession(session)
	delete(m.sessions, name)
	return nil
}

// closeSession tears down owned Playwright resources, ignoring errors so
// cleanup always completes. Caller holds the lock.
func closeSession(s *Session) {
	if s.Attached {
		return
	}
	_ = s.Page.Close()
	_ = s.Context.Close()
	if s.Browser != nil {
		_ = s.Browser.Close()
	}
}

// GetSession retrieves an active session by name.
func (m *SessionManager) GetSession(name string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[name]
	if !exists {
		return nil, fmt.Errorf("session %q not found", name)
	}
	return session, nil
}

// ListSessions returns information about all active sessions.
func (m *SessionManager) ListSessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		infos = append(infos, SessionInfo{
			Name:       session.Name,
			CurrentURL: session.CurrentURL,
			Headless:   session.Headless,
			Attached:   session.Attached,
			CreatedAt:  session.CreatedAt,
			LastUsedAt: session.LastUsedAt,
		})
	}
	return infos
}

// HasSessions returns true if there are any active sessions.
func (m *SessionManager) HasSessions() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions) > 0
}

// CloseAll closes all active sessions.
func (m *SessionManager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, session := range m.sessions {
		closeSession(session)
		delete(m.sessions, name)
	}
	return nil
}

// Shutdown closes all sessions and stops the Playwright driver.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, session := range m.sessions {
		closeSession(session)
		delete(m.sessions, name)
	}

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}

// CleanupIdleSessions closes sessions idle longer than the timeout.
func (m *SessionManager) CleanupIdleSessions() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for name, session := range m.sessions {
		if now.Sub(session.LastUsedAt) > m.idleTimeout {
			closeSession(session)
			delete(m.sessions, name)
		}
	}
	return nil
}

// SetMaxSessions sets the maximum number of concurrent sessions.
func (m *SessionManager) SetMaxSessions(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSessions = max
}

// SetIdleTimeout sets the idle timeout duration.
func (m *SessionManager) SetIdleTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleTimeout = timeout
}
