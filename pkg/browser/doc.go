// Package browser manages Playwright-driven Chromium sessions for the design
// automation workflow.
//
// A SessionManager owns the Playwright driver and a named set of sessions.
// Sessions come to life three ways: a throwaway launch for anonymous work, a
// persistent-context launch over a Chromium profile directory so logged-in
// state survives across runs, or a CDP attach that adopts a tab in a Chrome
// the user already has open. Attached sessions belong to the user and are
// never closed by this package, only forgotten.
package browser
