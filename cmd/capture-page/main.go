// Package main provides capture-page, a standalone tool that screenshots
// the full scrollable height of a page, including pages that scroll in a
// nested container rather than the window.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/entrhq/designrun/pkg/browser"
	"github.com/entrhq/designrun/pkg/capture"
	"github.com/entrhq/designrun/pkg/logging"
)

func main() {
	url := flag.String("url", "", "Page URL to capture (required)")
	out := flag.String("out", "capture.png", "Output PNG path")
	headed := flag.Bool("headed", false, "Run the browser with a visible window")
	viewport := flag.String("viewport", "1280x720", "Viewport size as WIDTHxHEIGHT")
	settleMs := flag.Int("settle-ms", 0, "Extra settle time before tiling, in milliseconds")
	maxTiles := flag.Int("max-tiles", 0, "Cap on the number of tiles (0 = default)")
	connect := flag.String("connect", "", "CDP endpoint of a running Chrome instead of launching one")
	profileDir := flag.String("profile-dir", "", "Persistent browser profile directory")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "capture-page - full-page screenshots of scroll-container pages\n\n")
		fmt.Fprintf(os.Stderr, "Usage: capture-page -url <url> [options]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *url == "" {
		flag.Usage()
		os.Exit(2)
	}
	width, height, err := parseViewport(*viewport)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capture-page: %v\n", err)
		os.Exit(2)
	}

	if err := run(*url, *out, width, height, *settleMs, *maxTiles, *connect, *profileDir, *headed); err != nil {
		fmt.Fprintf(os.Stderr, "capture-page: %v\n", err)
		os.Exit(1)
	}
}

func run(url, out string, width, height, settleMs, maxTiles int, connect, profileDir string, headed bool) error {
	logger, err := logging.NewLogger("capture")
	if err != nil {
		return err
	}
	defer logger.Close()

	manager := browser.NewSessionManager()
	if err := manager.Initialize(); err != nil {
		return err
	}
	defer manager.Shutdown()

	sess, err := manager.StartSession("capture", browser.SessionOptions{
		Headless:   !headed,
		Viewport:   &browser.Viewport{Width: width, Height: height},
		ConnectURL: connect,
		ProfileDir: profileDir,
		MatchURL:   url,
	})
	if err != nil {
		return err
	}
	if err := sess.Navigate(url, browser.NavigateOptions{WaitUntil: "domcontentloaded"}); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}

	var opts []capture.Option
	if settleMs > 0 {
		opts = append(opts, capture.WithSettleMs(settleMs))
	}
	if maxTiles > 0 {
		opts = append(opts, capture.WithMaxTiles(maxTiles))
	}

	logger.Infof("Capturing %s at %dx%d into %s", url, width, height, out)
	path, err := capture.FullPage(sess.Page, out, opts...)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func parseViewport(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("viewport must be WIDTHxHEIGHT, got %q", s)
	}
	var width, height int
	if _, err := fmt.Sscanf(parts[0], "%d", &width); err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("bad viewport width %q", parts[0])
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &height); err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("bad viewport height %q", parts[1])
	}
	return width, height, nil
}
