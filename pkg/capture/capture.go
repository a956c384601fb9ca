package capture

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/playwright-community/playwright-go"
)

// Defaults for the capture loop. MaxTiles is a runaway-page guard, not a
// quality knob: a page that keeps reporting scroll progress forever still
// terminates.
const (
	DefaultSettleMs    = 200
	DefaultWheelChunk  = 200
	DefaultWheelWaitMs = 80
	DefaultMaxTiles    = 80

	fallbackViewportWidth  = 1280
	fallbackViewportHeight = 720
)

type options struct {
	settleMs    float64
	wheelChunk  float64
	wheelWaitMs float64
	maxTiles    int
}

// Option configures a single capture call.
type Option func(*options)

// WithSettleMs sets the wait after each scroll correction before capture.
func WithSettleMs(ms int) Option {
	return func(o *options) { o.settleMs = float64(ms) }
}

// WithWheelChunk sets the per-pulse wheel delta in CSS pixels.
func WithWheelChunk(px int) Option {
	return func(o *options) { o.wheelChunk = float64(px) }
}

// WithWheelWaitMs sets the wait after each wheel pulse.
func WithWheelWaitMs(ms int) Option {
	return func(o *options) { o.wheelWaitMs = float64(ms) }
}

// WithMaxTiles caps how many tiles one capture may take.
func WithMaxTiles(n int) Option {
	return func(o *options) { o.maxTiles = n }
}

// FullPage produces a single seamless PNG of the page's entire scrollable
// content and writes it to outputPath, creating parent directories as needed.
//
// The page must already be navigated and rendered; FullPage never navigates or
// authenticates. It scrolls viewport-by-viewport with synthetic wheel events
// (so pages that ignore programmatic scrolling still move), captures
// overlapping tiles and stitches them with sub-pixel-accurate crops. All DOM
// mutations made along the way are reverted before returning, whatever the
// outcome; the written file is the only durable effect.
//
// Detection and stabilization failures degrade the output rather than failing
// the call. If no tiles could be captured at all, a single unscrolled
// screenshot is written instead so callers always get an image. The returned
// path equals outputPath.
func FullPage(page playwright.Page, outputPath string, opts ...Option) (string, error) {
	o := options{
		settleMs:    DefaultSettleMs,
		wheelChunk:  DefaultWheelChunk,
		wheelWaitMs: DefaultWheelWaitMs,
		maxTiles:    DefaultMaxTiles,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}

	vw, vh := viewportSize(page)
	frame, iframe := contentFrame(page, vh)

	s := &pageScroller{
		page:        page,
		frame:       frame,
		centerX:     float64(vw / 2),
		centerY:     float64(vh / 2),
		wheelChunk:  o.wheelChunk,
		wheelWaitMs: o.wheelWaitMs,
		settleMs:    o.settleMs,
	}

	defer restore(s, iframe)

	detectScrollRoot(s)
	stabilize(s, vh, iframe)
	tiles := captureTiles(s, vh, o.maxTiles)

	if len(tiles) == 0 {
		// Undo the animation freeze and hidden overlays before the shot;
		// the fallback image must show the page as delivered. The deferred
		// restore runs again and is a no-op by then.
		restore(s, iframe)
		_, err := page.Screenshot(playwright.PageScreenshotOptions{
			Path: playwright.String(outputPath),
		})
		if err != nil {
			return "", fmt.Errorf("fallback screenshot: %w", err)
		}
		return outputPath, nil
	}

	img, err := stitch(tiles, vh)
	if err != nil {
		return "", fmt.Errorf("stitch tiles: %w", err)
	}
	if err := writePNG(outputPath, img); err != nil {
		return "", err
	}
	return outputPath, nil
}

// viewportSize reads the CSS viewport, falling back to sane defaults when the
// page reports nothing usable.
func viewportSize(page playwright.Page) (int, int) {
	vw, vh := fallbackViewportWidth, fallbackViewportHeight
	v, err := page.Evaluate(`() => ({ w: window.innerWidth, h: window.innerHeight })`)
	if err != nil {
		return vw, vh
	}
	if m, ok := v.(map[string]interface{}); ok {
		if w := asInt(m["w"], 0); w > 0 {
			vw = w
		}
		if h := asInt(m["h"], 0); h > 0 {
			vh = h
		}
	}
	return vw, vh
}

// contentFrame returns the frame of the first iframe whose document is taller
// than the window, when one exists. Pages that embed their real content in an
// iframe (preview panes, generated-site viewers) must be scrolled and measured
// inside that frame, not the top document.
func contentFrame(page playwright.Page, viewportH int) (playwright.Frame, bool) {
	v, err := page.Evaluate(jsFindTallIframe)
	if err != nil {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	idx := asInt(m["index"], -1)
	if idx < 0 {
		return nil, false
	}
	el, err := page.QuerySelector(fmt.Sprintf("iframe:nth-of-type(%d)", idx+1))
	if err != nil || el == nil {
		return nil, false
	}
	frame, err := el.ContentFrame()
	if err != nil || frame == nil {
		return nil, false
	}
	return frame, true
}
