package capture

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// ScrollState is the active scroll root's current offset and maximum
// scrollable distance, in CSS pixels. It is read fresh on every query and
// never cached across steps.
type ScrollState struct {
	Position int
	Max      int
}

// scroller is the minimal browser surface the capture pipeline drives.
// Production code wraps a live Playwright page; tests substitute a fake so the
// detection, advance and tiling logic run without a browser.
type scroller interface {
	// eval runs JavaScript in the scroll context (the content iframe's frame
	// when one was detected, otherwise the main frame).
	eval(js string, arg ...interface{}) (interface{}, error)
	// evalOuter runs JavaScript in the top-level page regardless of iframe.
	evalOuter(js string, arg ...interface{}) (interface{}, error)
	// wheel dispatches one synthetic mouse-wheel pulse at the viewport center;
	// dir is +1 (down) or -1 (up).
	wheel(dir int) error
	screenshot() ([]byte, error)
	settle()
	sleep(ms float64)
}

// pageScroller drives a real page. Synthetic wheel events are used for large
// movements because some front-ends ignore programmatic scroll writes but do
// respond to input events; jsScrollTo remains accurate for small corrections.
type pageScroller struct {
	page        playwright.Page
	frame       playwright.Frame // non-nil when an iframe owns the content
	centerX     float64
	centerY     float64
	wheelChunk  float64
	wheelWaitMs float64
	settleMs    float64
}

func (p *pageScroller) eval(js string, arg ...interface{}) (interface{}, error) {
	if p.frame != nil {
		return p.frame.Evaluate(js, arg...)
	}
	return p.page.Evaluate(js, arg...)
}

func (p *pageScroller) evalOuter(js string, arg ...interface{}) (interface{}, error) {
	return p.page.Evaluate(js, arg...)
}

func (p *pageScroller) wheel(dir int) error {
	if err := p.page.Mouse().Move(p.centerX, p.centerY); err != nil {
		return fmt.Errorf("mouse move: %w", err)
	}
	if err := p.page.Mouse().Wheel(0, float64(dir)*p.wheelChunk); err != nil {
		return fmt.Errorf("mouse wheel: %w", err)
	}
	p.page.WaitForTimeout(p.wheelWaitMs)
	return nil
}

func (p *pageScroller) screenshot() ([]byte, error) {
	return p.page.Screenshot()
}

func (p *pageScroller) settle() {
	p.page.WaitForTimeout(p.settleMs)
}

func (p *pageScroller) sleep(ms float64) {
	p.page.WaitForTimeout(ms)
}

// scrollState reads the active root's state. Malformed or absent data from the
// page yields a safe default instead of propagating a type error.
func scrollState(s scroller, viewportH int) ScrollState {
	v, err := s.eval(jsGetScrollState)
	if err != nil {
		return ScrollState{Position: 0, Max: viewportH}
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return ScrollState{Position: 0, Max: viewportH}
	}
	return ScrollState{
		Position: asInt(m["position"], 0),
		Max:      asInt(m["max"], viewportH),
	}
}

// converge drives step until isDone reports true, maxAttempts runs out, or
// position stops making progress for stallLimit consecutive attempts. step
// performs one stimulus and returns the freshly observed position; progressed
// reports whether cur improved on prev in the direction the caller wants.
// stallLimit <= 0 disables stall detection. Returns the last observed position
// and whether the loop ended because it stalled.
func converge(start int, step func() (int, error), isDone func(pos int) bool, progressed func(prev, cur int) bool, maxAttempts, stallLimit int) (int, bool) {
	pos := start
	last := start
	noAdvance := 0
	for i := 0; i < maxAttempts; i++ {
		next, err := step()
		if err != nil {
			return pos, false
		}
		pos = next
		if isDone(pos) {
			return pos, false
		}
		if stallLimit > 0 {
			if progressed(last, pos) {
				last = pos
				noAdvance = 0
			} else {
				noAdvance++
				if noAdvance >= stallLimit {
					return pos, true
				}
			}
		}
	}
	return pos, false
}

// scrollToTarget moves the active root to targetY: programmatic scroll first,
// then wheel pulses in whichever direction remains, bounded by maxAttempts.
func scrollToTarget(s scroller, targetY, viewportH, maxAttempts int) {
	_, _ = s.eval(jsScrollTo, targetY)
	s.settle()
	pos := scrollState(s, viewportH).Position
	if pos == targetY {
		return
	}
	step := func(dir int) func() (int, error) {
		return func() (int, error) {
			if err := s.wheel(dir); err != nil {
				return 0, err
			}
			return scrollState(s, viewportH).Position, nil
		}
	}
	if pos > targetY {
		converge(pos, step(-1),
			func(p int) bool { return p <= targetY },
			func(prev, cur int) bool { return cur < prev },
			maxAttempts, 0)
	} else {
		converge(pos, step(+1),
			func(p int) bool { return p >= targetY },
			func(prev, cur int) bool { return cur > prev },
			maxAttempts, stallLimit)
	}
	s.settle()
}

// asInt coerces the loosely typed numbers Evaluate returns.
func asInt(v interface{}, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return def
	}
}
