package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScroller simulates a scrolling page without a browser. pos tracks the
// active root's offset; wheelStep is how far one wheel pulse moves it (0
// models a page whose scroll never advances).
type fakeScroller struct {
	vh        int
	max       int
	pos       int
	wheelStep int
	ignoreJS  bool // page ignores programmatic scroll writes
	failShot  bool

	wheelCalls  int
	shots       []int // offsets at which screenshots were taken
	markedRoot  map[string]interface{}
	clearedRoot bool
	hiddenFixed bool
	shownFixed  bool
	frozen      bool
	unfrozen    bool
	states      func() interface{} // override for the behavioral probe snapshot
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (f *fakeScroller) eval(js string, arg ...interface{}) (interface{}, error) {
	switch js {
	case jsGetScrollState:
		return map[string]interface{}{"position": float64(f.pos), "max": float64(f.max)}, nil
	case jsScrollTo:
		if !f.ignoreJS && len(arg) > 0 {
			f.pos = clampInt(asInt(arg[0], 0), 0, f.max)
		}
		return nil, nil
	case jsGetScrollableStates:
		if f.states != nil {
			return f.states(), nil
		}
		return []interface{}{
			map[string]interface{}{"type": "window", "scrollTop": float64(f.pos)},
		}, nil
	case jsFindAndMarkScrollRoot:
		return map[string]interface{}{"max": float64(f.max), "useWindow": true}, nil
	case jsMarkScrollRootByObservation:
		if len(arg) > 0 {
			f.markedRoot, _ = arg[0].(map[string]interface{})
		}
		return nil, nil
	case jsClearScrollRootMarker:
		f.clearedRoot = true
		return nil, nil
	case jsHideFixed:
		f.hiddenFixed = true
		return nil, nil
	case jsShowFixed:
		f.shownFixed = true
		return nil, nil
	case jsDisableAnimations:
		f.frozen = true
		return nil, nil
	case jsRemoveAnimationFreeze:
		f.unfrozen = true
		return nil, nil
	}
	return nil, nil
}

func (f *fakeScroller) evalOuter(js string, arg ...interface{}) (interface{}, error) {
	return nil, nil
}

func (f *fakeScroller) wheel(dir int) error {
	f.wheelCalls++
	f.pos = clampInt(f.pos+dir*f.wheelStep, 0, f.max)
	return nil
}

func (f *fakeScroller) screenshot() ([]byte, error) {
	if f.failShot {
		return nil, assert.AnError
	}
	f.shots = append(f.shots, f.pos)
	return []byte("tile"), nil
}

func (f *fakeScroller) settle()          {}
func (f *fakeScroller) sleep(ms float64) {}

func TestCaptureTilesTallPage(t *testing.T) {
	// documentHeight=2000, viewportHeight=800: three tiles reaching the
	// bottom, each advance just under one viewport.
	f := &fakeScroller{vh: 800, max: 1200, wheelStep: 150}
	tiles := captureTiles(f, 800, DefaultMaxTiles)

	require.Len(t, tiles, 3)
	offsets := []int{tiles[0].CSSOffset, tiles[1].CSSOffset, tiles[2].CSSOffset}
	assert.Equal(t, []int{0, 700, 1200}, offsets)

	// Monotonic, starting at zero, covering the full content height.
	assert.Equal(t, 0, tiles[0].CSSOffset)
	for i := 1; i < len(tiles); i++ {
		assert.GreaterOrEqual(t, tiles[i].CSSOffset, tiles[i-1].CSSOffset)
	}
	assert.GreaterOrEqual(t, tiles[len(tiles)-1].CSSOffset+800, 2000)

	// Fixed chrome hidden after the first tile only.
	assert.True(t, f.hiddenFixed)
}

func TestCaptureTilesNoScroll(t *testing.T) {
	f := &fakeScroller{vh: 800, max: 0, wheelStep: 150}
	tiles := captureTiles(f, 800, DefaultMaxTiles)

	require.Len(t, tiles, 1)
	assert.Equal(t, 0, tiles[0].CSSOffset)
}

func TestCaptureTilesStuckPageTerminates(t *testing.T) {
	// Scroll never advances: the loop must end within the stall bound
	// instead of hanging, leaving the single tile taken at the top.
	f := &fakeScroller{vh: 800, max: 5000, wheelStep: 0, ignoreJS: true}
	tiles := captureTiles(f, 800, DefaultMaxTiles)

	require.Len(t, tiles, 1)
	assert.LessOrEqual(t, f.wheelCalls, stallLimit+1)
}

func TestCaptureTilesScreenshotFailure(t *testing.T) {
	f := &fakeScroller{vh: 800, max: 1200, wheelStep: 150, failShot: true}
	tiles := captureTiles(f, 800, DefaultMaxTiles)
	assert.Empty(t, tiles)
}

func TestCaptureTilesCeiling(t *testing.T) {
	f := &fakeScroller{vh: 800, max: 1 << 20, wheelStep: 400}
	tiles := captureTiles(f, 800, 5)
	assert.Len(t, tiles, 5)
}

func TestStabilizeVisitsBottomAndReturns(t *testing.T) {
	f := &fakeScroller{vh: 800, max: 1200, wheelStep: 150}
	stabilize(f, 800, false)

	assert.Equal(t, 0, f.pos)
	assert.True(t, f.frozen)
}

func TestRestoreRevertsEverything(t *testing.T) {
	f := &fakeScroller{vh: 800, max: 1200, wheelStep: 150}
	restore(f, false)

	assert.True(t, f.shownFixed)
	assert.True(t, f.unfrozen)
	assert.True(t, f.clearedRoot)
}

func TestRestoreIsRepeatable(t *testing.T) {
	// The zero-tile fallback restores before its screenshot and the
	// deferred restore runs again afterward; the second pass must leave
	// the page in the same reverted state.
	f := &fakeScroller{vh: 800, max: 1200, wheelStep: 150}
	restore(f, false)
	restore(f, false)

	assert.True(t, f.shownFixed)
	assert.True(t, f.unfrozen)
	assert.True(t, f.clearedRoot)
	assert.Equal(t, 0, f.wheelCalls)
}
