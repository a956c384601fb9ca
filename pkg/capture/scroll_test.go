package capture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvergeReachesTarget(t *testing.T) {
	pos := 0
	step := func() (int, error) { pos += 100; return pos, nil }

	got, stalled := converge(0, step,
		func(p int) bool { return p >= 450 },
		func(prev, cur int) bool { return cur > prev },
		100, stallLimit)

	assert.Equal(t, 500, got)
	assert.False(t, stalled)
}

func TestConvergeStallsAfterLimit(t *testing.T) {
	calls := 0
	step := func() (int, error) { calls++; return 200, nil }

	got, stalled := converge(200, step,
		func(p int) bool { return p >= 1000 },
		func(prev, cur int) bool { return cur > prev },
		100, stallLimit)

	assert.Equal(t, 200, got)
	assert.True(t, stalled)
	assert.Equal(t, stallLimit, calls)
}

func TestConvergeRespectsMaxAttempts(t *testing.T) {
	calls := 0
	pos := 0
	step := func() (int, error) { calls++; pos++; return pos, nil }

	_, stalled := converge(0, step,
		func(p int) bool { return p >= 1000 },
		func(prev, cur int) bool { return cur > prev },
		10, stallLimit)

	assert.Equal(t, 10, calls)
	assert.False(t, stalled)
}

func TestConvergeStallDetectionDisabled(t *testing.T) {
	calls := 0
	step := func() (int, error) { calls++; return 0, nil }

	converge(0, step,
		func(p int) bool { return p >= 100 },
		func(prev, cur int) bool { return cur > prev },
		30, 0)

	assert.Equal(t, 30, calls, "stallLimit 0 must run out the attempt budget")
}

func TestConvergeStopsOnStepError(t *testing.T) {
	step := func() (int, error) { return 0, errors.New("wheel failed") }

	got, stalled := converge(42, step, func(int) bool { return false },
		func(prev, cur int) bool { return cur > prev }, 100, stallLimit)

	assert.Equal(t, 42, got)
	assert.False(t, stalled)
}

func TestScrollToTargetWheelsWhenProgrammaticIgnored(t *testing.T) {
	f := &fakeScroller{vh: 800, max: 3000, wheelStep: 250, ignoreJS: true}
	scrollToTarget(f, 1000, 800, targetedScrollAttempts)
	assert.GreaterOrEqual(t, f.pos, 1000)
}

func TestScrollToTargetWheelsBackUp(t *testing.T) {
	f := &fakeScroller{vh: 800, max: 3000, wheelStep: 250, ignoreJS: true}
	f.pos = 2000
	scrollToTarget(f, 0, 800, targetedScrollAttempts)
	assert.Equal(t, 0, f.pos)
}

func TestScrollStateMalformed(t *testing.T) {
	// A scroller whose state read returns junk falls back to a pristine
	// one-viewport state rather than a type error.
	got := scrollState(&junkScroller{}, 720)
	assert.Equal(t, ScrollState{Position: 0, Max: 720}, got)

	f := &fakeScroller{vh: 720, max: 500}
	got = scrollState(f, 720)
	assert.Equal(t, ScrollState{Position: 0, Max: 500}, got)
}

// junkScroller returns a non-object from every evaluation.
type junkScroller struct{}

func (junkScroller) eval(string, ...interface{}) (interface{}, error)      { return "junk", nil }
func (junkScroller) evalOuter(string, ...interface{}) (interface{}, error) { return nil, nil }
func (junkScroller) wheel(int) error                                       { return nil }
func (junkScroller) screenshot() ([]byte, error)                           { return nil, nil }
func (junkScroller) settle()                                               {}
func (junkScroller) sleep(float64)                                         {}

func TestAsInt(t *testing.T) {
	assert.Equal(t, 7, asInt(float64(7.9), 0))
	assert.Equal(t, 7, asInt(int(7), 0))
	assert.Equal(t, 7, asInt(int64(7), 0))
	assert.Equal(t, 3, asInt("seven", 3))
	assert.Equal(t, 3, asInt(nil, 3))
}
