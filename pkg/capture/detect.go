package capture

// Scroll-root election. Geometry alone can be fooled: some elements report a
// scrollable range but are not where the visible content actually moves, and
// some front-ends ignore programmatic scrollTop writes entirely. So the
// geometric pass only seeds the candidates; a behavioral probe (wheel pulses,
// then diff of every candidate's offset) decides.

// probePulses is how many wheel pulses the behavioral pass sends before
// re-reading candidate offsets, and how many reverse pulses undo them.
const probePulses = 8

// scrollCandidate is one observed scroll offset: the window, or the i-th
// scrollable element in stable DOM order.
type scrollCandidate struct {
	Kind      string // "window" or "element"
	Index     int
	ScrollTop int
}

// parseScrollableStates coerces the raw Evaluate result of
// jsGetScrollableStates. Entries that are not objects are dropped.
func parseScrollableStates(v interface{}) []scrollCandidate {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]scrollCandidate, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		kind, _ := m["type"].(string)
		if kind == "" {
			kind = "window"
		}
		out = append(out, scrollCandidate{
			Kind:      kind,
			Index:     asInt(m["index"], 0),
			ScrollTop: asInt(m["scrollTop"], 0),
		})
	}
	return out
}

// pickScrolled compares the before/after snapshots pairwise and returns the
// candidate whose offset advanced the most. Only forward movement counts. A
// false result means nothing moved (or the snapshots are unusable), in which
// case the caller clears the marker and the capture scrolls the window.
func pickScrolled(before, after []scrollCandidate) (scrollCandidate, bool) {
	if len(before) == 0 || len(before) != len(after) {
		return scrollCandidate{}, false
	}
	bestDelta := 0
	var best scrollCandidate
	found := false
	for i := range before {
		d := after[i].ScrollTop - before[i].ScrollTop
		if after[i].ScrollTop > before[i].ScrollTop && d > bestDelta {
			bestDelta = d
			best = before[i]
			found = true
		}
	}
	return best, found
}

// detectScrollRoot elects the scroll root and marks it in the DOM. The probe's
// scroll is always undone before returning so tiling starts from a clean
// position. Failures here are non-fatal: the capture degrades to window
// scrolling rather than aborting.
func detectScrollRoot(s scroller) {
	_, _ = s.eval(jsFindAndMarkScrollRoot)

	_, _ = s.eval(jsScrollTo, 0)
	s.settle()

	beforeRaw, _ := s.eval(jsGetScrollableStates)
	before := parseScrollableStates(beforeRaw)
	for i := 0; i < probePulses; i++ {
		if err := s.wheel(+1); err != nil {
			break
		}
	}
	s.settle()
	afterRaw, _ := s.eval(jsGetScrollableStates)
	after := parseScrollableStates(afterRaw)

	// Undo the probing scroll regardless of outcome.
	for i := 0; i < probePulses; i++ {
		if err := s.wheel(-1); err != nil {
			break
		}
	}
	s.settle()

	if winner, ok := pickScrolled(before, after); ok {
		_, _ = s.eval(jsMarkScrollRootByObservation, map[string]interface{}{
			"type":  winner.Kind,
			"index": winner.Index,
		})
	} else {
		_, _ = s.eval(jsClearScrollRootMarker)
	}
}
