package capture

const (
	// targetedScrollAttempts bounds the wheel loop when moving to an exact
	// offset (bottom visit, return to top).
	targetedScrollAttempts = 150
	// retreatAttempts bounds the wheel-up fallback when residual scroll
	// remains after the programmatic return to top.
	retreatAttempts = 50
	// animationSettleMs is the extra wait at the bottom so scroll-triggered
	// animations finish before they are frozen.
	animationSettleMs = 500
)

// stabilize makes repeated screenshots comparable: visit the bottom once so
// scroll-linked animations have fired, freeze transitions/animations and
// viewport-relative backgrounds, hide outer-page overlays on the iframe path,
// and return to offset 0. Every sub-step is best-effort; a failure degrades
// capture quality instead of aborting it.
func stabilize(s scroller, viewportH int, iframe bool) {
	if max := scrollState(s, viewportH).Max; max > 0 {
		scrollToTarget(s, max, viewportH, targetedScrollAttempts)
		s.sleep(animationSettleMs)
	}

	_, _ = s.eval(jsDisableAnimations)

	if iframe {
		_, _ = s.evalOuter(jsHideOuterOverlays)
	}

	scrollToTarget(s, 0, viewportH, targetedScrollAttempts)
	if scrollState(s, viewportH).Position != 0 {
		step := func() (int, error) {
			if err := s.wheel(-1); err != nil {
				return 0, err
			}
			return scrollState(s, viewportH).Position, nil
		}
		converge(scrollState(s, viewportH).Position, step,
			func(pos int) bool { return pos <= 0 },
			func(prev, cur int) bool { return cur < prev },
			retreatAttempts, 0)
		s.settle()
	}
}

// restore undoes all stabilization side effects. It never returns an error:
// restoration failures are swallowed so they cannot mask the capture's own
// result.
func restore(s scroller, iframe bool) {
	_, _ = s.eval(jsShowFixed)
	_, _ = s.eval(jsRemoveAnimationFreeze)
	if iframe {
		_, _ = s.evalOuter(jsRestoreOuterOverlays)
	}
	_, _ = s.eval(jsClearScrollRootMarker)
}
