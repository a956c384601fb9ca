package capture

// Tile is one viewport-sized screenshot taken while the scroll root sat at
// CSSOffset. Tiles are produced in strictly non-decreasing offset order and
// the first tile's offset is always 0.
type Tile struct {
	CSSOffset int
	PNG       []byte
}

const (
	// tileAdvanceAttempts bounds the wheel loop for one tile step.
	tileAdvanceAttempts = 100
	// stallLimit is how many consecutive no-advance wheel attempts end an
	// advance early; it is the termination signal for content shorter than
	// expected and for rate-limited scrolling.
	stallLimit = 15
)

// captureTiles walks the scroll range top to bottom, capturing one screenshot
// per stop. Each step advances just under one viewport so consecutive tiles
// share a vertical band; the stitcher crops that band out and the loop uses a
// failed advance as the reached-bottom signal. After the first tile,
// fixed/sticky elements are hidden so chrome does not repeat.
func captureTiles(s scroller, viewportH, maxTiles int) []Tile {
	var tiles []Tile
	for len(tiles) < maxTiles {
		start := scrollState(s, viewportH).Position
		png, err := s.screenshot()
		if err != nil {
			break
		}
		tiles = append(tiles, Tile{CSSOffset: start, PNG: png})

		if len(tiles) == 1 {
			_, _ = s.eval(jsHideFixed)
		}

		overlapMargin := viewportH / 8
		if overlapMargin < 100 {
			overlapMargin = 100
		}
		target := start + viewportH - overlapMargin

		step := func() (int, error) {
			if err := s.wheel(+1); err != nil {
				return 0, err
			}
			return scrollState(s, viewportH).Position, nil
		}
		converge(start, step,
			func(pos int) bool { return pos >= target },
			func(prev, cur int) bool { return cur > prev },
			tileAdvanceAttempts, stallLimit)

		// Snap exactly to the target: programmatic scroll is accurate for
		// small corrections even on pages that ignored it for large jumps.
		_, _ = s.eval(jsScrollTo, target)
		s.settle()

		if scrollState(s, viewportH).Position <= start {
			break
		}
	}
	return tiles
}
