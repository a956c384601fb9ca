package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
)

// placement describes where one tile's pixels land on the output canvas:
// which pixel band to crop from its top and bottom, and the paste row.
type placement struct {
	cropTop    int
	cropBottom int
	pasteY     int
}

// stitchPlan computes the crop and paste geometry for a tile sequence.
//
// Screenshots may be larger than CSS pixels (e.g. 1.25x on 125% OS scaling),
// so every crop is computed in CSS space and scaled, never as a fixed pixel
// constant. Paste rows accumulate from cropped heights rather than from
// round(scale*offset) per tile: independent per-tile rounding drifts and
// produces visible seams over many tiles, sequential accumulation does not.
func stitchPlan(offsets []int, viewportCSS, tileHeightPx int) (int, []placement) {
	if len(offsets) == 0 || viewportCSS <= 0 {
		return 0, nil
	}
	scale := float64(tileHeightPx) / float64(viewportCSS)
	contentCSS := offsets[len(offsets)-1] + viewportCSS
	canvasH := int(math.Round(float64(contentCSS) * scale))

	placements := make([]placement, 0, len(offsets))
	nextPasteY := 0
	for i, off := range offsets {
		cropTop := 0
		if i > 0 {
			overlapCSS := offsets[i-1] + viewportCSS - off
			if overlapCSS < 0 {
				overlapCSS = 0
			}
			cropTop = int(math.Round(float64(overlapCSS) * scale))
		}
		visibleCSS := contentCSS - off
		if visibleCSS > viewportCSS {
			visibleCSS = viewportCSS
		}
		cropBottom := int(math.Round(float64(visibleCSS) * scale))
		if cropBottom > tileHeightPx {
			cropBottom = tileHeightPx
		}
		pasteY := 0
		if i > 0 {
			pasteY = nextPasteY
		}
		if cropTop < cropBottom && pasteY+(cropBottom-cropTop) > canvasH {
			// Clip the final tile so the output never exceeds the canvas.
			cropBottom = cropTop + (canvasH - pasteY)
		}
		if cropTop > cropBottom {
			cropBottom = cropTop
		}
		placements = append(placements, placement{cropTop: cropTop, cropBottom: cropBottom, pasteY: pasteY})
		nextPasteY = pasteY + (cropBottom - cropTop)
	}
	return canvasH, placements
}

// stitch assembles the tile sequence into one gapless image.
func stitch(tiles []Tile, viewportCSS int) (image.Image, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles to stitch")
	}
	images := make([]image.Image, len(tiles))
	for i, t := range tiles {
		img, err := png.Decode(bytes.NewReader(t.PNG))
		if err != nil {
			return nil, fmt.Errorf("decode tile %d: %w", i, err)
		}
		images[i] = img
	}

	width := images[0].Bounds().Dx()
	tileHeightPx := images[0].Bounds().Dy()
	offsets := make([]int, len(tiles))
	for i, t := range tiles {
		offsets[i] = t.CSSOffset
	}

	canvasH, placements := stitchPlan(offsets, viewportCSS, tileHeightPx)
	out := image.NewRGBA(image.Rect(0, 0, width, canvasH))
	for i, pl := range placements {
		h := pl.cropBottom - pl.cropTop
		if h <= 0 {
			continue
		}
		b := images[i].Bounds()
		src := image.Rect(b.Min.X, b.Min.Y+pl.cropTop, b.Min.X+width, b.Min.Y+pl.cropBottom)
		xdraw.Copy(out, image.Pt(0, pl.pasteY), images[i], src, xdraw.Src, nil)
	}
	return out, nil
}

// writePNG writes img to path, overwriting any existing file.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
