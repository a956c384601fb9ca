package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStitchPlanSingleTile(t *testing.T) {
	canvasH, placements := stitchPlan([]int{0}, 800, 800)
	require.Len(t, placements, 1)
	assert.Equal(t, 800, canvasH)
	assert.Equal(t, placement{cropTop: 0, cropBottom: 800, pasteY: 0}, placements[0])
}

func TestStitchPlanFractionalScale(t *testing.T) {
	// 125% display scaling: 800 CSS viewport renders 1000 bitmap rows. The
	// 200-CSS overlap must crop 250 bitmap rows, not 200.
	canvasH, placements := stitchPlan([]int{0, 600, 1200}, 800, 1000)
	require.Len(t, placements, 3)
	assert.Equal(t, 2500, canvasH)

	assert.Equal(t, placement{cropTop: 0, cropBottom: 1000, pasteY: 0}, placements[0])
	assert.Equal(t, placement{cropTop: 250, cropBottom: 1000, pasteY: 1000}, placements[1])
	assert.Equal(t, placement{cropTop: 250, cropBottom: 1000, pasteY: 1750}, placements[2])
}

func TestStitchPlanGapless(t *testing.T) {
	// Across scale factors the pasted bands must tile the canvas exactly:
	// contiguous, non-overlapping, and summing to the canvas height.
	cases := []struct {
		name    string
		offsets []int
		vh      int
		tilePx  int
	}{
		{"scale 1.0", []int{0, 700, 1400, 1580}, 800, 800},
		{"scale 1.25", []int{0, 600, 1200, 1500}, 800, 1000},
		{"scale 2.0", []int{0, 500, 1000, 1100}, 600, 1200},
		{"scale 3.0", []int{0, 380, 760, 900}, 480, 1440},
		{"irregular advances", []int{0, 137, 490, 933, 1001}, 800, 1000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			canvasH, placements := stitchPlan(tc.offsets, tc.vh, tc.tilePx)
			require.Len(t, placements, len(tc.offsets))

			scale := float64(tc.tilePx) / float64(tc.vh)
			wantCanvas := int(math.Round(float64(tc.offsets[len(tc.offsets)-1]+tc.vh) * scale))
			assert.Equal(t, wantCanvas, canvasH)

			cursor := 0
			for i, pl := range placements {
				assert.Equal(t, cursor, pl.pasteY, "tile %d paste row", i)
				assert.LessOrEqual(t, pl.cropTop, pl.cropBottom, "tile %d crop band", i)
				assert.LessOrEqual(t, pl.cropBottom, tc.tilePx, "tile %d crop inside bitmap", i)
				cursor += pl.cropBottom - pl.cropTop
			}
			assert.Equal(t, canvasH, cursor, "bands must cover the canvas exactly")
		})
	}
}

func TestStitchPlanEmpty(t *testing.T) {
	canvasH, placements := stitchPlan(nil, 800, 800)
	assert.Zero(t, canvasH)
	assert.Nil(t, placements)
}

// rowColor gives every content row a distinct color so a stitched output can
// be checked row by row for duplication and gaps.
func rowColor(r int) color.RGBA {
	return color.RGBA{R: uint8(r), G: uint8(r >> 8), B: 0x40, A: 0xff}
}

// renderTile rasterizes the band [offset, offset+vh) of a synthetic content
// column at scale 1.
func renderTile(t *testing.T, offset, vh, width int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, vh))
	for y := 0; y < vh; y++ {
		c := rowColor(offset + y)
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStitchNoDuplicationNoGaps(t *testing.T) {
	// 500 CSS rows of content seen through a 200-row viewport with 50-row
	// overlaps. Every output row must carry its content row's color exactly
	// once.
	const vh, width = 200, 16
	offsets := []int{0, 150, 300}
	tiles := make([]Tile, len(offsets))
	for i, off := range offsets {
		tiles[i] = Tile{CSSOffset: off, PNG: renderTile(t, off, vh, width)}
	}

	out, err := stitch(tiles, vh)
	require.NoError(t, err)
	require.Equal(t, 500, out.Bounds().Dy())
	require.Equal(t, width, out.Bounds().Dx())

	for y := 0; y < 500; y++ {
		want := rowColor(y)
		got := out.At(0, y)
		r, g, b, _ := got.RGBA()
		wr, wg, wb, _ := want.RGBA()
		require.Equalf(t, [3]uint32{wr, wg, wb}, [3]uint32{r, g, b}, "row %d", y)
	}
}

func TestStitchSingleTile(t *testing.T) {
	tiles := []Tile{{CSSOffset: 0, PNG: renderTile(t, 0, 200, 8)}}
	out, err := stitch(tiles, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, out.Bounds().Dy())
}

func TestStitchRejectsBadInput(t *testing.T) {
	_, err := stitch(nil, 800)
	assert.Error(t, err)

	_, err = stitch([]Tile{{CSSOffset: 0, PNG: []byte("not a png")}}, 800)
	assert.Error(t, err)
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	require.NoError(t, writePNG(path, img))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, decoded.Bounds().Dx())
}
