// Package heatmap renders search ownership snapshots as an animated
// GIF: one frame per analysis tick, each intersection shaded by who
// the search thinks owns it. Handy for eyeballing how a long ponder
// settles territory over time.
package heatmap

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

const (
	cell     = 16 // pixels per intersection
	dpi      = 72.0
	fontsize = 11.0
	captionH = 20 // caption strip under the board
)

var face font.Face

func init() {
	regular, err := truetype.Parse(gomono.TTF)
	if err != nil {
		panic(err)
	}
	face = truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
}

// ownershipPalette runs white (White-owned) through gray (contested)
// to black (Black-owned) in 17 steps, plus a background entry.
var ownershipPalette = buildPalette()

func buildPalette() color.Palette {
	p := color.Palette{color.RGBA{R: 222, G: 184, B: 135, A: 255}} // goban
	for i := 0; i <= 16; i++ {
		g := uint8(255 - i*255/16)
		p = append(p, color.Gray{Y: g})
	}
	return p
}

// Encoder accumulates frames and writes them out as one GIF.
type Encoder struct {
	BoardSize int
	Delay     int // per-frame delay in 1/100s

	out    *gif.GIF
	drawer font.Drawer
}

// NewEncoder returns an encoder for the given board size; frames loop
// forever when the GIF is played.
func NewEncoder(boardSize int) *Encoder {
	return &Encoder{
		BoardSize: boardSize,
		Delay:     25,
		out:       &gif.GIF{LoopCount: -1},
		drawer: font.Drawer{
			Src:  image.Black,
			Face: face,
		},
	}
}

// AddFrame renders one ownership snapshot (boardSize² values in
// [-1,1], Black positive) with a caption, typically the playout count.
func (enc *Encoder) AddFrame(ownership []float32, caption string) error {
	size := enc.BoardSize
	if len(ownership) != size*size {
		return fmt.Errorf("heatmap: ownership has %d entries, want %d", len(ownership), size*size)
	}

	w := size * cell
	h := size*cell + captionH
	im := image.NewPaletted(image.Rect(0, 0, w, h), ownershipPalette)
	draw.Draw(im, im.Bounds(), image.NewUniform(ownershipPalette[0]), image.Point{}, draw.Src)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			// Row 0 of the board draws at the bottom, Go-diagram style.
			owner := ownership[(size-1-y)*size+x]
			shade := paletteIndex(owner)
			rect := image.Rect(x*cell+1, y*cell+1, (x+1)*cell-1, (y+1)*cell-1)
			draw.Draw(im, rect, image.NewUniform(ownershipPalette[shade]), image.Point{}, draw.Src)
		}
	}

	enc.drawer.Dst = im
	enc.drawer.Dot = fixed.P(2, h-6)
	enc.drawer.DrawString(caption)

	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, enc.Delay)
	return nil
}

// paletteIndex maps ownership in [-1,1] to a palette entry: -1 is
// fully White (light), +1 fully Black (dark).
func paletteIndex(owner float32) int {
	if owner < -1 {
		owner = -1
	} else if owner > 1 {
		owner = 1
	}
	return 1 + int((owner+1)*8)
}

// Flush writes the accumulated animation to w.
func (enc *Encoder) Flush(w io.Writer) error {
	if len(enc.out.Image) == 0 {
		return fmt.Errorf("heatmap: no frames to encode")
	}
	return gif.EncodeAll(w, enc.out)
}
