package core

import (
	"github.com/go-gl/mathgl/mgl32"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Colormap selects how a scalar channel (e.g. point intensity) maps to
// color.
type Colormap string

const (
	ColormapTurbo   Colormap = "turbo"
	ColormapRainbow Colormap = "rainbow"
	ColormapFlat    Colormap = "flat"

	// DefaultColormapSize is the number of precomputed entries in a table.
	DefaultColormapSize = 256
)

// ColormapTable precomputes a colormap into a fixed-size lookup table so
// per-point mapping is an index, not a polynomial. Entries are linear-space.
type ColormapTable struct {
	entries []mgl32.Vec4
	flat    mgl32.Vec4
}

// NewColormapTable builds a lookup table for the map. For ColormapFlat the
// flat color (display space) is converted to linear and returned for every
// input.
func NewColormapTable(cm Colormap, size int, flat mgl32.Vec4) *ColormapTable {
	if size <= 1 {
		size = DefaultColormapSize
	}
	t := &ColormapTable{flat: SRGBAToLinear(flat)}
	if cm == ColormapFlat {
		return t
	}
	t.entries = make([]mgl32.Vec4, size)
	for i := range t.entries {
		frac := float32(i) / float32(size-1)
		var c mgl32.Vec4
		switch cm {
		case ColormapRainbow:
			c = rainbowColor(frac)
		default:
			c = turboColor(frac)
		}
		t.entries[i] = SRGBAToLinear(c)
	}
	return t
}

// At returns the color for a normalized value in [0, 1]. Out-of-range values
// clamp to the table ends.
func (t *ColormapTable) At(frac float32) mgl32.Vec4 {
	if t.entries == nil {
		return t.flat
	}
	i := int(frac * float32(len(t.entries)-1))
	if i < 0 {
		i = 0
	}
	if i >= len(t.entries) {
		i = len(t.entries) - 1
	}
	return t.entries[i]
}

// turboColor evaluates the Turbo colormap polynomial at t in [0, 1].
// Output is display-space RGB.
func turboColor(t float32) mgl32.Vec4 {
	r := 0.13572138 + t*(4.61539260+t*(-42.66032258+t*(132.13108234+t*(-152.94239396+t*59.28637943))))
	g := 0.09140261 + t*(2.19418839+t*(4.84296658+t*(-14.18503333+t*(4.27729857+t*2.82956604))))
	b := 0.10667330 + t*(12.64194608+t*(-60.58204836+t*(110.36276771+t*(-89.90310912+t*27.34824973))))
	return ClampColor(mgl32.Vec4{r, g, b, 1})
}

// rainbowColor sweeps hue from violet (t=0) to red (t=1) at full
// saturation. Output is display-space RGB.
func rainbowColor(t float32) mgl32.Vec4 {
	h := float64(1-t) * 270
	c := colorful.Hsv(h, 1, 1)
	return mgl32.Vec4{float32(c.R), float32(c.G), float32(c.B), 1}
}
