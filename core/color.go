package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SRGBToLinear converts one display-space (gamma-encoded) channel to linear
// space. All color data arriving in messages is display-space and must pass
// through this before any lighting math.
func SRGBToLinear(c float32) float32 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math32.Pow((c+0.055)/1.055, 2.4)
}

// LinearToSRGB is the inverse of SRGBToLinear.
func LinearToSRGB(c float32) float32 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math32.Pow(c, 1/2.4) - 0.055
}

// SRGBAToLinear converts an RGBA color from display space to linear space.
// Alpha is coverage, not intensity, and passes through unchanged.
func SRGBAToLinear(c mgl32.Vec4) mgl32.Vec4 {
	return mgl32.Vec4{
		SRGBToLinear(c[0]),
		SRGBToLinear(c[1]),
		SRGBToLinear(c[2]),
		c[3],
	}
}

// ClampColor clamps every channel to [0, 1].
func ClampColor(c mgl32.Vec4) mgl32.Vec4 {
	for i := range c {
		c[i] = math32.Min(math32.Max(c[i], 0), 1)
	}
	return c
}

// ColorBytes quantizes a color to 8-bit RGBA.
func ColorBytes(c mgl32.Vec4) [4]byte {
	c = ClampColor(c)
	return [4]byte{
		byte(c[0]*255 + 0.5),
		byte(c[1]*255 + 0.5),
		byte(c[2]*255 + 0.5),
		byte(c[3]*255 + 0.5),
	}
}
