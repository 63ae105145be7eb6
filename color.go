package affinity

import "math"

// Color is a linear RGBA display color.
type Color struct {
	R, G, B, A float32
}

// ColorFromSRGB converts 8-bit sRGB components to a linear, opaque Color.
func ColorFromSRGB(r, g, b uint8) Color {
	return Color{R: srgbToLinear(r), G: srgbToLinear(g), B: srgbToLinear(b), A: 1}
}

func srgbToLinear(c uint8) float32 {
	v := float64(c) / 255
	if v <= 0.04045 {
		return float32(v / 12.92)
	}
	return float32(math.Pow((v+0.055)/1.055, 2.4))
}

// Palette is the default cycle of tag colors, from violet to mint.
var Palette = [...]Color{
	ColorFromSRGB(116, 0, 184),
	ColorFromSRGB(105, 48, 195),
	ColorFromSRGB(94, 96, 206),
	ColorFromSRGB(83, 144, 217),
	ColorFromSRGB(78, 168, 222),
	ColorFromSRGB(72, 191, 227),
	ColorFromSRGB(86, 207, 225),
	ColorFromSRGB(100, 223, 223),
	ColorFromSRGB(114, 239, 221),
	ColorFromSRGB(128, 255, 219),
}

// ColorSequence hands out palette colors in order, wrapping around.
// The zero value starts at the first palette entry.
type ColorSequence struct {
	next int
}

// Next returns the next palette color.
func (s *ColorSequence) Next() Color {
	c := Palette[s.next%len(Palette)]
	s.next = (s.next + 1) % len(Palette)
	return c
}
