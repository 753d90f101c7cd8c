package term

import (
	"github.com/lucasb-eyer/go-colorful"
)

// xterm256 holds the colors of the 256-color xterm palette.
var xterm256 = func() [256]colorful.Color {
	var p [256]colorful.Color

	base := [16][3]uint8{
		{0, 0, 0}, {128, 0, 0}, {0, 128, 0}, {128, 128, 0},
		{0, 0, 128}, {128, 0, 128}, {0, 128, 128}, {192, 192, 192},
		{128, 128, 128}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
		{0, 0, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
	}
	for i, c := range base {
		p[i] = rgb(c[0], c[1], c[2])
	}

	steps := [6]uint8{0, 95, 135, 175, 215, 255}
	for i := 0; i < 216; i++ {
		p[16+i] = rgb(steps[i/36], steps[(i/6)%6], steps[i%6])
	}

	for i := 0; i < 24; i++ {
		v := uint8(8 + i*10)
		p[232+i] = rgb(v, v, v)
	}

	return p
}()

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// Nearest256 returns the xterm palette index perceptually closest to c. The
// first 16 entries are skipped since terminals theme them freely.
func Nearest256(c colorful.Color) int {
	best, bestDist := 16, c.DistanceLab(xterm256[16])
	for i := 17; i < len(xterm256); i++ {
		if d := c.DistanceLab(xterm256[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
