package mosaic

import (
	"image/color"
)

// MaxLevel is the largest quantization level an 8-bit channel can support.
const MaxLevel = 256

// Palette is the precomputed set of representative colors for a quantization
// level. Entries are stored in a flat slice indexed by the packed bucket key
// r*L*L + g*L + b, so every lookup is a single array access.
type Palette struct {
	level  int
	coeff  int
	values []uint8
	colors []color.RGBA
	filled []bool
}

// BuildPalette builds the palette for the given quantization level. The
// representative values are evenly spaced over [0, 255] with both endpoints
// included, and the color coefficient is the truncated step between them.
//
// Every representative color is stored under its own bucket key, the same key
// a pixel of that color produces when quantized with the palette coefficient.
// Levels whose truncated coefficient would let some pixel land in a bucket
// without a representative are rejected.
func BuildPalette(level int) (*Palette, error) {
	if level < 2 {
		return nil, invalidf("BuildPalette", "quantization level must be at least 2, got %d", level)
	}
	if level > MaxLevel {
		return nil, invalidf("BuildPalette", "quantization level must be at most %d, got %d", MaxLevel, level)
	}

	coeff := 255 / (level - 1)

	values := make([]uint8, level)
	for i := range values {
		values[i] = uint8(i * 255 / (level - 1))
	}

	p := &Palette{
		level:  level,
		coeff:  coeff,
		values: values,
		colors: make([]color.RGBA, level*level*level),
		filled: make([]bool, level*level*level),
	}

	for _, r := range values {
		for _, g := range values {
			for _, b := range values {
				c := color.RGBA{R: r, G: g, B: b, A: 0xff}
				key, ok := p.lookupKey(c.R, c.G, c.B)
				if !ok {
					return nil, invalidf("BuildPalette",
						"level %d maps representative %v outside the key space", level, c)
				}
				p.colors[key] = c
				p.filled[key] = true
			}
		}
	}

	// Any pixel value must resolve to a filled bucket.
	if top := 255 / coeff; top != level-1 {
		return nil, invalidf("BuildPalette",
			"level %d with coefficient %d yields %d buckets per channel", level, coeff, top+1)
	}
	for key, ok := range p.filled {
		if !ok {
			return nil, invalidf("BuildPalette",
				"level %d leaves bucket %d without a representative color", level, key)
		}
	}

	return p, nil
}

func (p *Palette) lookupKey(r, g, b uint8) (int, bool) {
	kr, kg, kb := int(r)/p.coeff, int(g)/p.coeff, int(b)/p.coeff
	if kr >= p.level || kg >= p.level || kb >= p.level {
		return 0, false
	}
	return p.Pack(kr, kg, kb), true
}

// Level returns the number of buckets per channel.
func (p *Palette) Level() int {
	return p.level
}

// Coeff returns the color coefficient used to quantize channel values.
func (p *Palette) Coeff() int {
	return p.coeff
}

// Len returns the number of entries, level cubed.
func (p *Palette) Len() int {
	return len(p.colors)
}

// Values returns the representative channel values in ascending order.
func (p *Palette) Values() []uint8 {
	return append([]uint8(nil), p.values...)
}

// Pack packs per-channel bucket indices into a palette key.
func (p *Palette) Pack(r, g, b int) int {
	return (r*p.level+g)*p.level + b
}

// Unpack splits a palette key into per-channel bucket indices.
func (p *Palette) Unpack(key int) (r, g, b int) {
	b = key % p.level
	key /= p.level
	g = key % p.level
	r = key / p.level
	return
}

// Key returns the palette key an 8-bit RGB triple quantizes to.
func (p *Palette) Key(r, g, b uint8) int {
	key, ok := p.lookupKey(r, g, b)
	if !ok {
		panic("mosaic: internal: palette miss")
	}
	return key
}

// Bucket returns the per-channel bucket indices of c.
func (p *Palette) Bucket(c color.RGBA) [3]int {
	return [3]int{int(c.R) / p.coeff, int(c.G) / p.coeff, int(c.B) / p.coeff}
}

// Color returns the representative color stored under key. A key without an
// entry means the palette and the quantizer disagree, which BuildPalette
// rules out, so it panics.
func (p *Palette) Color(key int) color.RGBA {
	if key < 0 || key >= len(p.colors) || !p.filled[key] {
		panic("mosaic: internal: palette miss")
	}
	return p.colors[key]
}
