package mosaic

import (
	"image"
)

// IndexBuffer holds quantized bucket indices for every pixel of a view.
// Channels is 1 for intensity buffers and 3 for color buffers, stored
// interleaved in R, G, B order.
type IndexBuffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// At returns the index of channel ch at (x, y).
func (b *IndexBuffer) At(x, y, ch int) uint8 {
	return b.Pix[(y*b.Width+x)*b.Channels+ch]
}

// Quantize writes floor(src[i]/coeff) into dst[i]. dst must be at least as
// long as src. coeff must be positive; constructors reject configurations
// that would produce a zero coefficient, so a zero here is a programming
// error.
func Quantize(dst, src []uint8, coeff int) {
	if coeff < 1 {
		panic("mosaic: Quantize: coefficient must be positive")
	}
	dst = dst[:len(src)]
	if coeff == 1 {
		copy(dst, src)
		return
	}
	c := uint(coeff)
	for i, v := range src {
		dst[i] = uint8(uint(v) / c)
	}
}

// QuantizeGray quantizes a single-channel intensity image.
func QuantizeGray(img *image.Gray, coeff int) *IndexBuffer {
	return NewQuantizer(coeff, 255).Gray(img)
}

// QuantizeRGB quantizes the R, G and B channels of img independently. The
// alpha channel is dropped.
func QuantizeRGB(img *image.RGBA, coeff int) *IndexBuffer {
	return NewQuantizer(coeff, 255).RGB(img)
}

// Quantizer is a table-driven integer divider. Results are clamped at Max,
// which keeps a full-intensity pixel on the last glyph of a ramp whose
// coefficient does not divide 255 evenly.
type Quantizer struct {
	Coeff int
	Max   uint8
	table [256]uint8
}

// NewQuantizer precomputes the division table for coeff.
func NewQuantizer(coeff int, max uint8) *Quantizer {
	if coeff < 1 {
		panic("mosaic: NewQuantizer: coefficient must be positive")
	}
	q := &Quantizer{Coeff: coeff, Max: max}
	for v := range q.table {
		idx := v / coeff
		if idx > int(max) {
			idx = int(max)
		}
		q.table[v] = uint8(idx)
	}
	return q
}

// Index returns the quantized index of a single value.
func (q *Quantizer) Index(v uint8) uint8 {
	return q.table[v]
}

// Gray quantizes a single-channel image.
func (q *Quantizer) Gray(img *image.Gray) *IndexBuffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &IndexBuffer{
		Width:    w,
		Height:   h,
		Channels: 1,
		Pix:      make([]uint8, w*h),
	}

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		dst := out.Pix[y*w : (y+1)*w]
		for x, v := range row {
			dst[x] = q.table[v]
		}
	}

	return out
}

// RGB quantizes the color channels of img, dropping alpha.
func (q *Quantizer) RGB(img *image.RGBA) *IndexBuffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &IndexBuffer{
		Width:    w,
		Height:   h,
		Channels: 3,
		Pix:      make([]uint8, w*h*3),
	}

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := out.Pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			dst[x*3] = q.table[row[x*4]]
			dst[x*3+1] = q.table[row[x*4+1]]
			dst[x*3+2] = q.table[row[x*4+2]]
		}
	}

	return out
}
