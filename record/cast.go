package record

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/tmpim/mosaic"
)

// A cast is a zstd compressed stream of draw commands. It starts with a
// header carrying the encoding parameters, enough to rebuild the artifacts,
// followed by one record per frame:
//
//	uint16 width, uint16 height, uint32 count,
//	count * (uint32 index, uint16 x, uint16 y)
//
// All integers are big endian.
var castMagic = [4]byte{'M', 'C', 'S', 'T'}

const castVersion = 1

// ErrNotCast is returned when a stream does not start with a cast header.
var ErrNotCast = errors.New("mosaic record: not a cast stream")

// CastFrame is one frame of a cast.
type CastFrame struct {
	Width    int
	Height   int
	Commands []mosaic.Command
}

// Validate checks that every command of f names an artifact of enc, so a
// corrupt or foreign cast is rejected before it is rendered.
func (f *CastFrame) Validate(enc mosaic.Encoding) error {
	for _, cmd := range f.Commands {
		if cmd.Index < 0 || cmd.Index >= enc.Len() || enc.Skip(cmd.Index) {
			return fmt.Errorf("mosaic record: cast frame: index %d out of range", cmd.Index)
		}
		if cmd.Pos.X >= f.Width || cmd.Pos.Y >= f.Height {
			return fmt.Errorf("mosaic record: cast frame: position %v outside %dx%d frame",
				cmd.Pos, f.Width, f.Height)
		}
	}
	return nil
}

// WriteTo writes the frame record to w.
func (f *CastFrame) WriteTo(w io.Writer) error {
	wr := bufio.NewWriter(w)

	binary.Write(wr, binary.BigEndian, uint16(f.Width))
	binary.Write(wr, binary.BigEndian, uint16(f.Height))
	binary.Write(wr, binary.BigEndian, uint32(len(f.Commands)))

	var rec [8]byte
	for _, cmd := range f.Commands {
		binary.BigEndian.PutUint32(rec[0:], uint32(cmd.Index))
		binary.BigEndian.PutUint16(rec[4:], uint16(cmd.Pos.X))
		binary.BigEndian.PutUint16(rec[6:], uint16(cmd.Pos.Y))
		wr.Write(rec[:])
	}

	return wr.Flush()
}

// Cast records rendered frames as draw commands.
type Cast struct {
	w    io.Writer
	enc  *zstd.Encoder
	info *mosaic.EncodingInfo
}

// NewCast returns a cast recorder writing to w. The header is written with
// the first frame. Closing w stays with the caller.
func NewCast(w io.Writer) (*Cast, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("mosaic record: NewCast: %w", err)
	}
	return &Cast{w: w, enc: enc}, nil
}

func (c *Cast) writeHeader(info mosaic.EncodingInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	wr := bufio.NewWriter(c.enc)
	wr.Write(castMagic[:])
	wr.WriteByte(castVersion)
	binary.Write(wr, binary.BigEndian, uint16(len(data)))
	wr.Write(data)
	return wr.Flush()
}

func (c *Cast) WriteFrame(r *mosaic.Rendered) error {
	info := r.Encoding.Describe()
	if c.info == nil {
		if err := c.writeHeader(info); err != nil {
			return fmt.Errorf("mosaic record: write cast header: %w", err)
		}
		c.info = &info
	} else if *c.info != info {
		return errors.New("mosaic record: encoding changed during cast")
	}

	size := r.Image.Bounds().Size()
	if size.X > math.MaxUint16 || size.Y > math.MaxUint16 {
		return fmt.Errorf("mosaic record: %dx%d frame is too large for a cast", size.X, size.Y)
	}
	f := CastFrame{Width: size.X, Height: size.Y, Commands: r.Commands}
	if err := f.WriteTo(c.enc); err != nil {
		return fmt.Errorf("mosaic record: write cast frame: %w", err)
	}
	return nil
}

// Close flushes and terminates the compressed stream.
func (c *Cast) Close() error {
	return c.enc.Close()
}

// CastReader reads a cast back.
type CastReader struct {
	dec  *zstd.Decoder
	rd   *bufio.Reader
	info mosaic.EncodingInfo
}

// OpenCast reads the cast header from r.
func OpenCast(r io.Reader) (*CastReader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("mosaic record: OpenCast: %w", err)
	}

	c := &CastReader{dec: dec, rd: bufio.NewReader(dec)}

	var magic [4]byte
	if _, err := io.ReadFull(c.rd, magic[:]); err != nil || magic != castMagic {
		dec.Close()
		return nil, ErrNotCast
	}

	version, err := c.rd.ReadByte()
	if err != nil {
		dec.Close()
		return nil, ErrNotCast
	}
	if version != castVersion {
		dec.Close()
		return nil, fmt.Errorf("mosaic record: unsupported cast version %d", version)
	}

	var n uint16
	if err := binary.Read(c.rd, binary.BigEndian, &n); err != nil {
		dec.Close()
		return nil, fmt.Errorf("mosaic record: read cast header: %w", err)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(c.rd, data); err != nil {
		dec.Close()
		return nil, fmt.Errorf("mosaic record: read cast header: %w", err)
	}
	if err := json.Unmarshal(data, &c.info); err != nil {
		dec.Close()
		return nil, fmt.Errorf("mosaic record: decode cast header: %w", err)
	}

	return c, nil
}

// Info returns the encoding parameters the cast was recorded with.
func (c *CastReader) Info() mosaic.EncodingInfo {
	return c.info
}

// Options returns converter options that rebuild the recorded encoding.
func (c *CastReader) Options() mosaic.Options {
	opts := mosaic.Options{
		Mode:  c.info.Mode,
		Size:  c.info.Size,
		Level: c.info.Level,
	}
	if c.info.Ramp != "" {
		opts.Ramp = mosaic.Ramp(c.info.Ramp)
	}
	return opts
}

// Next reads the next frame. It returns io.EOF after the last frame.
func (c *CastReader) Next() (*CastFrame, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(c.rd, hdr[:]); err == io.EOF {
		return nil, io.EOF
	} else if err != nil {
		return nil, fmt.Errorf("mosaic record: read cast frame: %w", err)
	}

	f := &CastFrame{
		Width:  int(binary.BigEndian.Uint16(hdr[0:])),
		Height: int(binary.BigEndian.Uint16(hdr[2:])),
	}
	count := binary.BigEndian.Uint32(hdr[4:])

	// count is untrusted, cap the preallocation at one command per cell
	f.Commands = make([]mosaic.Command, 0, min(int(count), f.Width*f.Height))
	var rec [8]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(c.rd, rec[:]); err != nil {
			return nil, fmt.Errorf("mosaic record: read cast frame: %w", err)
		}
		f.Commands = append(f.Commands, mosaic.Command{
			Index: int(binary.BigEndian.Uint32(rec[0:])),
			Pos: image.Pt(int(binary.BigEndian.Uint16(rec[4:])),
				int(binary.BigEndian.Uint16(rec[6:]))),
		})
	}

	return f, nil
}

// Close releases the decoder.
func (c *CastReader) Close() {
	c.dec.Close()
}
