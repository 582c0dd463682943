// Package exr encodes and decodes uncompressed single-part scanline
// OpenEXR images with RGBA channels stored as HALF or FLOAT.
package exr

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	gomath "math"

	"github.com/x448/float16"
)

const (
	magic   = 20000630
	version = 2
)

// PixelType is the on-disk sample format.
type PixelType int32

const (
	Uint  PixelType = 0
	Half  PixelType = 1
	Float PixelType = 2
)

func (p PixelType) size() int {
	if p == Half {
		return 2
	}
	return 4
}

// String returns the EXR name of the pixel type.
func (p PixelType) String() string {
	switch p {
	case Uint:
		return "UINT"
	case Half:
		return "HALF"
	case Float:
		return "FLOAT"
	default:
		return fmt.Sprintf("PixelType(%d)", int32(p))
	}
}

// Decode errors.
var (
	ErrInvalidMagic   = errors.New("not an OpenEXR file")
	ErrUnsupported    = errors.New("unsupported OpenEXR feature")
	ErrTruncated      = errors.New("truncated OpenEXR data")
	ErrInvalidChannel = errors.New("invalid OpenEXR channel list")
)

// channelOrder is the on-disk order: EXR sorts channels by name.
var channelOrder = [4]struct {
	name   string
	offset int // index inside an RGBA pixel
}{{"A", 3}, {"B", 2}, {"G", 1}, {"R", 0}}

// Image is a decoded RGBA float image, row-major, y=0 first.
type Image struct {
	Width     int
	Height    int
	Pix       []float32
	PixelType PixelType
}

// At returns the RGBA value at (x, y).
func (m *Image) At(x, y int) [4]float32 {
	i := (y*m.Width + x) * 4
	return [4]float32{m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]}
}

// Encode writes a width x height RGBA image. pix holds 4 floats per pixel.
func Encode(w io.Writer, width, height int, pix []float32, pt PixelType) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if len(pix) != width*height*4 {
		return fmt.Errorf("pixel buffer has %d floats, want %d", len(pix), width*height*4)
	}
	if pt != Half && pt != Float {
		return fmt.Errorf("%w: pixel type %s", ErrUnsupported, pt)
	}

	var hdr bytes.Buffer
	le := func(v any) { _ = binary.Write(&hdr, binary.LittleEndian, v) }
	attr := func(name, typ string, value []byte) {
		hdr.WriteString(name)
		hdr.WriteByte(0)
		hdr.WriteString(typ)
		hdr.WriteByte(0)
		le(int32(len(value)))
		hdr.Write(value)
	}
	bin := func(vs ...any) []byte {
		var b bytes.Buffer
		for _, v := range vs {
			_ = binary.Write(&b, binary.LittleEndian, v)
		}
		return b.Bytes()
	}

	le(int32(magic))
	le(int32(version))

	var chlist bytes.Buffer
	for _, ch := range channelOrder {
		chlist.WriteString(ch.name)
		chlist.WriteByte(0)
		chlist.Write(bin(int32(pt), uint8(0), [3]uint8{}, int32(1), int32(1)))
	}
	chlist.WriteByte(0)

	box := bin(int32(0), int32(0), int32(width-1), int32(height-1))
	attr("channels", "chlist", chlist.Bytes())
	attr("compression", "compression", []byte{0})
	attr("dataWindow", "box2i", box)
	attr("displayWindow", "box2i", box)
	attr("lineOrder", "lineOrder", []byte{0})
	attr("pixelAspectRatio", "float", bin(float32(1)))
	attr("screenWindowCenter", "v2f", bin(float32(0), float32(0)))
	attr("screenWindowWidth", "float", bin(float32(1)))
	hdr.WriteByte(0)

	lineSize := width * 4 * pt.size()
	blockSize := 8 + lineSize
	first := uint64(hdr.Len() + 8*height)
	for y := 0; y < height; y++ {
		le(first + uint64(y*blockSize))
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr.Bytes()); err != nil {
		return err
	}

	line := make([]byte, blockSize)
	for y := 0; y < height; y++ {
		binary.LittleEndian.PutUint32(line[0:], uint32(y))
		binary.LittleEndian.PutUint32(line[4:], uint32(lineSize))
		off := 8
		for _, ch := range channelOrder {
			for x := 0; x < width; x++ {
				v := pix[(y*width+x)*4+ch.offset]
				if pt == Half {
					binary.LittleEndian.PutUint16(line[off:], float16.Fromfloat32(v).Bits())
				} else {
					binary.LittleEndian.PutUint32(line[off:], gomath.Float32bits(v))
				}
				off += pt.size()
			}
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

type channel struct {
	name string
	pt   PixelType
}

// Decode reads an image written by Encode, or any uncompressed
// single-part scanline file whose channels are a subset of R, G, B, A
// with HALF or FLOAT samples. Missing colour channels decode as 0 and a
// missing alpha as 1.
func Decode(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p := &parser{data: data}

	if p.int32() != magic {
		return nil, ErrInvalidMagic
	}
	if v := p.int32(); v&0xff != version || v&^0xff != 0 {
		return nil, fmt.Errorf("%w: version field 0x%x", ErrUnsupported, v)
	}

	var channels []channel
	var xMin, yMin, xMax, yMax int32
	haveWindow := false
	for {
		name := p.cstring()
		if p.err != nil {
			return nil, p.err
		}
		if name == "" {
			break
		}
		typ := p.cstring()
		size := int(p.int32())
		value := p.bytes(size)
		if p.err != nil {
			return nil, p.err
		}

		switch name {
		case "channels":
			if channels, err = parseChannels(value); err != nil {
				return nil, err
			}
		case "compression":
			if len(value) != 1 || value[0] != 0 {
				return nil, fmt.Errorf("%w: compressed data", ErrUnsupported)
			}
		case "dataWindow":
			if typ != "box2i" || len(value) != 16 {
				return nil, fmt.Errorf("%w: dataWindow", ErrUnsupported)
			}
			xMin = int32(binary.LittleEndian.Uint32(value[0:]))
			yMin = int32(binary.LittleEndian.Uint32(value[4:]))
			xMax = int32(binary.LittleEndian.Uint32(value[8:]))
			yMax = int32(binary.LittleEndian.Uint32(value[12:]))
			haveWindow = true
		}
	}
	if !haveWindow || len(channels) == 0 {
		return nil, fmt.Errorf("%w: missing channels or dataWindow", ErrInvalidChannel)
	}

	width, height := int(xMax-xMin+1), int(yMax-yMin+1)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: data window %d,%d..%d,%d", ErrUnsupported, xMin, yMin, xMax, yMax)
	}
	img := &Image{Width: width, Height: height, Pix: make([]float32, width*height*4), PixelType: channels[0].pt}
	hasAlpha := false
	for _, ch := range channels {
		hasAlpha = hasAlpha || ch.name == "A"
	}
	if !hasAlpha {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 1
		}
	}

	offsets := make([]uint64, height)
	for i := range offsets {
		offsets[i] = p.uint64()
	}
	if p.err != nil {
		return nil, p.err
	}

	for _, off := range offsets {
		if off > uint64(len(data)) {
			return nil, ErrTruncated
		}
		p.pos = int(off)
		y := int(p.int32()) - int(yMin)
		size := int(p.int32())
		block := p.bytes(size)
		if p.err != nil {
			return nil, p.err
		}
		if y < 0 || y >= height {
			return nil, fmt.Errorf("%w: scanline %d outside data window", ErrUnsupported, y)
		}
		if err := decodeLine(img, y, channels, block); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func decodeLine(img *Image, y int, channels []channel, block []byte) error {
	off := 0
	for _, ch := range channels {
		dst := -1
		for _, c := range channelOrder {
			if c.name == ch.name {
				dst = c.offset
			}
		}
		need := img.Width * ch.pt.size()
		if off+need > len(block) {
			return ErrTruncated
		}
		for x := 0; x < img.Width; x++ {
			var v float32
			switch ch.pt {
			case Half:
				v = float16.Frombits(binary.LittleEndian.Uint16(block[off:])).Float32()
			case Float:
				v = gomath.Float32frombits(binary.LittleEndian.Uint32(block[off:]))
			}
			if dst >= 0 {
				img.Pix[(y*img.Width+x)*4+dst] = v
			}
			off += ch.pt.size()
		}
	}
	return nil
}

func parseChannels(value []byte) ([]channel, error) {
	p := &parser{data: value}
	var out []channel
	for {
		name := p.cstring()
		if p.err != nil {
			return nil, ErrInvalidChannel
		}
		if name == "" {
			break
		}
		pt := PixelType(p.int32())
		p.bytes(4) // pLinear + reserved
		xs, ys := p.int32(), p.int32()
		if p.err != nil {
			return nil, ErrInvalidChannel
		}
		if pt != Half && pt != Float {
			return nil, fmt.Errorf("%w: channel %s is %s", ErrUnsupported, name, pt)
		}
		if xs != 1 || ys != 1 {
			return nil, fmt.Errorf("%w: subsampled channel %s", ErrUnsupported, name)
		}
		out = append(out, channel{name: name, pt: pt})
	}
	return out, nil
}

type parser struct {
	data []byte
	pos  int
	err  error
}

func (p *parser) bytes(n int) []byte {
	if p.err != nil {
		return nil
	}
	if n < 0 || p.pos+n > len(p.data) {
		p.err = ErrTruncated
		return nil
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b
}

func (p *parser) int32() int32 {
	b := p.bytes(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (p *parser) uint64() uint64 {
	b := p.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (p *parser) cstring() string {
	if p.err != nil {
		return ""
	}
	i := bytes.IndexByte(p.data[p.pos:], 0)
	if i < 0 {
		p.err = ErrTruncated
		return ""
	}
	s := string(p.data[p.pos : p.pos+i])
	p.pos += i + 1
	return s
}
