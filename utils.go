package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// headerLength is the IHDR payload size.
const headerLength = 13

// Header is the decoded IHDR chunk.
type Header struct {
	Width     uint32
	Height    uint32
	BitDepth  uint8
	ColorType ColorType
}

func (h Header) Geometry() Geometry {
	return Geometry{
		Width:     uint64(h.Width),
		Height:    uint64(h.Height),
		BitDepth:  h.BitDepth,
		ColorType: h.ColorType,
	}
}

// WriteHeader appends the 13-byte IHDR payload to b.
func WriteHeader(b *bytes.Buffer, h Header) error {
	// width(uint32) + height(uint32) + depth + color type + compression, filter, interlace
	if err := binary.Write(b, binary.BigEndian, h.Width); err != nil {
		return err
	}
	if err := binary.Write(b, binary.BigEndian, h.Height); err != nil {
		return err
	}
	_, err := b.Write([]byte{h.BitDepth, byte(h.ColorType), 0, 0, 0})
	return err
}

// ReadHeader decodes and validates an IHDR chunk.
func ReadHeader(c *Chunk) (Header, error) {
	var h Header
	if c == nil {
		return h, fmt.Errorf("%w: missing IHDR chunk", ErrInvalidHeader)
	}
	if c.Type != typeIHDR {
		return h, fmt.Errorf("%w: first chunk is %q, want IHDR", ErrInvalidHeader, c.Type[:])
	}
	if len(c.Data) != headerLength {
		return h, fmt.Errorf("%w: IHDR has %d bytes, want %d", ErrInvalidHeader, len(c.Data), headerLength)
	}

	r := bytes.NewReader(c.Data)
	if err := binary.Read(r, binary.BigEndian, &h.Width); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.Height); err != nil {
		return h, err
	}
	var rest [5]byte
	if _, err := r.Read(rest[:]); err != nil {
		return h, err
	}
	h.BitDepth = rest[0]
	h.ColorType = ColorType(rest[1])

	switch {
	case h.Width == 0 || h.Height == 0:
		return h, fmt.Errorf("%w: empty raster %dx%d", ErrInvalidHeader, h.Width, h.Height)
	case !validBitDepth(h.BitDepth):
		return h, fmt.Errorf("%w: bit depth %d", ErrInvalidHeader, h.BitDepth)
	case !h.ColorType.Valid():
		return h, fmt.Errorf("%w: color type %d", ErrInvalidHeader, h.ColorType)
	case rest[2] != 0 || rest[3] != 0 || rest[4] != 0:
		return h, fmt.Errorf("%w: unsupported compression/filter/interlace % x", ErrInvalidHeader, rest[2:])
	}
	return h, nil
}

// satSub returns a-b, or 0 when b > a.
func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}
