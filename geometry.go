package main

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// ColorType is the PNG color type stored in IHDR.
type ColorType uint8

const (
	Grayscale      ColorType = 0
	Truecolor      ColorType = 2
	GrayscaleAlpha ColorType = 4
	TruecolorAlpha ColorType = 6
)

// Channels returns the samples per pixel, or 0 for an unsupported type.
func (c ColorType) Channels() uint64 {
	switch c {
	case Grayscale:
		return 1
	case GrayscaleAlpha:
		return 2
	case Truecolor:
		return 3
	case TruecolorAlpha:
		return 4
	}
	return 0
}

func (c ColorType) Valid() bool { return c.Channels() != 0 }

func (c ColorType) String() string {
	switch c {
	case Grayscale:
		return "g"
	case GrayscaleAlpha:
		return "ga"
	case Truecolor:
		return "rgb"
	case TruecolorAlpha:
		return "rgba"
	}
	return strconv.Itoa(int(c))
}

// ParseColorType accepts the numeric PNG values 0, 2, 4, 6 or the mnemonics
// g, ga, rgb and rgba.
func ParseColorType(s string) (ColorType, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.ParseUint(t, 10, 8); err == nil {
		if c := ColorType(n); c.Valid() {
			return c, nil
		}
		return 0, fmt.Errorf("%w: '%s'", ErrParseColorType, s)
	}
	switch t {
	case "g":
		return Grayscale, nil
	case "ga":
		return GrayscaleAlpha, nil
	case "rgb":
		return Truecolor, nil
	case "rgba":
		return TruecolorAlpha, nil
	}
	return 0, fmt.Errorf("%w: '%s'", ErrParseColorType, s)
}

func validBitDepth(d uint8) bool { return d == 8 || d == 16 }

func ParseBitDepth(s string) (uint8, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil || !validBitDepth(uint8(n)) {
		return 0, fmt.Errorf("%w: '%s'", ErrParseBitDepth, s)
	}
	return uint8(n), nil
}

// maxDimension is the largest width or height IHDR can carry.
const maxDimension = 1<<31 - 1

// GeometryOptions are the user overrides; zero values mean "derive".
type GeometryOptions struct {
	Width     uint64
	Height    uint64
	BitDepth  uint8
	ColorType ColorType
}

// Geometry is the raster shape a payload is laid out in.
type Geometry struct {
	Width     uint64
	Height    uint64
	BitDepth  uint8
	ColorType ColorType
}

func (g Geometry) BytesPerPixel() uint64 {
	return g.ColorType.Channels() * uint64(g.BitDepth) / 8
}

// RowBytes is the pixel data of one scanline, without its filter byte.
func (g Geometry) RowBytes() uint64 { return g.Width * g.BytesPerPixel() }

// Stride is one scanline including its leading filter byte.
func (g Geometry) Stride() uint64 { return g.RowBytes() + 1 }

// PixelBytes is how many payload bytes the raster holds.
func (g Geometry) PixelBytes() uint64 { return g.RowBytes() * g.Height }

// Capacity is the length of the filtered scanline stream fed to zlib.
func (g Geometry) Capacity() uint64 { return g.Stride() * g.Height }

func (g Geometry) Header() Header {
	return Header{
		Width:     uint32(g.Width),
		Height:    uint32(g.Height),
		BitDepth:  g.BitDepth,
		ColorType: g.ColorType,
	}
}

// NewGeometry derives the raster for a payload of size bytes.
//
// Without overrides the raster is close to square: width is the integer
// square root of the pixel count and height covers the rest. A fixed width
// recomputes the height, a fixed height recomputes the width. Inputs smaller
// than one pixel still get a 1x1 raster.
func NewGeometry(size uint64, o GeometryOptions) (Geometry, error) {
	if o.Width != 0 && o.Height != 0 {
		return Geometry{}, ErrWidthAndHeightDefined
	}
	if o.BitDepth == 0 {
		o.BitDepth = 8
	}
	if !validBitDepth(o.BitDepth) {
		return Geometry{}, fmt.Errorf("%w: '%d'", ErrParseBitDepth, o.BitDepth)
	}
	if !o.ColorType.Valid() {
		return Geometry{}, fmt.Errorf("%w: '%d'", ErrParseColorType, o.ColorType)
	}
	g := Geometry{BitDepth: o.BitDepth, ColorType: o.ColorType}
	bpp := g.BytesPerPixel()

	switch {
	case o.Height != 0:
		if o.Height > maxDimension {
			return Geometry{}, fmt.Errorf("%w: '%d'", ErrParseHeight, o.Height)
		}
		g.Height = o.Height
		g.Width = max(ceilDiv(size, o.Height*bpp), 1)
		if g.Width > maxDimension {
			return Geometry{}, fmt.Errorf("%w: '%d' needs a width of %d", ErrParseHeight, o.Height, g.Width)
		}
	case o.Width != 0:
		if o.Width > maxDimension {
			return Geometry{}, fmt.Errorf("%w: '%d'", ErrParseWidth, o.Width)
		}
		g.Width = o.Width
		g.Height = max(ceilDiv(size, o.Width*bpp), 1)
		if g.Height > maxDimension {
			return Geometry{}, fmt.Errorf("%w: '%d' needs a height of %d", ErrParseWidth, o.Width, g.Height)
		}
	default:
		g.Width = max(isqrt(size/bpp), 1)
		g.Height = max(ceilDiv(size, g.Width*bpp), 1)
		if g.Width > maxDimension || g.Height > maxDimension {
			return Geometry{}, fmt.Errorf("pngify: %d bytes do not fit in a PNG raster", size)
		}
	}

	if hi, _ := bits.Mul64(g.Stride(), g.Height); hi != 0 {
		return Geometry{}, fmt.Errorf("pngify: raster %dx%d is too large", g.Width, g.Height)
	}
	return g, nil
}

// isqrt returns floor(sqrt(n)) exactly, correcting float64 rounding.
func isqrt(n uint64) uint64 {
	r := uint64(math.Sqrt(float64(n)))
	if r > math.MaxUint32 {
		r = math.MaxUint32
	}
	for r*r > n {
		r--
	}
	for r < math.MaxUint32 && (r+1)*(r+1) <= n {
		r++
	}
	return r
}
