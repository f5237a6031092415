package main

import (
	"flag"
	"fmt"
	"io"
	"math/bits"
	"strconv"
	"strings"
)

// Options is the configuration of one encode or decode run.
type Options struct {
	Input  string
	Output string

	Geometry   GeometryOptions
	BufferSize int64 // 0 = default for the direction

	Trim     bool
	Verify   bool
	Stream   bool
	Yes      bool
	Verbose  bool
	Silent   bool
	Progress bool
}

var byteSuffixes = []struct {
	suffix string
	scale  uint64
}{
	{"gb", 1 << 30},
	{"mb", 1 << 20},
	{"kb", 1 << 10},
	{"b", 1},
}

// ParseByteSize parses quantities such as 100, 1kb, 10MB or 1 gb.
func ParseByteSize(s string) (uint64, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	scale := uint64(1)
	for _, b := range byteSuffixes {
		if strings.HasSuffix(t, b.suffix) {
			t = strings.TrimSpace(strings.TrimSuffix(t, b.suffix))
			scale = b.scale
			break
		}
	}
	n, err := strconv.ParseUint(t, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: '%s'", ErrParseBuffer, s)
	}
	hi, v := bits.Mul64(n, scale)
	if hi != 0 || v > 1<<62 {
		return 0, fmt.Errorf("%w: '%s'", ErrParseBuffer, s)
	}
	return v, nil
}

func parseDimension(s string, kind error) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 || n > maxDimension {
		return 0, fmt.Errorf("%w: '%s'", kind, s)
	}
	return n, nil
}

// parseOptions parses the flags and positional arguments of a subcommand.
// Flags may appear on either side of INPUT [OUTPUT].
func parseOptions(cmd string, args []string, stderr io.Writer) (*Options, error) {
	o := &Options{Geometry: GeometryOptions{BitDepth: 8, ColorType: Truecolor}}
	fs := flag.NewFlagSet("pngify "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var width, height, depth, ctype, buffer string
	if cmd == "encode" {
		fs.StringVar(&width, "w", "", "")
		fs.StringVar(&width, "width", "", "width of the image in pixels")
		fs.StringVar(&height, "h", "", "")
		fs.StringVar(&height, "height", "", "height of the image in pixels")
		fs.StringVar(&depth, "d", "", "")
		fs.StringVar(&depth, "depth", "", "bit depth, 8 or 16")
		fs.StringVar(&ctype, "t", "", "")
		fs.StringVar(&ctype, "type", "", "color type (0, 2, 4, 6, g, ga, rgb, rgba)")
	}
	fs.StringVar(&buffer, "b", "", "")
	fs.StringVar(&buffer, "buffer", "", "limiting buffer size (ie: 100, 1kb, 10mb, 1gb)")
	fs.BoolVar(&o.Yes, "y", false, "")
	fs.BoolVar(&o.Yes, "yes", false, "overwrite the output without asking")
	fs.BoolVar(&o.Verify, "verify", false, "verify the PNG before reading it")
	fs.BoolVar(&o.Verbose, "v", false, "")
	fs.BoolVar(&o.Verbose, "verbose", false, "verbose output")
	fs.BoolVar(&o.Silent, "s", false, "")
	fs.BoolVar(&o.Silent, "silent", false, "prevent all output")
	fs.BoolVar(&o.Progress, "p", false, "")
	fs.BoolVar(&o.Progress, "progress", false, "display the progress")
	fs.BoolVar(&o.Stream, "stream", false, "stream the output to stdout")
	fs.BoolVar(&o.Trim, "trim", false, "trim the output (remove trailing null bytes)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pngify %s [flags] INPUT [OUTPUT]\n", cmd)
		fs.PrintDefaults()
	}

	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			pos = append(pos, rest...)
			break
		}
		if len(rest) == 0 {
			break
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}
	if len(pos) == 0 || len(pos) > 2 {
		fs.Usage()
		return nil, fmt.Errorf("pngify: %s takes INPUT [OUTPUT]", cmd)
	}

	if width != "" && height != "" {
		return nil, ErrWidthAndHeightDefined
	}
	var err error
	if width != "" {
		if o.Geometry.Width, err = parseDimension(width, ErrParseWidth); err != nil {
			return nil, err
		}
	}
	if height != "" {
		if o.Geometry.Height, err = parseDimension(height, ErrParseHeight); err != nil {
			return nil, err
		}
	}
	if depth != "" {
		if o.Geometry.BitDepth, err = ParseBitDepth(depth); err != nil {
			return nil, err
		}
	}
	if ctype != "" {
		if o.Geometry.ColorType, err = ParseColorType(ctype); err != nil {
			return nil, err
		}
	}
	if buffer != "" {
		n, err := ParseByteSize(buffer)
		if err != nil {
			return nil, err
		}
		o.BufferSize = int64(n)
	}

	if o.Stream {
		o.Silent = true
	}
	if o.Silent {
		o.Yes = true
	}

	o.Input = pos[0]
	if len(pos) == 2 {
		o.Output = pos[1]
	} else {
		o.Output = defaultOutput(cmd, o.Input)
	}
	return o, nil
}

func defaultOutput(cmd, input string) string {
	if cmd == "encode" {
		return input + ".png"
	}
	if i := strings.LastIndex(input, ".png"); i > 0 {
		return input[:i]
	}
	return input + ".decoded"
}
