package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const version = "v1.0.0"

var errAborted = errors.New("pngify: aborted")

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, "Encodes and decodes files into PNGs and back\n\n"+
		"Usage:\n"+
		"  pngify encode [flags] INPUT [OUTPUT]\n"+
		"  pngify decode [flags] INPUT [OUTPUT]\n\n"+
		"Run 'pngify encode --help' or 'pngify decode --help' for the flags.\n")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errors.New("pngify: missing command")
	}
	switch args[0] {
	case "encode", "decode":
		o, err := parseOptions(args[0], args[1:], stderr)
		if err != nil {
			return err
		}
		c := &command{opts: o, rep: newReporter(o, stderr), stdin: stdin, stdout: stdout, stderr: stderr}
		c.rep.Infof("pngify %s", version)
		if args[0] == "encode" {
			return c.encode()
		}
		return c.decode()
	case "-V", "--version", "version":
		fmt.Fprintf(stdout, "pngify %s\n", version)
		return nil
	case "-h", "--help", "help":
		usage(stdout)
		return nil
	}
	usage(stderr)
	return fmt.Errorf("pngify: unknown command %q", args[0])
}

// command is one encode or decode invocation.
type command struct {
	opts   *Options
	rep    *reporter
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *command) encode() error {
	o := c.opts
	in, size, err := openInput(o.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	g, err := NewGeometry(size, o.Geometry)
	if err != nil {
		return err
	}
	enc := NewEncoder(o)
	c.rep.Debugf("Configuration:\n"+
		"[%s] Verification Mode\n"+
		"[%s] Trimming\n"+
		"[%s] Buffer Size: %d\n"+
		"[%s] Width: %dpx\n"+
		"[%s] Height: %dpx\n"+
		"[%s] Color Type: %s\n"+
		"[%s] Bit Depth: %d",
		check(o.Verify), check(o.Trim),
		check(o.BufferSize > 0), enc.BufferSize(g),
		check(o.Geometry.Width > 0), g.Width,
		check(o.Geometry.Height > 0), g.Height,
		check(o.Geometry.ColorType != Truecolor), g.ColorType,
		check(o.Geometry.BitDepth != 8), g.BitDepth)

	out, err := c.openOutput()
	if err != nil {
		return err
	}
	start := time.Now()
	src := c.rep.Track(in, size, "Encoding as PNG")
	err = enc.EncodeGeometry(out, src, size, g)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w '%s': %w", ErrEncode, o.Input, err)
	}
	c.rep.Done(src)
	c.rep.Infof("Encoded '%s' to '%s' in %v.", o.Input, out.name, time.Since(start))

	if o.Verify && !o.Stream {
		f, err := os.Open(o.Output)
		if err != nil {
			return fmt.Errorf("%w '%s': %w", ErrReadFail, o.Output, err)
		}
		defer f.Close()
		return c.verify(f, o.Output)
	}
	return nil
}

func (c *command) decode() error {
	o := c.opts
	in, size, err := openInput(o.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	dec := NewDecoder(o)
	c.rep.Debugf("Configuration:\n"+
		"[%s] Verification Mode\n"+
		"[%s] Trimming\n"+
		"[%s] Buffer Size: %d",
		check(o.Verify), check(o.Trim),
		check(o.BufferSize > 0), dec.BufferSize())

	if o.Verify {
		if err := c.verify(in, o.Input); err != nil {
			return err
		}
	}

	out, err := c.openOutput()
	if err != nil {
		return err
	}
	start := time.Now()
	src := c.rep.Track(in, size, "Converting from PNG")
	h, err := dec.Decode(out, bufio.NewReader(src))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w '%s': %w", ErrDecode, o.Input, err)
	}
	c.rep.Done(src)
	c.rep.Debugf("Raster: %dx%d, color type %s, bit depth %d, %d payload bytes written",
		h.Width, h.Height, h.ColorType, h.BitDepth, dec.Written())
	c.rep.Infof("Decoded '%s' to '%s' in %v.", o.Input, out.name, time.Since(start))

	if o.Trim && !o.Stream {
		return c.trim(o.Output, int64(dec.BufferSize()))
	}
	return nil
}

func (c *command) verify(f *os.File, name string) error {
	start := time.Now()
	if err := Verify(f); err != nil {
		return fmt.Errorf("'%s': %w", name, err)
	}
	c.rep.Infof("Verified '%s' in %v.", name, time.Since(start))
	return nil
}

func (c *command) trim(path string, window int64) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("%w '%s': %w", ErrReadFail, path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w '%s': %w", ErrTrim, path, err)
	}
	n, err := TrimTrailingZeros(f, st.Size(), window)
	if err != nil {
		return fmt.Errorf("%w '%s': %w", ErrTrim, path, err)
	}
	c.rep.Debugf("Trimmed '%s' from %d to %d bytes.", path, st.Size(), n)
	return nil
}

// openInput opens a regular file for reading and returns its size.
func openInput(path string) (*os.File, uint64, error) {
	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, fmt.Errorf("%w: '%s'", ErrInputDoesNotExist, path)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w '%s': %w", ErrReadFail, path, err)
	}
	if !st.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("%w: '%s'", ErrInputNotAFile, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w '%s': %w", ErrReadFail, path, err)
	}
	return f, uint64(st.Size()), nil
}

// output is a buffered destination; Close flushes it and closes the file.
type output struct {
	*bufio.Writer
	name string
	f    *os.File
}

func (o *output) Close() error {
	err := o.Flush()
	if o.f != nil {
		if cerr := o.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (c *command) openOutput() (*output, error) {
	o := c.opts
	if o.Stream {
		return &output{Writer: bufio.NewWriter(c.stdout), name: "stdout"}, nil
	}
	if _, err := os.Stat(o.Output); err == nil && !o.Yes {
		ok, err := confirm(c.stdin, c.stderr, fmt.Sprintf("The output file of '%s' currently exists. Would you like to override it? (y/N): ", o.Output))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errAborted
		}
	}
	f, err := os.Create(o.Output)
	if err != nil {
		return nil, fmt.Errorf("%w '%s': %w", ErrWriteFail, o.Output, err)
	}
	return &output{Writer: bufio.NewWriter(f), name: o.Output, f: f}, nil
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
