package main

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
)

// -----------------------------
// Helpers
// -----------------------------

// randomBytes returns n pseudo-random bytes whose last byte is nonzero.
func randomBytes(n int, seed uint64) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	if n > 0 && b[n-1] == 0 {
		b[n-1] = 1
	}
	return b
}

func encodeBytes(t testing.TB, data []byte, o *Options) ([]byte, Geometry) {
	t.Helper()
	var buf bytes.Buffer
	g, err := NewEncoder(o).Encode(&buf, bytes.NewReader(data), uint64(len(data)))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes(), g
}

func decodeBytes(t testing.TB, container []byte, o *Options) ([]byte, Header) {
	t.Helper()
	var buf bytes.Buffer
	dec := NewDecoder(o)
	h, err := dec.Decode(&buf, bytes.NewReader(container))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.Written() != uint64(buf.Len()) {
		t.Fatalf("Written() = %d, output has %d bytes", dec.Written(), buf.Len())
	}
	return buf.Bytes(), h
}

// -----------------------------
// Round trips
// -----------------------------

func TestEncodeDecode_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 2, 3, 7, 10, 64, 255, 1000, 4097, 65536 + 13}
	types := []GeometryOptions{
		{BitDepth: 8, ColorType: Grayscale},
		{BitDepth: 8, ColorType: Truecolor},
		{BitDepth: 8, ColorType: GrayscaleAlpha},
		{BitDepth: 16, ColorType: TruecolorAlpha},
		{BitDepth: 16, ColorType: Truecolor},
	}
	for _, gopts := range types {
		for _, n := range sizes {
			data := randomBytes(n, uint64(n)+uint64(gopts.ColorType))

			t.Run(fmt.Sprintf("trim/%s-%d/%d", gopts.ColorType, gopts.BitDepth, n), func(t *testing.T) {
				enc, _ := encodeBytes(t, data, &Options{Geometry: gopts, Trim: true})
				got, _ := decodeBytes(t, enc, nil)
				if !bytes.Equal(got, data) {
					t.Fatalf("size %d: round trip mismatch: got %d bytes want %d", n, len(got), len(data))
				}
			})

			t.Run(fmt.Sprintf("pad/%s-%d/%d", gopts.ColorType, gopts.BitDepth, n), func(t *testing.T) {
				enc, g := encodeBytes(t, data, &Options{Geometry: gopts})
				got, _ := decodeBytes(t, enc, nil)
				if uint64(len(got)) != g.PixelBytes() {
					t.Fatalf("size %d: decoded %d bytes, want raster capacity %d", n, len(got), g.PixelBytes())
				}
				if !bytes.Equal(got[:n], data) {
					t.Fatalf("size %d: payload prefix mismatch", n)
				}
				if len(bytes.TrimRight(got[n:], "\x00")) != 0 {
					t.Fatalf("size %d: padding is not all zero", n)
				}
			})
		}
	}
}

func TestEncodeDecode_BufferSizes(t *testing.T) {
	data := randomBytes(5000, 7)
	for _, size := range []int64{1, 2, 3, 17, 512, 1 << 20} {
		enc, _ := encodeBytes(t, data, &Options{BufferSize: size, Trim: true})
		got, _ := decodeBytes(t, enc, &Options{BufferSize: size})
		if !bytes.Equal(got, data) {
			t.Fatalf("buffer %d: round trip mismatch", size)
		}
	}
}

func TestEncodeDecode_TenByteScenario(t *testing.T) {
	data := []byte("0123456789")
	enc, g := encodeBytes(t, data, &Options{Geometry: GeometryOptions{BitDepth: 8, ColorType: Grayscale}})
	if g.Width != 3 || g.Height != 4 {
		t.Fatalf("geometry: got %dx%d want 3x4", g.Width, g.Height)
	}

	got, h := decodeBytes(t, enc, nil)
	want := Header{Width: 3, Height: 4, BitDepth: 8, ColorType: Grayscale}
	if h != want {
		t.Fatalf("IHDR: got %+v want %+v", h, want)
	}
	if h.Geometry() != g {
		t.Fatalf("geometry from IHDR: got %+v want %+v", h.Geometry(), g)
	}
	if !bytes.Equal(got, append([]byte("0123456789"), 0, 0)) {
		t.Fatalf("decoded: got %q", got)
	}

	path := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(path, got, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := TrimTrailingZeros(f, int64(len(got)), 4); err != nil {
		t.Fatalf("TrimTrailingZeros: %v", err)
	}
	trimmed, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(trimmed, data) {
		t.Fatalf("trimmed: got %q want %q", trimmed, data)
	}
}

func TestEncode_SizeLargerThanRaster(t *testing.T) {
	g := Geometry{Width: 2, Height: 2, BitDepth: 8, ColorType: Grayscale}
	var buf bytes.Buffer
	err := NewEncoder(nil).EncodeGeometry(&buf, bytes.NewReader(make([]byte, 5)), 5, g)
	if err == nil {
		t.Fatalf("expected error for a payload larger than the raster, got nil")
	}
}

// -----------------------------
// CLI
// -----------------------------

func TestRun_EncodeDecodeFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "payload.bin")
	data := randomBytes(12345, 42)
	if err := os.WriteFile(in, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"encode", "-s", "--verify", "-t", "g", in}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("encode: %v", err)
	}
	png := in + ".png"
	if _, err := os.Stat(png); err != nil {
		t.Fatalf("encode output: %v", err)
	}

	if err := run([]string{"decode", "--verify", "--trim", "-y", "-b", "1kb", png}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := os.ReadFile(in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip through files: got %d bytes want %d", len(got), len(data))
	}
	if stdout.Len() != 0 {
		t.Fatalf("unexpected stdout output %q", stdout.String())
	}
}

func TestRun_Stream(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "payload.bin")
	data := randomBytes(300, 3)
	if err := os.WriteFile(in, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"encode", in, "--stream", "--trim"}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if stderr.Len() != 0 {
		t.Fatalf("stream mode wrote diagnostics: %q", stderr.String())
	}
	if err := Verify(bytes.NewReader(stdout.Bytes())); err != nil {
		t.Fatalf("Verify streamed output: %v", err)
	}
	got, _ := decodeBytes(t, stdout.Bytes(), nil)
	if !bytes.Equal(got, data) {
		t.Fatalf("streamed round trip mismatch")
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name string
		args []string
		want error
	}{
		{name: "width_and_height", args: []string{"encode", "-w", "3", "-h", "4", filepath.Join(dir, "missing")}, want: ErrWidthAndHeightDefined},
		{name: "missing_input", args: []string{"encode", filepath.Join(dir, "missing")}, want: ErrInputDoesNotExist},
		{name: "directory_input", args: []string{"decode", dir}, want: ErrInputNotAFile},
		{name: "bad_width", args: []string{"encode", "--width", "abc", file}, want: ErrParseWidth},
		{name: "bad_height", args: []string{"encode", "--height", "0", file}, want: ErrParseHeight},
		{name: "bad_depth", args: []string{"encode", "-d", "12", file}, want: ErrParseBitDepth},
		{name: "bad_type", args: []string{"encode", "-t", "cmyk", file}, want: ErrParseColorType},
		{name: "bad_buffer", args: []string{"decode", "-b", "tenmb", file}, want: ErrParseBuffer},
		{name: "not_a_png", args: []string{"decode", "-s", "--verify", file, filepath.Join(dir, "y")}, want: ErrInvalidHeader},
		{name: "not_a_png_decode", args: []string{"decode", "-s", file, filepath.Join(dir, "y")}, want: ErrDecode},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(tc.args, nil, &stdout, &stderr)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}

func TestRun_OverwritePrompt(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a")
	out := filepath.Join(dir, "a.png")
	if err := os.WriteFile(in, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{"encode", in}, bytes.NewBufferString("n\n"), &stdout, &stderr)
	if !errors.Is(err, errAborted) {
		t.Fatalf("declined overwrite: got %v want %v", err, errAborted)
	}
	if b, _ := os.ReadFile(out); string(b) != "keep" {
		t.Fatalf("output was overwritten after refusal: %q", b)
	}

	if err := run([]string{"encode", in}, bytes.NewBufferString("y\n"), &stdout, &stderr); err != nil {
		t.Fatalf("accepted overwrite: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, Signature[:]) {
		t.Fatalf("output is not a PNG after accepted overwrite")
	}
}
