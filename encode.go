package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// filterNone is the PNG "None" scanline filter.
const filterNone = 0

// Default encode buffer bounds; the default is one raster row within them.
const (
	minEncodeBuffer = 32 << 10
	maxEncodeBuffer = 8 << 20
)

// scanlineReader turns a flat payload into the filtered scanline stream of
// a raster: a filter byte before every row, and zero padding after the
// payload up to the raster capacity unless trim is set.
type scanlineReader struct {
	src      io.Reader
	size     uint64 // payload bytes expected from src
	consumed uint64 // payload bytes read from src
	produced uint64 // payload and padding bytes emitted, filter bytes excluded
	capacity uint64 // payload bytes the raster holds
	stride   uint64
	rowPos   uint64 // position within the current stride, 0 = filter byte next
	trim     bool
}

func newScanlineReader(src io.Reader, size uint64, g Geometry, trim bool) *scanlineReader {
	return &scanlineReader{
		src:      src,
		size:     size,
		capacity: g.PixelBytes(),
		stride:   g.Stride(),
		trim:     trim,
	}
}

func (s *scanlineReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.produced >= s.capacity && s.rowPos == 0 {
		return 0, io.EOF
	}
	exhausted := s.consumed >= s.size
	if exhausted && s.trim {
		return 0, io.EOF
	}

	n := 0
	if s.rowPos == 0 {
		p[0] = filterNone
		n = 1
		s.rowPos = 1
	}
	want := min(uint64(len(p)-n), s.stride-s.rowPos, satSub(s.capacity, s.produced))

	if exhausted {
		clear(p[n : n+int(want)])
		s.produced += want
		s.step(want)
		return n + int(want), nil
	}

	want = min(want, s.size-s.consumed)
	if want == 0 {
		return n, nil
	}
	m, err := s.src.Read(p[n : n+int(want)])
	s.consumed += uint64(m)
	s.produced += uint64(m)
	s.step(uint64(m))
	n += m
	if err == io.EOF {
		if s.consumed < s.size {
			return n, io.ErrUnexpectedEOF
		}
		err = nil
	}
	return n, err
}

func (s *scanlineReader) step(m uint64) {
	s.rowPos += m
	if s.rowPos == s.stride {
		s.rowPos = 0
	}
}

// idatWriter collects compressed bytes and emits them as IDAT chunks of at
// most len(buf) bytes.
type idatWriter struct {
	cw  *ChunkWriter
	buf []byte
	n   int
}

func (w *idatWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		k := copy(w.buf[w.n:], p)
		w.n += k
		written += k
		p = p[k:]
		if w.n == len(w.buf) {
			if err := w.Flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (w *idatWriter) Flush() error {
	if w.n == 0 {
		return nil
	}
	_, err := w.cw.WriteChunk(typeIDAT, w.buf[:w.n])
	w.n = 0
	return err
}

// Encoder writes payloads as PNG containers. Scratch buffers are reused
// between calls, so an Encoder must not be used concurrently.
type Encoder struct {
	opts    *Options
	scratch []byte
	idat    []byte
}

func NewEncoder(o *Options) *Encoder {
	if o == nil {
		o = &Options{}
	}
	return &Encoder{opts: o}
}

// BufferSize is the I/O buffer, and the IDAT chunk limit, used for g.
func (e *Encoder) BufferSize(g Geometry) int {
	if e.opts.BufferSize > 0 {
		return int(min(e.opts.BufferSize, maxChunkLength))
	}
	return int(min(max(g.RowBytes(), minEncodeBuffer), maxEncodeBuffer))
}

// Encode derives the geometry for size bytes and writes src to dst as a PNG.
func (e *Encoder) Encode(dst io.Writer, src io.Reader, size uint64) (Geometry, error) {
	g, err := NewGeometry(size, e.opts.Geometry)
	if err != nil {
		return g, err
	}
	return g, e.EncodeGeometry(dst, src, size, g)
}

// EncodeGeometry writes exactly size bytes of src laid out as g.
func (e *Encoder) EncodeGeometry(dst io.Writer, src io.Reader, size uint64, g Geometry) error {
	if size > g.PixelBytes() {
		return fmt.Errorf("pngify: %d bytes do not fit a %dx%d raster", size, g.Width, g.Height)
	}
	bufSize := e.BufferSize(g)
	if cap(e.scratch) < bufSize {
		e.scratch = make([]byte, bufSize)
		e.idat = make([]byte, bufSize)
	}

	cw := NewChunkWriter(dst)
	if _, err := cw.WriteSignature(); err != nil {
		return err
	}
	var hdr bytes.Buffer
	if err := WriteHeader(&hdr, g.Header()); err != nil {
		return err
	}
	if _, err := cw.WriteChunk(typeIHDR, hdr.Bytes()); err != nil {
		return err
	}

	iw := &idatWriter{cw: cw, buf: e.idat[:bufSize]}
	zw, err := zlib.NewWriterLevel(iw, zlib.BestSpeed)
	if err != nil {
		return err
	}
	sr := newScanlineReader(src, size, g, e.opts.Trim)
	if _, err := io.CopyBuffer(zw, sr, e.scratch[:bufSize]); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := iw.Flush(); err != nil {
		return err
	}

	_, err = cw.WriteChunk(typeIEND, nil)
	return err
}
