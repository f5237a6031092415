package main

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const defaultDecodeBuffer = 4 << 20

// idatReader presents the IDAT payloads following IHDR as one contiguous
// zlib stream. Chunk lengths, types and CRCs are consumed and dropped;
// the stream ends at IEND. Other chunk types are skipped.
type idatReader struct {
	cr        *ChunkReader
	remaining uint32 // payload bytes left in the current IDAT
	done      bool
	tmp       [8]byte
}

func newIDATReader(cr *ChunkReader) *idatReader {
	return &idatReader{cr: cr}
}

// ReadByte lets the inflater read without buffering ahead, so whatever it
// leaves unread is still in r once the zlib stream ends.
func (r *idatReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *idatReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if r.remaining == 0 {
			if r.done {
				break
			}
			if err := r.next(); err != nil {
				return n, err
			}
			continue
		}
		k := min(uint64(r.remaining), uint64(len(p)-n))
		m, err := io.ReadFull(r.cr, p[n:n+int(k)])
		n += m
		r.remaining -= uint32(m)
		if err != nil {
			return n, fmt.Errorf("%w: IDAT data: %w", ErrReadChunk, unexpected(err))
		}
		if r.remaining == 0 {
			if err := r.skipCRC(); err != nil {
				return n, err
			}
		}
	}
	if n == 0 && r.done && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// next reads the framing of the following chunk.
func (r *idatReader) next() error {
	if _, err := io.ReadFull(r.cr, r.tmp[:8]); err != nil {
		// A container must end with IEND.
		return fmt.Errorf("%w: %w", ErrReadChunk, unexpected(err))
	}
	length := binary.BigEndian.Uint32(r.tmp[:4])
	typ := [4]byte(r.tmp[4:8])
	switch {
	case typ == typeIEND:
		r.done = true
	case length > maxChunkLength:
		return fmt.Errorf("%w: length %d exceeds the PNG limit", ErrReadChunk, length)
	case typ != typeIDAT:
		if _, err := io.CopyN(io.Discard, r.cr, int64(length)+4); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrReadChunk, typ[:], unexpected(err))
		}
	case length == 0:
		return r.skipCRC()
	default:
		r.remaining = length
	}
	return nil
}

func (r *idatReader) skipCRC() error {
	if _, err := io.ReadFull(r.cr, r.tmp[:4]); err != nil {
		return fmt.Errorf("%w: IDAT crc: %w", ErrReadChunk, unexpected(err))
	}
	return nil
}

// scanlineStripper receives the inflated scanline stream in arbitrary
// spans and writes only the pixel bytes to dst, dropping each row's filter
// byte. remainder is how far into a stride the previous span ended.
type scanlineStripper struct {
	dst       io.Writer
	stride    uint64
	remainder uint64
	written   uint64
}

func newScanlineStripper(dst io.Writer, stride uint64) *scanlineStripper {
	return &scanlineStripper{dst: dst, stride: stride}
}

func (s *scanlineStripper) Write(p []byte) (int, error) {
	l := uint64(len(p))
	total := s.remainder + l
	rows := total / s.stride
	rem := total % s.stride

	// Offsets are relative to the start of the row the previous span ended
	// in, shifted back by remainder into p.
	for i := range rows {
		start := satSub(i*s.stride+1, s.remainder)
		end := (i+1)*s.stride - s.remainder
		if err := s.emit(p[start:end]); err != nil {
			return len(p), err
		}
	}
	if rem != 0 {
		start := min(satSub(rows*s.stride+1, s.remainder), l)
		if err := s.emit(p[start:]); err != nil {
			return len(p), err
		}
	}
	s.remainder = rem
	return len(p), nil
}

func (s *scanlineStripper) emit(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n, err := s.dst.Write(b)
	s.written += uint64(n)
	return err
}

// Decoder restores payloads from PNG containers. Its buffer is reused
// between calls.
type Decoder struct {
	opts    *Options
	buf     []byte
	written uint64
}

func NewDecoder(o *Options) *Decoder {
	if o == nil {
		o = &Options{}
	}
	return &Decoder{opts: o}
}

func (d *Decoder) BufferSize() int {
	if d.opts.BufferSize > 0 {
		return int(min(d.opts.BufferSize, maxChunkLength))
	}
	return defaultDecodeBuffer
}

// Written is the number of payload bytes the last Decode wrote.
func (d *Decoder) Written() uint64 { return d.written }

// Decode reads a container from src and writes the payload to dst. Without
// trimming the payload includes the raster's zero padding.
func (d *Decoder) Decode(dst io.Writer, src io.Reader) (Header, error) {
	d.written = 0
	cr := NewChunkReader(src)
	if err := cr.ReadSignature(); err != nil {
		return Header{}, err
	}
	c, err := cr.ReadChunk()
	if err != nil {
		return Header{}, err
	}
	if c != nil && !c.Verify() {
		return Header{}, fmt.Errorf("%w: %q", ErrInvalidCRC, c.Type[:])
	}
	h, err := ReadHeader(c)
	if err != nil {
		return h, err
	}

	ir := newIDATReader(cr)
	zr, err := zlib.NewReader(ir)
	if err != nil {
		return h, err
	}
	defer zr.Close()

	if size := d.BufferSize(); len(d.buf) < size {
		d.buf = make([]byte, size)
	}
	buf := d.buf[:d.BufferSize()]
	st := newScanlineStripper(dst, h.Geometry().Stride())
	defer func() { d.written = st.written }()
	for {
		n, err := zr.Read(buf)
		if n > 0 {
			if _, werr := st.Write(buf[:n]); werr != nil {
				return h, werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return h, err
		}
	}

	// The zlib stream is complete; the IDATs must end with it and the
	// container with IEND.
	n, err := io.Copy(io.Discard, ir)
	if err != nil {
		return h, err
	}
	if n > 0 {
		return h, fmt.Errorf("%w: %d bytes", ErrTrailingData, n)
	}
	return h, nil
}
