package main

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Signature is the 8-byte PNG magic number written before the first chunk.
var Signature = [8]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var (
	typeIHDR = [4]byte{'I', 'H', 'D', 'R'}
	typeIDAT = [4]byte{'I', 'D', 'A', 'T'}
	typeIEND = [4]byte{'I', 'E', 'N', 'D'}
)

// PNG caps chunk lengths at 2^31-1.
const maxChunkLength = 1<<31 - 1

// Chunk is one length-prefixed, typed and checksummed record of the container.
type Chunk struct {
	Type [4]byte
	Data []byte
	CRC  uint32
}

// Checksum returns the CRC32 (IEEE) of typ followed by data.
func Checksum(typ [4]byte, data []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(typ[:])
	h.Write(data)
	return h.Sum32()
}

// Verify reports whether the stored CRC matches the chunk contents.
func (c *Chunk) Verify() bool {
	return Checksum(c.Type, c.Data) == c.CRC
}

type ChunkWriter struct {
	w   io.Writer
	tmp [8]byte
}

func NewChunkWriter(w io.Writer) *ChunkWriter {
	return &ChunkWriter{w: w}
}

func (cw *ChunkWriter) WriteSignature() (int, error) {
	return cw.w.Write(Signature[:])
}

// WriteChunk writes length, type, data and CRC and returns the number of
// bytes written.
func (cw *ChunkWriter) WriteChunk(typ [4]byte, data []byte) (int, error) {
	if len(data) > maxChunkLength {
		return 0, fmt.Errorf("pngify: chunk of %d bytes exceeds the PNG limit", len(data))
	}
	binary.BigEndian.PutUint32(cw.tmp[:4], uint32(len(data)))
	copy(cw.tmp[4:], typ[:])
	total, err := cw.w.Write(cw.tmp[:8])
	if err != nil {
		return total, err
	}
	n, err := cw.w.Write(data)
	total += n
	if err != nil {
		return total, err
	}
	binary.BigEndian.PutUint32(cw.tmp[:4], Checksum(typ, data))
	n, err = cw.w.Write(cw.tmp[:4])
	return total + n, err
}

// ChunkReader reads the container sequentially. It is also an io.Reader over
// the raw container bytes so that framing can be consumed piecemeal.
type ChunkReader struct {
	r   io.Reader
	n   int64
	tmp [8]byte
}

func NewChunkReader(r io.Reader) *ChunkReader {
	return &ChunkReader{r: r}
}

func (cr *ChunkReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// Offset is the number of container bytes consumed so far.
func (cr *ChunkReader) Offset() int64 { return cr.n }

func (cr *ChunkReader) ReadSignature() error {
	var sig [8]byte
	if _, err := io.ReadFull(cr, sig[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if sig != Signature {
		return fmt.Errorf("%w: bad signature % x", ErrInvalidHeader, sig[:])
	}
	return nil
}

// ReadChunk reads the next chunk. It returns nil, nil when the input ends
// cleanly where a chunk length was expected.
func (cr *ChunkReader) ReadChunk() (*Chunk, error) {
	n, err := io.ReadFull(cr, cr.tmp[:4])
	if n == 0 && err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: length: %w", ErrReadChunk, err)
	}
	length := binary.BigEndian.Uint32(cr.tmp[:4])
	if length > maxChunkLength {
		return nil, fmt.Errorf("%w: length %d exceeds the PNG limit", ErrReadChunk, length)
	}

	c := &Chunk{Data: make([]byte, length)}
	if _, err := io.ReadFull(cr, c.Type[:]); err != nil {
		return nil, fmt.Errorf("%w: type: %w", ErrReadChunk, unexpected(err))
	}
	if _, err := io.ReadFull(cr, c.Data); err != nil {
		return nil, fmt.Errorf("%w: %s data: %w", ErrReadChunk, c.Type[:], unexpected(err))
	}
	if _, err := io.ReadFull(cr, cr.tmp[:4]); err != nil {
		return nil, fmt.Errorf("%w: %s crc: %w", ErrReadChunk, c.Type[:], unexpected(err))
	}
	c.CRC = binary.BigEndian.Uint32(cr.tmp[:4])
	return c, nil
}

// unexpected turns a clean EOF in the middle of a chunk into a truncation.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
