package main

import (
	"bufio"
	"fmt"
	"io"
)

// Verify checks the signature and every chunk CRC of the container in r,
// from the first byte through IEND. r is rewound to the start afterwards.
func Verify(r io.ReadSeeker) (err error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrReadFail, err)
	}
	defer func() {
		if _, serr := r.Seek(0, io.SeekStart); serr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrReadFail, serr)
		}
	}()

	cr := NewChunkReader(bufio.NewReader(r))
	if err := cr.ReadSignature(); err != nil {
		return err
	}
	for i := 0; ; i++ {
		off := cr.Offset()
		c, err := cr.ReadChunk()
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: missing IEND: %w", ErrReadChunk, io.ErrUnexpectedEOF)
		}
		if !c.Verify() {
			return fmt.Errorf("%w: chunk %d (%q) at offset %d", ErrInvalidCRC, i, c.Type[:], off)
		}
		if i == 0 && c.Type != typeIHDR {
			return fmt.Errorf("%w: first chunk is %q, want IHDR", ErrInvalidHeader, c.Type[:])
		}
		if c.Type == typeIEND {
			return nil
		}
	}
}
