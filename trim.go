package main

import "io"

type truncater interface {
	io.ReaderAt
	Truncate(size int64) error
}

// TrimTrailingZeros truncates f after its last nonzero byte, reading
// backwards window bytes at a time. It returns the resulting size; a file
// of only zeros is truncated to zero length.
func TrimTrailingZeros(f truncater, size, window int64) (int64, error) {
	if window <= 0 {
		window = defaultDecodeBuffer
	}
	buf := make([]byte, min(window, size))
	end := size
	for end > 0 {
		start := max(end-window, 0)
		block := buf[:end-start]
		if n, err := f.ReadAt(block, start); n < len(block) {
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return size, err
		}
		for i := len(block) - 1; i >= 0; i-- {
			if block[i] == 0 {
				continue
			}
			trimmed := start + int64(i) + 1
			if trimmed == size {
				return size, nil
			}
			return trimmed, f.Truncate(trimmed)
		}
		end = start
	}
	if size == 0 {
		return 0, nil
	}
	return 0, f.Truncate(0)
}
