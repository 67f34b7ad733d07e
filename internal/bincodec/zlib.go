package bincodec

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Inflate runs a one-shot zlib decompression of compressed and verifies the
// result is exactly expectedSize bytes long. expectedSize < 0 disables the
// size check (used by callers that don't know the size up front).
func Inflate(compressed []byte, expectedSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("bincodec: zlib reader: %w", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if expectedSize >= 0 {
		buf.Grow(expectedSize)
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("bincodec: zlib inflate: %w", err)
	}

	if expectedSize >= 0 && buf.Len() != expectedSize {
		return buf.Bytes(), fmt.Errorf("bincodec: inflate produced %d bytes, want %d", buf.Len(), expectedSize)
	}
	return buf.Bytes(), nil
}

// Deflate compresses data at the default compression level, used by the
// RPT build path.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}
