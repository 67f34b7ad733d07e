// Package bincodec provides the byte-cursor and zlib primitives shared by
// the rpt and afp packages: bounds-checked little/big-endian integer reads,
// marker scanning, and one-shot inflate/deflate.
package bincodec

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrTruncated is returned whenever a read would run past the end of the
// underlying buffer.
var ErrTruncated = errors.New("bincodec: truncated buffer")

// Cursor reads little- and big-endian integers and byte ranges out of a
// fixed buffer without ever assuming host byte order. All read methods are
// bounds-checked; none of them panic on malformed input.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor returns a Cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Pos returns the current read offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.data) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

// Seek repositions the cursor to an absolute offset. It fails if off lies
// outside [0, len(data)].
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.data) {
		return fmt.Errorf("bincodec: seek to %d out of range [0,%d]: %w", off, len(c.data), ErrTruncated)
	}
	c.pos = off
	return nil
}

// Bytes returns the next n bytes and advances the cursor.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, fmt.Errorf("bincodec: read %d bytes at %d: %w", n, c.pos, ErrTruncated)
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// U8 reads a single byte.
func (c *Cursor) U8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16LE reads a little-endian uint16.
func (c *Cursor) U16LE() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// U16BE reads a big-endian uint16.
func (c *Cursor) U16BE() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[1]) | uint16(b[0])<<8, nil
}

// U32LE reads a little-endian uint32.
func (c *Cursor) U32LE() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// U32BE reads a big-endian uint32.
func (c *Cursor) U32BE() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24, nil
}

// U48BE reads a 6-byte big-endian quantity (used for the SID authority
// field) into a uint64.
func (c *Cursor) U48BE() (uint64, error) {
	b, err := c.Bytes(6)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, nil
}

// U64LE reads a little-endian uint64.
func (c *Cursor) U64LE() (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// ReadU32LEAt reads a little-endian uint32 at an absolute offset without
// disturbing the cursor's own position, matching the random-access marker
// and directory reads the RPT reader needs.
func ReadU32LEAt(data []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(data) {
		return 0, fmt.Errorf("bincodec: read u32 at %d: %w", off, ErrTruncated)
	}
	b := data[off : off+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// FindMarker locates the next occurrence of marker in data starting at
// offset from. Per the design notes, this wraps the standard library's
// substring search rather than a hand-rolled scan loop.
func FindMarker(data []byte, marker string, from int) (int, bool) {
	if from < 0 || from > len(data) {
		return -1, false
	}
	idx := bytes.Index(data[from:], []byte(marker))
	if idx < 0 {
		return -1, false
	}
	return from + idx, true
}
