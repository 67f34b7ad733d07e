// Package mapindex implements point and range lookups over a MAP file: a
// dense array of fixed-width records, pre-sorted by (line_id, field_id,
// value), searched with double binary search rather than a linear scan.
// The record layout is implementation-defined by the producing system and
// is passed in as an opaque Schema.
package mapindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// Schema describes one MAP file's fixed-width record layout. All integer
// fields are little-endian uint32; Value is a raw byte field of
// ValueLength bytes.
type Schema struct {
	RecordSize    int
	LineIDOffset  int
	FieldIDOffset int
	ValueOffset   int
	ValueLength   int
	PageOffset    int
}

// ErrShortRecord is returned when data's length isn't a multiple of the
// schema's record size.
var ErrShortRecord = fmt.Errorf("mapindex: data length is not a multiple of record size")

func (s Schema) recordCount(data []byte) (int, error) {
	if s.RecordSize <= 0 || len(data)%s.RecordSize != 0 {
		return 0, ErrShortRecord
	}
	return len(data) / s.RecordSize, nil
}

func (s Schema) recordAt(data []byte, i int) []byte {
	off := i * s.RecordSize
	return data[off : off+s.RecordSize]
}

func (s Schema) lineID(rec []byte) uint32  { return binary.LittleEndian.Uint32(rec[s.LineIDOffset:]) }
func (s Schema) fieldID(rec []byte) uint32 { return binary.LittleEndian.Uint32(rec[s.FieldIDOffset:]) }
func (s Schema) value(rec []byte) []byte   { return rec[s.ValueOffset : s.ValueOffset+s.ValueLength] }
func (s Schema) page(rec []byte) uint32    { return binary.LittleEndian.Uint32(rec[s.PageOffset:]) }

// compareKey orders a record against (lineID, fieldID, value) the same way
// the MAP file itself is sorted: by line_id, then field_id, then value.
func (s Schema) compareKey(rec []byte, lineID, fieldID uint32, value []byte) int {
	if d := compareU32(s.lineID(rec), lineID); d != 0 {
		return d
	}
	if d := compareU32(s.fieldID(rec), fieldID); d != 0 {
		return d
	}
	return bytes.Compare(s.value(rec), value)
}

func compareU32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Search returns the sorted, deduplicated page numbers of every record
// matching (lineID, fieldID, value), using two binary searches to find the
// matching span's bounds in O(log N), then a single linear pass over the
// span (O(M)) to collect results.
func Search(data []byte, schema Schema, lineID, fieldID uint32, value []byte) ([]uint32, error) {
	n, err := schema.recordCount(data)
	if err != nil {
		return nil, err
	}

	lo := sort.Search(n, func(i int) bool {
		return schema.compareKey(schema.recordAt(data, i), lineID, fieldID, value) >= 0
	})
	hi := sort.Search(n, func(i int) bool {
		return schema.compareKey(schema.recordAt(data, i), lineID, fieldID, value) > 0
	})

	seen := make(map[uint32]bool)
	var pages []uint32
	for i := lo; i < hi; i++ {
		p := schema.page(schema.recordAt(data, i))
		if !seen[p] {
			seen[p] = true
			pages = append(pages, p)
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	return pages, nil
}

// ListFields returns the distinct field IDs present for lineID, in
// structural (sorted) order.
func ListFields(data []byte, schema Schema, lineID uint32) ([]uint32, error) {
	n, err := schema.recordCount(data)
	if err != nil {
		return nil, err
	}

	lo := sort.Search(n, func(i int) bool { return schema.lineID(schema.recordAt(data, i)) >= lineID })
	hi := sort.Search(n, func(i int) bool { return schema.lineID(schema.recordAt(data, i)) > lineID })

	var fields []uint32
	var last uint32
	haveLast := false
	for i := lo; i < hi; i++ {
		f := schema.fieldID(schema.recordAt(data, i))
		if !haveLast || f != last {
			fields = append(fields, f)
			last = f
			haveLast = true
		}
	}
	return fields, nil
}

// ListValues returns the distinct values present for (lineID, fieldID), in
// structural (sorted) order.
func ListValues(data []byte, schema Schema, lineID, fieldID uint32) ([][]byte, error) {
	n, err := schema.recordCount(data)
	if err != nil {
		return nil, err
	}

	cmp := func(rec []byte) int {
		if d := compareU32(schema.lineID(rec), lineID); d != 0 {
			return d
		}
		return compareU32(schema.fieldID(rec), fieldID)
	}

	lo := sort.Search(n, func(i int) bool { return cmp(schema.recordAt(data, i)) >= 0 })
	hi := sort.Search(n, func(i int) bool { return cmp(schema.recordAt(data, i)) > 0 })

	var values [][]byte
	var last []byte
	for i := lo; i < hi; i++ {
		v := schema.value(schema.recordAt(data, i))
		if last == nil || !bytes.Equal(v, last) {
			cp := append([]byte(nil), v...)
			values = append(values, cp)
			last = cp
		}
	}
	return values, nil
}
