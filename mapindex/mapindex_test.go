package mapindex_test

import (
	"encoding/binary"
	"testing"

	"github.com/frijswijk/intellistor-migration/mapindex"
)

// record layout: line_id(4) field_id(4) value(4) page(4) = 16 bytes.
var testSchema = mapindex.Schema{
	RecordSize:    16,
	LineIDOffset:  0,
	FieldIDOffset: 4,
	ValueOffset:   8,
	ValueLength:   4,
	PageOffset:    12,
}

func buildRecord(lineID, fieldID, value, page uint32) []byte {
	rec := make([]byte, 16)
	binary.LittleEndian.PutUint32(rec[0:], lineID)
	binary.LittleEndian.PutUint32(rec[4:], fieldID)
	binary.LittleEndian.PutUint32(rec[8:], value)
	binary.LittleEndian.PutUint32(rec[12:], page)
	return rec
}

func buildValueBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// buildMAP constructs a sorted MAP body from (line_id, field_id, value,
// page) tuples; the caller is responsible for pre-sorting.
func buildMAP(records [][4]uint32) []byte {
	var data []byte
	for _, r := range records {
		data = append(data, buildRecord(r[0], r[1], r[2], r[3])...)
	}
	return data
}

func TestSearchFindsMatchingPages(t *testing.T) {
	data := buildMAP([][4]uint32{
		{1, 1, 10, 100},
		{1, 1, 20, 101},
		{1, 1, 20, 102},
		{1, 2, 5, 200},
		{2, 1, 10, 300},
	})

	pages, err := mapindex.Search(data, testSchema, 1, 1, buildValueBytes(20))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(pages) != 2 || pages[0] != 101 || pages[1] != 102 {
		t.Fatalf("pages = %v, want [101 102]", pages)
	}
}

func TestSearchNoMatch(t *testing.T) {
	data := buildMAP([][4]uint32{{1, 1, 10, 100}})
	pages, err := mapindex.Search(data, testSchema, 9, 9, buildValueBytes(0))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("pages = %v, want none", pages)
	}
}

func TestSearchRejectsMisalignedData(t *testing.T) {
	if _, err := mapindex.Search([]byte{1, 2, 3}, testSchema, 0, 0, nil); err == nil {
		t.Fatal("expected error for misaligned data")
	}
}

func TestListFieldsAndValues(t *testing.T) {
	data := buildMAP([][4]uint32{
		{1, 1, 10, 100},
		{1, 1, 20, 101},
		{1, 2, 5, 200},
	})

	fields, err := mapindex.ListFields(data, testSchema, 1)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	if len(fields) != 2 || fields[0] != 1 || fields[1] != 2 {
		t.Fatalf("fields = %v, want [1 2]", fields)
	}

	values, err := mapindex.ListValues(data, testSchema, 1, 1)
	if err != nil {
		t.Fatalf("ListValues: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("values = %v, want 2 distinct values", values)
	}
}
