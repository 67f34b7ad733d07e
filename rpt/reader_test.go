package rpt_test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/frijswijk/intellistor-migration/rpt"
)

// buildMinimalRPT assembles a synthetic, directory-guided RPT file with two
// pages split across one section, for exercising Open end to end.
func buildMinimalRPT(t *testing.T) []byte {
	t.Helper()

	page1 := []byte("line one\n")
	page2 := []byte("line two\n")

	deflate := func(b []byte) []byte {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(b); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}

	c1 := deflate(page1)
	c2 := deflate(page2)

	// Compressed region starts at 0x200, relative offsets are measured
	// from InstHeaderOffset (0xF0).
	const instHdrOff = 0xF0
	p1AbsOff := 0x200
	p1RelOff := p1AbsOff - instHdrOff
	p2AbsOff := p1AbsOff + len(c1)
	p2RelOff := p2AbsOff - instHdrOff

	full := make([]byte, p2AbsOff+len(c2))
	copy(full[p1AbsOff:], c1)
	copy(full[p2AbsOff:], c2)

	// File header: RPTFILEHDR<tab>domain:species<tab>timestamp, padded to
	// 240 bytes with the 0x1A sentinel then NUL.
	line := "RPTFILEHDR\t7:42\t2024-01-01 00:00:00"
	copy(full, line)
	full[len(line)] = 0x1A

	// Table directory: page_count@0x1D4, section_count@0x1E4,
	// section_data_offset@0x1E8.
	putU32 := func(off int, v uint32) {
		if off+4 > len(full) {
			grown := make([]byte, off+4)
			copy(grown, full)
			full = grown
		}
		binary.LittleEndian.PutUint32(full[off:], v)
	}
	putU32(rpt.PageCountOffset, 2)
	putU32(rpt.SectionCountOff, 1)

	// Section directory: appended after the compressed data.
	sectionDataOff := len(full)
	putU32(rpt.SectionDataOffOff, uint32(sectionDataOff))

	var tail bytes.Buffer
	tail.WriteString("SECTIONHDR")
	tail.Write(make([]byte, 3))
	writeU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		tail.Write(b[:])
	}
	writeU32(100) // section id
	writeU32(1)   // start page
	writeU32(2)   // page count
	tail.WriteString("ENDDATA")

	tail.WriteString("PAGETBLHDR")
	writePageEntry := func(relOff uint32, lineWidth, linesPerPage uint16, uncompressed, compressed uint32) {
		var e [24]byte
		binary.LittleEndian.PutUint32(e[0:], relOff)
		binary.LittleEndian.PutUint32(e[4:], 0)
		binary.LittleEndian.PutUint16(e[8:], lineWidth)
		binary.LittleEndian.PutUint16(e[10:], linesPerPage)
		binary.LittleEndian.PutUint32(e[12:], uncompressed)
		binary.LittleEndian.PutUint32(e[16:], compressed)
		tail.Write(e[:])
	}
	writePageEntry(uint32(p1RelOff), 9, 1, uint32(len(page1)), uint32(len(c1)))
	writePageEntry(uint32(p2RelOff), 9, 1, uint32(len(page2)), uint32(len(c2)))
	tail.WriteString("ENDDATA")

	full = append(full, tail.Bytes()...)
	return full
}

func TestOpenParsesPagesAndSections(t *testing.T) {
	data := buildMinimalRPT(t)

	doc, err := rpt.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if doc.DomainID != "7" || doc.SpeciesID != "42" {
		t.Fatalf("domain/species = %q/%q, want 7/42", doc.DomainID, doc.SpeciesID)
	}
	if doc.Timestamp != "2024-01-01 00:00:00" {
		t.Fatalf("timestamp = %q", doc.Timestamp)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", doc.PageCount())
	}
	if string(doc.Pages[0].Text) != "line one\n" {
		t.Fatalf("page 1 text = %q", doc.Pages[0].Text)
	}
	if string(doc.Pages[1].Text) != "line two\n" {
		t.Fatalf("page 2 text = %q", doc.Pages[1].Text)
	}

	if len(doc.Sections) != 1 || doc.Sections[0].ID != 100 {
		t.Fatalf("sections = %+v", doc.Sections)
	}
	if !doc.Pages[0].HasSection || doc.Pages[0].SectionID != 100 {
		t.Fatalf("page 1 section = %+v", doc.Pages[0])
	}

	if got := string(doc.Text([]int{2, 1})); got != "line two\nline one\n" {
		t.Fatalf("Text([2,1]) = %q", got)
	}
	if len(doc.Warnings) != 0 {
		t.Fatalf("Warnings = %v, want none for a well-formed file", doc.Warnings)
	}
}

func TestOpenWarnsOnPageOutsideAnySection(t *testing.T) {
	data := buildMinimalRPT(t)

	// Shrink the one section to cover only page 1, leaving page 2 orphaned;
	// the reader still parses it but records a warning rather than failing.
	sectionOff := bytes.Index(data, []byte("SECTIONHDR")) + len("SECTIONHDR") + 3
	binary.LittleEndian.PutUint32(data[sectionOff+8:], 1) // page_count = 1

	doc, err := rpt.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.Pages[1].HasSection {
		t.Fatalf("page 2 unexpectedly has a section: %+v", doc.Pages[1])
	}
	if len(doc.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want exactly one", doc.Warnings)
	}
}

func TestOpenRejectsBadPrefix(t *testing.T) {
	data := make([]byte, rpt.FileHeaderSize+rpt.TableDirSize)
	copy(data, "NOTARPTHDR")
	if _, err := rpt.Open(data); err == nil {
		t.Fatal("expected error for bad header prefix")
	}
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	if _, err := rpt.Open([]byte("RPTFILEHDR")); err == nil {
		t.Fatal("expected error for truncated file")
	}
}

func TestOpenMissingPageTableMarker(t *testing.T) {
	data := buildMinimalRPT(t)
	mangled := bytes.ReplaceAll(data, []byte("PAGETBLHDR"), []byte("XXXXXXXXXX"))
	if _, err := rpt.Open(mangled); err == nil {
		t.Fatal("expected error when PAGETBLHDR marker is missing")
	}
}
