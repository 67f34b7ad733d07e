package rpt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/frijswijk/intellistor-migration/internal/bincodec"
)

// SectionRange is a builder input describing one section's page span; it
// mirrors Section but is named separately since the builder takes ranges as
// an argument rather than a parsed type.
type SectionRange struct {
	ID        uint32
	StartPage int
	PageCount int
}

// BuildMeta carries the header-level fields the builder writes into
// RPTFILEHDR, plus the section layout. It is also the shape loaded from a
// TOML header-meta file by LoadBuildMeta.
type BuildMeta struct {
	DomainID  uint32
	SpeciesID uint32
	Timestamp string
	Sections  []SectionRange
}

// Build assembles pages and an optional binary body into RPT bytes,
// laying out the header, compressed streams, and trailers and back-patching
// the table directory once final offsets are known. It validates the
// section partition and total size before writing anything, so a failed
// Build never produces partial output.
func Build(meta BuildMeta, pages [][]byte, binaryBody []byte) ([]byte, error) {
	if err := validateSections(meta.Sections, len(pages)); err != nil {
		return nil, err
	}

	var out bytes.Buffer

	writeFileHeader(&out, meta)
	out.Write(make([]byte, InstHeaderSize))
	dirOffset := out.Len()
	out.Write(make([]byte, TableDirSize)) // back-patched at the end

	if out.Len() != CompressedRegion {
		// Header sizes are compile-time constants; this only trips if
		// someone changes FileHeaderSize/InstHeaderSize/TableDirSize
		// inconsistently with CompressedRegion.
		return nil, fmt.Errorf("rpt: header layout produced offset %#x, want %#x: %w", out.Len(), CompressedRegion, ErrBuildInconsistency)
	}

	pageEntries, err := writePages(&out, pages)
	if err != nil {
		return nil, err
	}

	var binEntries []binEntryOut
	if len(binaryBody) > 0 {
		binEntries = writeBinaryBody(&out, binaryBody)
	}

	sectionDataOffset := out.Len()
	if uint64(sectionDataOffset) > 0xFFFFFFFF {
		return nil, fmt.Errorf("rpt: section data offset %d overflows u32: %w", sectionDataOffset, ErrBuildInconsistency)
	}
	writeSectionHeader(&out, meta.Sections)
	writePageTable(&out, pageEntries)
	if len(binEntries) > 0 {
		writeBinPageTable(&out, binEntries)
	}

	result := out.Bytes()
	if err := patchTableDirectory(result, dirOffset, len(pages), len(meta.Sections), sectionDataOffset); err != nil {
		return nil, err
	}
	return result, nil
}

// BuildToFile builds and writes the result to path, writing to a temp file
// in the same directory and renaming into place so a crash or interrupted
// write never leaves a truncated file at path.
func BuildToFile(path string, meta BuildMeta, pages [][]byte, binaryBody []byte) error {
	data, err := Build(meta, pages, binaryBody)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".rpt-build-*.tmp")
	if err != nil {
		return fmt.Errorf("rpt: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("rpt: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("rpt: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rpt: rename temp file into place: %w", err)
	}
	return nil
}

func validateSections(sections []SectionRange, pageCount int) error {
	if len(sections) == 0 {
		return nil
	}
	expectedNext := 1
	for i, s := range sections {
		if s.StartPage != expectedNext {
			return fmt.Errorf("rpt: section %d starts at page %d, want %d (contiguous partition required): %w", s.ID, s.StartPage, expectedNext, ErrBuildInconsistency)
		}
		if s.PageCount < 1 {
			return fmt.Errorf("rpt: section %d has non-positive page count %d: %w", s.ID, s.PageCount, ErrBuildInconsistency)
		}
		expectedNext = s.StartPage + s.PageCount
		_ = i
	}
	if expectedNext-1 != pageCount {
		return fmt.Errorf("rpt: sections cover %d pages, want %d: %w", expectedNext-1, pageCount, ErrBuildInconsistency)
	}
	return nil
}

func writeFileHeader(out *bytes.Buffer, meta BuildMeta) {
	header := make([]byte, FileHeaderSize)
	line := fmt.Sprintf("%s\t%d:%d\t%s", fileHdrPrefix, meta.DomainID, meta.SpeciesID, meta.Timestamp)
	copy(header, line)
	if len(line) < len(header) {
		header[len(line)] = sentinelByte
	}
	out.Write(header)
}

type pageEntryOut struct {
	relOffset        uint32
	lineWidth        uint16
	linesPerPage     uint16
	uncompressedSize uint32
	compressedSize   uint32
}

func writePages(out *bytes.Buffer, pages [][]byte) ([]pageEntryOut, error) {
	entries := make([]pageEntryOut, 0, len(pages))
	for _, text := range pages {
		absOffset := out.Len()
		if uint64(absOffset-InstHeaderOffset) > 0xFFFFFFFF {
			return nil, fmt.Errorf("rpt: page offset exceeds 4 GiB: %w", ErrBuildInconsistency)
		}
		compressed := bincodec.Deflate(text)
		out.Write(compressed)

		entries = append(entries, pageEntryOut{
			relOffset:        uint32(absOffset - InstHeaderOffset),
			lineWidth:        uint16(maxLineLength(text)),
			linesPerPage:     uint16(bytes.Count(text, []byte{'\n'}) + 1),
			uncompressedSize: uint32(len(text)),
			compressedSize:   uint32(len(compressed)),
		})
	}
	return entries, nil
}

func maxLineLength(text []byte) int {
	max := 0
	for _, line := range bytes.Split(text, []byte{'\n'}) {
		if len(line) > max {
			max = len(line)
		}
	}
	return max
}

type binEntryOut struct {
	relOffset uint32
	size      uint32
}

func writeBinaryBody(out *bytes.Buffer, body []byte) []binEntryOut {
	absOffset := out.Len()
	out.Write(body)
	return []binEntryOut{{
		relOffset: uint32(absOffset - InstHeaderOffset),
		size:      uint32(len(body)),
	}}
}

func writeSectionHeader(out *bytes.Buffer, sections []SectionRange) {
	out.WriteString(sectionHdrMarker)
	out.Write(make([]byte, 3))
	var b [4]byte
	writeU32 := func(v uint32) {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
		out.Write(b[:])
	}
	for _, s := range sections {
		writeU32(s.ID)
		writeU32(uint32(s.StartPage))
		writeU32(uint32(s.PageCount))
	}
	out.WriteString(endDataMarker)
}

func writePageTable(out *bytes.Buffer, entries []pageEntryOut) {
	out.WriteString(pageTblMarker)
	var e [24]byte
	for _, p := range entries {
		putU32(e[0:], p.relOffset)
		putU32(e[4:], 0)
		e[8] = byte(p.lineWidth)
		e[9] = byte(p.lineWidth >> 8)
		e[10] = byte(p.linesPerPage)
		e[11] = byte(p.linesPerPage >> 8)
		putU32(e[12:], p.uncompressedSize)
		putU32(e[16:], p.compressedSize)
		putU32(e[20:], 0)
		out.Write(e[:])
	}
	out.WriteString(endDataMarker)
}

func writeBinPageTable(out *bytes.Buffer, entries []binEntryOut) {
	out.WriteString(binPageTblMarker)
	var e [16]byte
	for _, bin := range entries {
		putU32(e[0:], bin.relOffset)
		putU32(e[4:], bin.size)
		putU32(e[8:], 0)
		putU32(e[12:], 0)
		out.Write(e[:])
	}
	out.WriteString(endDataMarker)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func patchTableDirectory(data []byte, dirOffset, pageCount, sectionCount, sectionDataOffset int) error {
	if dirOffset+TableDirSize > len(data) {
		return fmt.Errorf("rpt: table directory offset out of range: %w", ErrBuildInconsistency)
	}
	set := func(relOff int, v uint32) {
		putU32(data[dirOffset+relOff-TableDirOffset:], v)
	}
	set(PageCountOffset, uint32(pageCount))
	set(SectionCountOff, uint32(sectionCount))
	set(SectionDataOffOff, uint32(sectionDataOffset))
	return nil
}
