package rpt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/frijswijk/intellistor-migration/internal/bincodec"
)

// BinaryEntry describes one embedded binary object recorded in the
// optional BPAGETBLHDR trailer: its offset (relative to InstHeaderOffset)
// and size. The format never documents how these entries associate with
// text pages, so Document surfaces them as Document.BinaryEntries alongside
// the concatenated Document.BinaryBody, without inventing a page mapping.
type BinaryEntry struct {
	Offset uint32
	Size   uint32
}

// Open parses data as an RPT file. Malformed section triplets, pages with
// no owning section, and out-of-range BPAGETBLHDR entries are skipped or
// flagged and recorded in Document.Warnings rather than aborting the parse.
// Open returns an error for a truncated or malformed header, a missing
// PAGETBLHDR marker, a page entry whose byte range lies outside the file,
// and a page that fails to decompress to its recorded size.
func Open(data []byte) (*Document, error) {
	if len(data) < FileHeaderSize {
		return nil, fmt.Errorf("rpt: file is %d bytes, shorter than header: %w", len(data), ErrTruncatedFile)
	}

	doc := &Document{}

	if err := parseFileHeader(data, doc); err != nil {
		return nil, err
	}

	if len(data) < TableDirOffset+TableDirSize {
		return nil, fmt.Errorf("rpt: file too short for table directory: %w", ErrTruncatedFile)
	}

	sectionCount, _ := bincodec.ReadU32LEAt(data, SectionCountOff)
	sectionDataOffset, _ := bincodec.ReadU32LEAt(data, SectionDataOffOff)

	sections, sectionWarnings := readSections(data, int(sectionCount), int(sectionDataOffset))
	doc.Sections = sections
	doc.Warnings = append(doc.Warnings, sectionWarnings...)

	pages, pageWarnings, err := readPages(data, sections)
	if err != nil {
		return nil, err
	}
	doc.Pages = pages
	doc.Warnings = append(doc.Warnings, pageWarnings...)

	body, binEntries, binWarnings, ok := readBinaryBody(data)
	doc.Warnings = append(doc.Warnings, binWarnings...)
	doc.BinaryEntries = binEntries
	if ok {
		doc.BinaryBody = body
	}

	return doc, nil
}

func parseFileHeader(data []byte, doc *Document) error {
	if !bytes.HasPrefix(data, []byte(fileHdrPrefix)) {
		return fmt.Errorf("rpt: missing %q prefix: %w", fileHdrPrefix, ErrBadHeader)
	}

	limit := 192
	if limit > len(data) {
		limit = len(data)
	}
	raw := data[:limit]
	if idx := bytes.IndexByte(raw, sentinelByte); idx >= 0 {
		raw = raw[:idx]
	}

	line := decodeHeaderLine(raw)
	fields := strings.Split(line, "\t")
	if len(fields) < 2 {
		return fmt.Errorf("rpt: header line has no domain:species field: %w", ErrBadHeader)
	}

	domainSpecies := fields[1]
	if idx := strings.IndexByte(domainSpecies, ':'); idx >= 0 {
		doc.DomainID = domainSpecies[:idx]
		doc.SpeciesID = domainSpecies[idx+1:]
	} else {
		doc.DomainID = domainSpecies
	}

	if len(fields) >= 3 {
		doc.Timestamp = strings.TrimSpace(fields[2])
	}
	return nil
}

// readSections discovers the section triplets two ways, tried in order:
// directory-guided first, a full-file scan as a fallback when that yields
// nothing.
func readSections(data []byte, sectionCount, sectionDataOffset int) ([]Section, []error) {
	if sections, warnings := readSectionsDirected(data, sectionCount, sectionDataOffset); len(sections) > 0 {
		return sections, warnings
	}
	return readSectionsFullScan(data)
}

func readSectionsDirected(data []byte, sectionCount, sectionDataOffset int) ([]Section, []error) {
	start := sectionDataOffset - 16
	if start < 0 || start >= len(data) {
		return nil, nil
	}
	end := start + 4096
	if end > len(data) {
		end = len(data)
	}
	window := data[start:end]

	idx, ok := bincodec.FindMarker(window, sectionHdrMarker, 0)
	if !ok {
		return nil, nil
	}
	triplesStart := start + idx + len(sectionHdrMarker) + 3
	return parseSectionTriples(data, triplesStart, sectionCount)
}

func readSectionsFullScan(data []byte) ([]Section, []error) {
	idx, ok := bincodec.FindMarker(data, sectionHdrMarker, 0)
	if !ok {
		return nil, nil
	}
	triplesStart := idx + len(sectionHdrMarker) + 3
	// No count hint: read until ENDDATA or EOF.
	endIdx, found := bincodec.FindMarker(data, endDataMarker, triplesStart)
	maxCount := (len(data) - triplesStart) / sectionEntrySize
	if found {
		maxCount = (endIdx - triplesStart) / sectionEntrySize
	}
	return parseSectionTriples(data, triplesStart, maxCount)
}

func parseSectionTriples(data []byte, start, count int) ([]Section, []error) {
	var sections []Section
	var warnings []error
	for i := 0; i < count; i++ {
		off := start + i*sectionEntrySize
		if off+sectionEntrySize > len(data) {
			break
		}
		id, _ := bincodec.ReadU32LEAt(data, off)
		startPage, _ := bincodec.ReadU32LEAt(data, off+4)
		pageCount, _ := bincodec.ReadU32LEAt(data, off+8)

		if id == 0 && startPage == 0 && pageCount == 0 {
			break // all-zero triplet marks early termination
		}
		if startPage < 1 || pageCount < 1 {
			warnings = append(warnings, &InvalidEntryError{
				Which: sectionHdrMarker,
				Index: i,
				Msg:   fmt.Sprintf("start_page=%d page_count=%d", startPage, pageCount),
			})
			continue // malformed entry, skip and keep scanning
		}
		sections = append(sections, Section{
			ID:        id,
			StartPage: int(startPage),
			PageCount: int(pageCount),
		})
	}
	return sections, warnings
}

// readPages locates PAGETBLHDR, parses entries until ENDDATA (that count is
// authoritative over whatever page_count the table directory records), and
// decompresses each page.
func readPages(data []byte, sections []Section) ([]Page, []error, error) {
	idx, ok := bincodec.FindMarker(data, pageTblMarker, 0)
	if !ok {
		return nil, nil, &MarkerNotFoundError{Which: pageTblMarker}
	}
	entriesStart := idx + len(pageTblMarker)
	// marker is immediately followed by entries in this trailer (unlike
	// SECTIONHDR, PAGETBLHDR carries no fixed padding before its rows).
	endIdx, found := bincodec.FindMarker(data, endDataMarker, entriesStart)
	maxCount := (len(data) - entriesStart) / pageEntrySize
	if found {
		maxCount = (endIdx - entriesStart) / pageEntrySize
	}

	sectionOf := buildPageSectionIndex(sections)

	var pages []Page
	var warnings []error
	for i := 0; i < maxCount; i++ {
		off := entriesStart + i*pageEntrySize
		if off+pageEntrySize > len(data) {
			break
		}

		pageOffset, _ := bincodec.ReadU32LEAt(data, off)
		lineWidth := uint16(data[off+8]) | uint16(data[off+9])<<8
		linesPerPage := uint16(data[off+10]) | uint16(data[off+11])<<8
		uncompressedSize, _ := bincodec.ReadU32LEAt(data, off+12)
		compressedSize, _ := bincodec.ReadU32LEAt(data, off+16)

		absOffset := InstHeaderOffset + int(pageOffset)
		pageNum := i + 1

		if absOffset < 0 || absOffset+int(compressedSize) > len(data) {
			return nil, nil, fmt.Errorf("rpt: page %d offset %d size %d exceeds file: %w", pageNum, absOffset, compressedSize, ErrInvalidOffset)
		}

		compressed := data[absOffset : absOffset+int(compressedSize)]
		text, err := bincodec.Inflate(compressed, int(uncompressedSize))
		if err != nil {
			return nil, nil, &PageDecompressError{
				PageNumber: pageNum,
				Expected:   int(uncompressedSize),
				Actual:     len(text),
				Cause:      err,
			}
		}

		page := Page{
			Number:         pageNum,
			Text:           text,
			LineWidth:      lineWidth,
			LinesPerPage:   linesPerPage,
			CompressedSize: compressedSize,
		}
		if secID, ok := sectionOf[pageNum]; ok {
			page.SectionID = secID
			page.HasSection = true
		} else if len(sections) > 0 {
			// Sections are supposed to partition every page; a gap here means
			// the recovered section triplets don't fully cover the page set.
			warnings = append(warnings, &InvalidEntryError{
				Which: pageTblMarker,
				Index: i,
				Msg:   fmt.Sprintf("page %d has no owning section", pageNum),
			})
		}
		pages = append(pages, page)
	}
	return pages, warnings, nil
}

func buildPageSectionIndex(sections []Section) map[int]uint32 {
	idx := make(map[int]uint32)
	for _, s := range sections {
		for _, p := range s.Pages() {
			idx[p] = s.ID
		}
	}
	return idx
}

// readBinaryBody parses BPAGETBLHDR, if present, concatenating its entries'
// byte ranges into one logical binary body. The individual entries are also
// returned so a caller that wants the per-object ranges rather than the
// flattened body doesn't have to re-walk BPAGETBLHDR itself.
func readBinaryBody(data []byte) ([]byte, []BinaryEntry, []error, bool) {
	idx, ok := bincodec.FindMarker(data, binPageTblMarker, 0)
	if !ok {
		return nil, nil, nil, false
	}
	entriesStart := idx + len(binPageTblMarker)
	endIdx, found := bincodec.FindMarker(data, endDataMarker, entriesStart)
	maxCount := (len(data) - entriesStart) / binEntrySize
	if found {
		maxCount = (endIdx - entriesStart) / binEntrySize
	}

	var body []byte
	var entries []BinaryEntry
	var warnings []error
	for i := 0; i < maxCount; i++ {
		off := entriesStart + i*binEntrySize
		if off+binEntrySize > len(data) {
			break
		}
		relOffset, _ := bincodec.ReadU32LEAt(data, off)
		size, _ := bincodec.ReadU32LEAt(data, off+4)
		absOffset := InstHeaderOffset + int(relOffset)
		if absOffset < 0 || absOffset+int(size) > len(data) {
			warnings = append(warnings, &InvalidEntryError{
				Which: binPageTblMarker,
				Index: i,
				Msg:   fmt.Sprintf("offset %d size %d exceeds file", absOffset, size),
			})
			continue
		}
		entries = append(entries, BinaryEntry{Offset: relOffset, Size: size})
		body = append(body, data[absOffset:absOffset+int(size)]...)
	}
	if len(body) == 0 {
		return nil, entries, warnings, false
	}
	return body, entries, warnings, true
}

// decodeHeaderLine decodes a header line, switching to UTF-16 when raw
// starts with a byte-order mark. parseFileHeader calls it only after
// checking that data begins with the ASCII "RPTFILEHDR" prefix, so a
// BOM-prefixed file is rejected with ErrBadHeader before reaching here and
// Open never takes the UTF-16 branches.
func decodeHeaderLine(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xff && raw[1] == 0xfe {
		return decodeUTF16(raw[2:], false)
	}
	if len(raw) >= 2 && raw[0] == 0xfe && raw[1] == 0xff {
		return decodeUTF16(raw[2:], true)
	}
	return string(raw)
}
