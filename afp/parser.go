package afp

import (
	"golang.org/x/text/encoding/charmap"

	"github.com/frijswijk/intellistor-migration/internal/bincodec"
)

// Parse walks data as a sequence of MO:DCA structured fields, segments it
// into pages, and collects the preamble, postamble, any resource
// structured fields found anywhere in the file, and per-page TLE index
// values.
func Parse(data []byte) (*Document, error) {
	fields, err := scanFields(data)
	if err != nil {
		return nil, err
	}

	doc := &Document{raw: data, Fields: fields}

	if err := validateFirstField(fields); err != nil {
		return nil, err
	}

	pages := segmentPages(fields)
	doc.Pages = pages
	doc.Resources = collectResources(fields, data)

	if len(pages) == 0 {
		doc.Preamble = append([]byte(nil), data...)
		return doc, nil
	}
	doc.Preamble = append([]byte(nil), data[:pages[0].StartOffset]...)
	doc.Postamble = append([]byte(nil), data[pages[len(pages)-1].EndOffset:]...)

	attachTLEIndexes(fields, data, pages)

	return doc, nil
}

// scanFields implements the resilient structured-field walk: a malformed
// length or an out-of-bounds offset advances by one byte and retries
// rather than aborting, so stray data between fields is tolerated.
func scanFields(data []byte) ([]Field, error) {
	var fields []Field
	i := 0
	for i <= len(data)-minStructFieldSize {
		if data[i] != introducer {
			i++
			continue
		}

		c := bincodec.NewCursor(data[i:])
		c.Seek(1)
		length, err := c.U16BE()
		if err != nil {
			i++
			continue
		}
		if int(length) < minStructFieldSize || i+int(length) > len(data) {
			i++
			continue
		}

		class, _ := c.U8()
		typ, _ := c.U8()
		category, _ := c.U8()

		field := Field{
			Offset:   i,
			Length:   int(length),
			Class:    class,
			Type:     typ,
			Category: category,
			Data:     data[i+minStructFieldSize : i+int(length)],
		}
		fields = append(fields, field)
		i += int(length)
	}
	return fields, nil
}

func validateFirstField(fields []Field) error {
	for _, f := range fields {
		if f.isBeginPage() || f.isEndPage() {
			return ErrInvalidAFP
		}
		if f.isBeginDocument() {
			return nil
		}
	}
	return ErrInvalidAFP
}

// segmentPages splits the field stream into pages: a page starts at Begin
// Page, extends backward to include a contiguous preceding Begin Page
// Group, and ends immediately after End Page.
func segmentPages(fields []Field) []Page {
	var pages []Page
	pageNum := 0
	prevEnd := 0
	var pendingGroupStart = -1

	for i, f := range fields {
		switch {
		case f.isBeginPageGroup():
			pendingGroupStart = f.Offset

		case f.isBeginPage():
			startOffset := f.Offset
			if pendingGroupStart >= 0 && pendingGroupStart >= prevEnd {
				startOffset = pendingGroupStart
			}
			pageNum++
			page := Page{
				Number:          pageNum,
				StartOffset:     startOffset,
				ActualPageStart: f.Offset,
			}
			// find the matching End Page
			for j := i + 1; j < len(fields); j++ {
				if fields[j].isEndPage() {
					page.EndOffset = fields[j].Offset + fields[j].Length
					break
				}
			}
			if page.EndOffset == 0 {
				// Truncated input: a Begin Page with no End Page runs to
				// the end of the scanned field stream instead of leaving a
				// zero bound behind.
				last := fields[len(fields)-1]
				page.EndOffset = last.Offset + last.Length
			}
			prevEnd = page.EndOffset
			pages = append(pages, page)
			pendingGroupStart = -1
		}
	}
	return pages
}

func collectResources(fields []Field, data []byte) [][]byte {
	var resources [][]byte
	for _, f := range fields {
		if f.isResource() {
			resources = append(resources, append([]byte(nil), data[f.Offset:f.Offset+f.Length]...))
		}
	}
	return resources
}

// attachTLEIndexes decodes each TLE field's key/value pair from EBCDIC
// (IBM code page 037, the conventional AFP tag encoding) and attaches it to
// whichever page contains the field. The tag layout is one length-prefixed
// key followed by the remaining bytes as the value.
func attachTLEIndexes(fields []Field, data []byte, pages []Page) {
	dec := charmap.CodePage037.NewDecoder()

	pageForOffset := func(off int) *Page {
		for i := range pages {
			if off >= pages[i].StartOffset && off < pages[i].EndOffset {
				return &pages[i]
			}
		}
		return nil
	}

	for _, f := range fields {
		if !f.isTLE() || len(f.Data) < 2 {
			continue
		}
		keyLen := int(f.Data[0])
		if keyLen <= 0 || keyLen+1 > len(f.Data) {
			continue
		}
		keyRaw := f.Data[1 : 1+keyLen]
		valueRaw := f.Data[1+keyLen:]

		key, err := dec.Bytes(keyRaw)
		if err != nil {
			continue
		}
		value, err := dec.Bytes(valueRaw)
		if err != nil {
			continue
		}

		page := pageForOffset(f.Offset)
		if page == nil {
			continue
		}
		if page.TLEIndexes == nil {
			page.TLEIndexes = make(map[string]string)
		}
		page.TLEIndexes[string(key)] = string(value)
	}
}
