// Package afp implements a reader and page splitter for MO:DCA (AFP)
// structured-field documents: field enumeration, page segmentation, and
// preamble/postamble-preserving extraction.
package afp

import "fmt"

// Structured field identifier bytes (MO:DCA).
const (
	introducer = 0x5A
	classMODCA = 0xD3

	typeBegin = 0xA8
	typeEnd   = 0xA9
	typeTLE   = 0xA6

	categoryDocument   = 0xA8
	categoryPage       = 0xAF
	categoryPageGroup  = 0xAD
	categoryTLE        = 0x9E
	minStructFieldSize = 8 // introducer + length(2) + class + type + category + id low/high
)

// ErrInvalidAFP is returned when no Begin Document structured field appears
// before the first Begin Page or End Page field (that is, in the preamble).
var ErrInvalidAFP = fmt.Errorf("afp: begin document field not found in preamble")

// Field is one structured field located during the walk.
type Field struct {
	Offset   int
	Length   int
	Class    byte
	Type     byte
	Category byte
	Data     []byte // field body, excluding the 8-byte introducer
}

func (f Field) isBeginPage() bool {
	return f.Class == classMODCA && f.Type == typeBegin && f.Category == categoryPage
}
func (f Field) isEndPage() bool {
	return f.Class == classMODCA && f.Type == typeEnd && f.Category == categoryPage
}
func (f Field) isBeginPageGroup() bool {
	return f.Class == classMODCA && f.Type == typeBegin && f.Category == categoryPageGroup
}
func (f Field) isBeginDocument() bool {
	return f.Class == classMODCA && f.Type == typeBegin && f.Category == categoryDocument
}
func (f Field) isTLE() bool {
	return f.Class == classMODCA && f.Type == typeTLE && f.Category == categoryTLE
}

// isResource matches any other "Begin X" field: page segments, object
// containers, image objects, and similar resource definitions, collected
// generically rather than by an enumerated list of category codes.
func (f Field) isResource() bool {
	if f.Class != classMODCA || f.Type != typeBegin {
		return false
	}
	switch f.Category {
	case categoryDocument, categoryPage, categoryPageGroup:
		return false
	default:
		return true
	}
}

// Page is one logical page: its extraction boundaries, any TLE index
// values collected within it, and its 1-based page number.
type Page struct {
	Number          int
	StartOffset     int // extract-start: includes a preceding contiguous Begin Page Group
	ActualPageStart int // the Begin Page field's own offset
	EndOffset       int // exclusive, immediately after End Page
	TLEIndexes      map[string]string
}

func (p Page) Bytes(data []byte) []byte { return data[p.StartOffset:p.EndOffset] }

// Document is a parsed AFP file.
type Document struct {
	raw       []byte
	Fields    []Field
	Pages     []Page
	Preamble  []byte
	Postamble []byte
	Resources [][]byte
}

// PageCount returns the number of pages found.
func (d *Document) PageCount() int { return len(d.Pages) }
