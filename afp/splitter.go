package afp

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects the extraction strategy for Split.
type Mode int

const (
	// Clean produces a standalone document: preamble, selected pages in
	// the requested order, postamble.
	Clean Mode = iota
	// Raw copies bytes [0, last_selected.end_offset), including every
	// page preceding the last selected one.
	Raw
)

// PageRange is one parsed "start-end" term from a page-range string.
type PageRange struct {
	Start, End int
}

// ParsePageRanges parses a comma-separated range list such as "1-2,5,8-10".
// Reversed ranges are swapped, then both bounds are clamped into
// [1, maxPages], so an entirely out-of-range term collapses to the nearest
// valid page rather than being dropped. Duplicate pages are preserved in
// order.
func ParsePageRanges(s string, maxPages int) ([]PageRange, error) {
	parts := strings.Split(s, ",")
	ranges := make([]PageRange, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var start, end int
		if idx := strings.IndexByte(part, '-'); idx >= 0 {
			a, err1 := strconv.Atoi(strings.TrimSpace(part[:idx]))
			b, err2 := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("afp: invalid page range %q", part)
			}
			start, end = a, b
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("afp: invalid page number %q", part)
			}
			start, end = n, n
		}

		if maxPages < 1 {
			continue
		}
		if start > end {
			start, end = end, start
		}
		if start < 1 {
			start = 1
		}
		if end < 1 {
			end = 1
		}
		if start > maxPages {
			start = maxPages
		}
		if end > maxPages {
			end = maxPages
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}
	return ranges, nil
}

// ExpandPageNumbers flattens ranges into an ordered, duplicate-preserving
// list of 1-based page numbers.
func ExpandPageNumbers(ranges []PageRange) []int {
	var out []int
	for _, r := range ranges {
		for p := r.Start; p <= r.End; p++ {
			out = append(out, p)
		}
	}
	return out
}

// Split extracts the given 1-based page numbers from doc according to
// mode.
func (d *Document) Split(pageNumbers []int, mode Mode) ([]byte, error) {
	if len(pageNumbers) == 0 {
		return nil, fmt.Errorf("afp: no pages selected")
	}

	selected := make([]Page, 0, len(pageNumbers))
	for _, n := range pageNumbers {
		if n < 1 || n > len(d.Pages) {
			continue
		}
		selected = append(selected, d.Pages[n-1])
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("afp: no selected page numbers are in range (have %d pages)", len(d.Pages))
	}

	switch mode {
	case Raw:
		last := selected[len(selected)-1]
		return append([]byte(nil), d.raw[:last.EndOffset]...), nil
	default:
		var out []byte
		out = append(out, d.Preamble...)
		for _, p := range selected {
			out = append(out, p.Bytes(d.raw)...)
		}
		out = append(out, d.Postamble...)
		return out, nil
	}
}
