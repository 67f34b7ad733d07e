// Package selection resolves a page-selection rule string against a
// document's page count and section list.
package selection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/frijswijk/intellistor-migration/rpt"
)

// Resolve parses rule against pageCount and sections, returning the
// selected 1-based page numbers in order (duplicates preserved). Accepted
// forms, matched case-insensitively by prefix: "all", "pages:<range-list>",
// "sections:<id-list>" / "section:<id>", or a bare id-list (shorthand for
// sections).
func Resolve(rule string, pageCount int, sections []rpt.Section) ([]int, error) {
	trimmed := strings.TrimSpace(rule)
	lower := strings.ToLower(trimmed)

	switch {
	case lower == "all":
		pages := make([]int, pageCount)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil

	case strings.HasPrefix(lower, "pages:"):
		return parseRangeList(trimmed[len("pages:"):], pageCount)

	case strings.HasPrefix(lower, "sections:"):
		return resolveSections(trimmed[len("sections:"):], sections)

	case strings.HasPrefix(lower, "section:"):
		return resolveSections(trimmed[len("section:"):], sections)

	default:
		// Bare id-list: shorthand for sections:id-list.
		if looksLikeIDList(trimmed) {
			return resolveSections(trimmed, sections)
		}
		return nil, fmt.Errorf("selection: unrecognized rule %q", rule)
	}
}

func looksLikeIDList(s string) bool {
	for _, part := range strings.Split(s, ",") {
		if _, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32); err != nil {
			return false
		}
	}
	return s != ""
}

// parseRangeList parses "n" and "n-m" terms: reversed ranges are swapped,
// then both bounds are clamped into [1, pageCount], so an entirely
// out-of-range term collapses to the nearest valid page rather than being
// dropped. Duplicates are preserved in order.
func parseRangeList(s string, pageCount int) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		start, end, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		if pageCount < 1 {
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
		if start > pageCount {
			start = pageCount
		}
		if end > pageCount {
			end = pageCount
		}
		for p := start; p <= end; p++ {
			out = append(out, p)
		}
	}
	return out, nil
}

func parseRange(part string) (int, int, error) {
	if idx := strings.IndexByte(part, '-'); idx >= 0 {
		a, err1 := strconv.Atoi(strings.TrimSpace(part[:idx]))
		b, err2 := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
		if err1 != nil || err2 != nil {
			return 0, 0, fmt.Errorf("selection: invalid range %q", part)
		}
		return a, b, nil
	}
	n, err := strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("selection: invalid page number %q", part)
	}
	return n, n, nil
}

// resolveSections returns the union of the named sections' pages, each
// section expanded in section-definition order.
func resolveSections(idList string, sections []rpt.Section) ([]int, error) {
	ids, err := parseIDList(idList)
	if err != nil {
		return nil, err
	}
	wanted := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	present := make(map[uint32]bool, len(sections))
	var out []int
	for _, s := range sections {
		present[s.ID] = true
		if wanted[s.ID] {
			out = append(out, s.Pages()...)
		}
	}

	for id := range wanted {
		if present[id] {
			return out, nil
		}
	}
	// None of the requested IDs exist in this document at all.
	return nil, fmt.Errorf("selection: %w: %v", rpt.ErrSectionNotFound, ids)
}

func parseIDList(s string) ([]uint32, error) {
	var ids []uint32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("selection: invalid section id %q", part)
		}
		ids = append(ids, uint32(v))
	}
	return ids, nil
}

// Intersect returns the pages present in both lists, preserving
// sectionPages' ordering. Used when a MAP search result is combined with a
// section filter.
func Intersect(mapPages, sectionPages []int) []int {
	inMap := make(map[int]bool, len(mapPages))
	for _, p := range mapPages {
		inMap[p] = true
	}
	var out []int
	for _, p := range sectionPages {
		if inMap[p] {
			out = append(out, p)
		}
	}
	return out
}
