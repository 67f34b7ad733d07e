package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/frijswijk/intellistor-migration/rpt"
)

// segmentsCache memoizes a file's section list by input path. Many jobs in
// a manifest may reference the same RPT file (several selection rules
// extracted from one archive); runJob stores each input's sections here the
// first time it sees that path. runJob still calls rpt.Open on every job,
// so the SECTIONHDR scan is repeated per job. Caching is a caller concern;
// rpt.Open itself stays pure.
type segmentsCache struct {
	mu   sync.RWMutex
	data map[string][]rpt.Section
}

func newSegmentsCache() *segmentsCache {
	return &segmentsCache{data: make(map[string][]rpt.Section)}
}

func (c *segmentsCache) get(path string) ([]rpt.Section, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sections, ok := c.data[path]
	return sections, ok
}

func (c *segmentsCache) put(path string, sections []rpt.Section) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[path] = sections
}

// formatSegments renders a document's sections in segment notation,
// "section_id#start_page#page_count" joined by "|", the single-field form
// downstream CSV consumers expect for a file's section layout.
func formatSegments(sections []rpt.Section) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = fmt.Sprintf("%d#%d#%d", s.ID, s.StartPage, s.PageCount)
	}
	return strings.Join(parts, "|")
}

// parseSegments parses the segment notation back into Sections, the
// inverse of formatSegments. Malformed entries are skipped rather than
// aborting the whole parse, the same posture the RPT reader takes with
// malformed trailer entries.
func parseSegments(s string) []rpt.Section {
	if s == "" {
		return nil
	}
	var out []rpt.Section
	for _, part := range strings.Split(s, "|") {
		fields := strings.Split(part, "#")
		if len(fields) != 3 {
			continue
		}
		var id, start, count uint64
		if _, err := fmt.Sscanf(fields[0], "%d", &id); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(fields[1], "%d", &start); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(fields[2], "%d", &count); err != nil {
			continue
		}
		out = append(out, rpt.Section{ID: uint32(id), StartPage: int(start), PageCount: int(count)})
	}
	return out
}
