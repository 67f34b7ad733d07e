package main

import (
	"testing"

	"github.com/frijswijk/intellistor-migration/rpt"
)

func TestFormatSegmentsRoundTrip(t *testing.T) {
	sections := []rpt.Section{
		{ID: 10, StartPage: 1, PageCount: 2},
		{ID: 20, StartPage: 3, PageCount: 1},
		{ID: 30, StartPage: 4, PageCount: 2},
	}

	got := formatSegments(sections)
	want := "10#1#2|20#3#1|30#4#2"
	if got != want {
		t.Fatalf("formatSegments = %q, want %q", got, want)
	}

	back := parseSegments(got)
	if len(back) != len(sections) {
		t.Fatalf("parseSegments returned %d sections, want %d", len(back), len(sections))
	}
	for i, s := range sections {
		if back[i] != s {
			t.Errorf("section %d = %+v, want %+v", i, back[i], s)
		}
	}
}

func TestFormatSegmentsEmpty(t *testing.T) {
	if got := formatSegments(nil); got != "" {
		t.Errorf("formatSegments(nil) = %q, want empty", got)
	}
	if got := parseSegments(""); got != nil {
		t.Errorf("parseSegments(\"\") = %v, want nil", got)
	}
}

func TestParseSegmentsSkipsMalformed(t *testing.T) {
	got := parseSegments("10#1#2|garbage|30#4#2")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (malformed entry skipped)", len(got))
	}
	if got[0].ID != 10 || got[1].ID != 30 {
		t.Errorf("unexpected sections: %+v", got)
	}
}

func TestSegmentsCacheRoundTrip(t *testing.T) {
	c := newSegmentsCache()
	if _, ok := c.get("missing.rpt"); ok {
		t.Fatal("expected miss for uncached path")
	}

	sections := []rpt.Section{{ID: 1, StartPage: 1, PageCount: 3}}
	c.put("a.rpt", sections)

	got, ok := c.get("a.rpt")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if len(got) != 1 || got[0] != sections[0] {
		t.Errorf("got %+v, want %+v", got, sections)
	}
}
