package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/frijswijk/intellistor-migration/rpt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildTestRPT(t *testing.T) string {
	t.Helper()
	meta := rpt.BuildMeta{
		DomainID:  1,
		SpeciesID: 2,
		Timestamp: "2024-01-01 00:00:00",
		Sections: []rpt.SectionRange{
			{ID: 10, StartPage: 1, PageCount: 2},
		},
	}
	pages := [][]byte{[]byte("page one\n"), []byte("page two\n")}
	data, err := rpt.Build(meta, pages, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	path := filepath.Join(t.TempDir(), "input.rpt")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write rpt: %v", err)
	}
	return path
}

func TestRunJobExtractsText(t *testing.T) {
	input := buildTestRPT(t)
	outText := filepath.Join(t.TempDir(), "out.txt")

	job := Job{Name: "t", Input: input, Selection: "all", OutputText: outText}
	cache := newSegmentsCache()
	if err := runJob(discardLogger(), cache, job); err != nil {
		t.Fatalf("runJob: %v", err)
	}

	got, err := os.ReadFile(outText)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "page one\npage two\n" {
		t.Errorf("output = %q", got)
	}

	if _, ok := cache.get(input); !ok {
		t.Error("expected segments cache to be populated after runJob")
	}
}

func TestRunJobRejectsUnknownSection(t *testing.T) {
	input := buildTestRPT(t)
	job := Job{Name: "t", Input: input, Selection: "sections:999", OutputText: filepath.Join(t.TempDir(), "out.txt")}
	if err := runJob(discardLogger(), newSegmentsCache(), job); err == nil {
		t.Fatal("expected error for unknown section")
	}
}

func TestRunJobMissingInput(t *testing.T) {
	job := Job{Name: "t", Input: "/nonexistent/path.rpt", Selection: "all", OutputText: filepath.Join(t.TempDir(), "out.txt")}
	if err := runJob(discardLogger(), newSegmentsCache(), job); err == nil {
		t.Fatal("expected error for missing input")
	}
}
