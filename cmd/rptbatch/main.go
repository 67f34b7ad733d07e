package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/frijswijk/intellistor-migration/acl"
	"github.com/frijswijk/intellistor-migration/rpt"
	"github.com/frijswijk/intellistor-migration/selection"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: rptbatch <manifest.yaml>")
		return 1
	}

	manifest, err := LoadManifest(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	level := parseLevel(manifest.LogLevel)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cache := newSegmentsCache()
	var failures atomic.Int64

	sem := make(chan struct{}, manifest.MaxParallel)
	var wg sync.WaitGroup
	for _, job := range manifest.Jobs {
		job := job
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := runJob(log, cache, job); err != nil {
				log.Error("job failed", "job", job.Name, "err", err)
				failures.Add(1)
			} else {
				log.Info("job complete", "job", job.Name)
			}
		}()
	}
	wg.Wait()

	if failures.Load() > 0 {
		log.Error("batch finished with failures", "count", failures.Load())
		return 1
	}
	return 0
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runJob executes one manifest entry: read and open the RPT, record its
// sections in the shared segmentsCache the first time that input path is
// seen, resolve the selection rule, write the extracted text (and binary
// body, when selection is "all"), and optionally scan an ACL blob for SIDs.
// The file is opened in full on every job; the cache is not consulted to
// skip that.
func runJob(log *slog.Logger, cache *segmentsCache, job Job) error {
	data, err := os.ReadFile(job.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	doc, err := rpt.Open(data)
	if err != nil {
		var decErr *rpt.PageDecompressError
		if errors.As(err, &decErr) {
			return fmt.Errorf("decompress page %d: %w", decErr.PageNumber, err)
		}
		return fmt.Errorf("parse rpt: %w", err)
	}
	if _, ok := cache.get(job.Input); !ok {
		cache.put(job.Input, doc.Sections)
	}
	log.Debug("opened document", "job", job.Name, "pages", doc.PageCount(), "segments", formatSegments(doc.Sections))
	for _, w := range doc.Warnings {
		log.Warn("skipped malformed trailer entry", "job", job.Name, "err", w)
	}

	pages, err := selection.Resolve(job.Selection, doc.PageCount(), doc.Sections)
	if err != nil {
		return fmt.Errorf("resolve selection %q: %w", job.Selection, err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("selection %q matched no pages", job.Selection)
	}

	if err := os.WriteFile(job.OutputText, doc.Text(pages), 0o644); err != nil {
		return fmt.Errorf("write text output: %w", err)
	}

	if job.OutputBinary != "" && len(doc.BinaryBody) > 0 && isAllSelection(job.Selection) {
		if err := os.WriteFile(job.OutputBinary, doc.BinaryBody, 0o644); err != nil {
			return fmt.Errorf("write binary output: %w", err)
		}
	}

	if job.ACLBlob != "" {
		if err := scanACL(job); err != nil {
			return err
		}
	}

	return nil
}

func isAllSelection(rule string) bool {
	return rule == "all" || rule == "ALL" || rule == "All"
}

// scanACL reads job.ACLBlob, scans it for SIDs, and writes a
// "sid,principal_type" summary next to OutputText (same basename with a
// ".acl.csv" suffix), reusing acl.ClassifyPrincipal so the classification
// rules aren't re-derived here.
func scanACL(job Job) error {
	blob, err := os.ReadFile(job.ACLBlob)
	if err != nil {
		return fmt.Errorf("read acl blob: %w", err)
	}

	sids := acl.Scan(blob)
	var out []byte
	for _, info := range sids {
		out = append(out, []byte(fmt.Sprintf("%s,%s\n", info.SID, acl.ClassifyPrincipal(info)))...)
	}

	if err := os.WriteFile(job.OutputText+".acl.csv", out, 0o644); err != nil {
		return fmt.Errorf("write acl summary: %w", err)
	}
	return nil
}
