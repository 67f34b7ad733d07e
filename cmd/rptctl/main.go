// Command rptctl is a CLI front end over the rpt, afp, mapindex, and
// selection packages: extract, build, afp-split, and map-search.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/frijswijk/intellistor-migration/afp"
	"github.com/frijswijk/intellistor-migration/mapindex"
	"github.com/frijswijk/intellistor-migration/rpt"
	"github.com/frijswijk/intellistor-migration/selection"
)

// Exit codes. 4 is intentionally unused, reserved for a CSV-export mode
// this tool doesn't carry.
const (
	exitOK                 = 0
	exitBadArgs            = 1
	exitCannotOpenInput    = 2
	exitCannotWriteOutput  = 3
	exitInvalidFormat      = 5
	exitDecompressionError = 6
	exitEmptySelection     = 7
	exitSectionNotFound    = 8
	exitInvalidSelection   = 9
	exitUnknown            = 10
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	os.Exit(run(log, os.Args[1:]))
}

func run(log *slog.Logger, args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("unhandled panic", "recovered", r)
			code = exitUnknown
		}
	}()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rptctl <extract|build|afp-split|map-search> ...")
		return exitBadArgs
	}

	verb, rest := args[0], args[1:]
	switch verb {
	case "extract":
		return cmdExtract(log, rest)
	case "build":
		return cmdBuild(log, rest)
	case "afp-split":
		return cmdAFPSplit(log, rest)
	case "map-search":
		return cmdMapSearch(log, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown verb %q\n", verb)
		return exitBadArgs
	}
}

// cmdExtract implements: extract <input.rpt> <selection> <out.txt> <out.bin>
func cmdExtract(log *slog.Logger, args []string) int {
	if len(args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: rptctl extract <input.rpt> <selection> <out.txt> <out.bin>")
		return exitBadArgs
	}
	inputPath, rule, outText, outBin := args[0], args[1], args[2], args[3]

	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.Error("cannot open input", "path", inputPath, "err", err)
		return exitCannotOpenInput
	}

	doc, err := rpt.Open(data)
	if err != nil {
		var decErr *rpt.PageDecompressError
		if errors.As(err, &decErr) {
			log.Error("decompression failed", "page", decErr.PageNumber, "err", err)
			return exitDecompressionError
		}
		log.Error("invalid RPT format", "err", err)
		return exitInvalidFormat
	}
	logWarnings(log, doc.Warnings)

	pages, err := selection.Resolve(rule, doc.PageCount(), doc.Sections)
	if err != nil {
		if errors.Is(err, rpt.ErrSectionNotFound) {
			log.Error("section not found", "rule", rule, "err", err)
			return exitSectionNotFound
		}
		log.Error("invalid selection grammar", "rule", rule, "err", err)
		return exitInvalidSelection
	}
	if len(pages) == 0 {
		log.Error("selection matched no pages", "rule", rule)
		return exitEmptySelection
	}

	text := doc.Text(pages)
	if err := os.WriteFile(outText, text, 0o644); err != nil {
		log.Error("cannot write text output", "path", outText, "err", err)
		return exitCannotWriteOutput
	}

	if len(doc.BinaryBody) > 0 && isAllSelection(rule) {
		if err := os.WriteFile(outBin, doc.BinaryBody, 0o644); err != nil {
			log.Error("cannot write binary output", "path", outBin, "err", err)
			return exitCannotWriteOutput
		}
	}

	log.Info("extract complete", "pages", len(pages), "text_bytes", len(text))
	return exitOK
}

func isAllSelection(rule string) bool {
	return rule == "all" || rule == "ALL" || rule == "All"
}

// logWarnings reports the malformed trailer entries Open skipped rather
// than aborting on. The rpt package never logs on its own; the CLI is the
// logging boundary.
func logWarnings(log *slog.Logger, warnings []error) {
	for _, w := range warnings {
		log.Warn("skipped malformed trailer entry", "err", w)
	}
}

// cmdBuild implements: build <header-meta.toml> <page-dir> [<binary>] <out.rpt>
func cmdBuild(log *slog.Logger, args []string) int {
	if len(args) != 3 && len(args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: rptctl build <header-meta.toml> <page-dir> [<binary>] <out.rpt>")
		return exitBadArgs
	}
	metaPath, pageDir := args[0], args[1]
	var binaryPath, outPath string
	if len(args) == 4 {
		binaryPath, outPath = args[2], args[3]
	} else {
		outPath = args[2]
	}

	meta, err := rpt.LoadBuildMeta(metaPath)
	if err != nil {
		log.Error("cannot open header-meta", "path", metaPath, "err", err)
		return exitCannotOpenInput
	}

	pages, err := loadPageDir(pageDir)
	if err != nil {
		log.Error("cannot open page directory", "path", pageDir, "err", err)
		return exitCannotOpenInput
	}

	var binaryBody []byte
	if binaryPath != "" {
		binaryBody, err = os.ReadFile(binaryPath)
		if err != nil {
			log.Error("cannot open binary body", "path", binaryPath, "err", err)
			return exitCannotOpenInput
		}
	}

	if err := rpt.BuildToFile(outPath, meta, pages, binaryBody); err != nil {
		if errors.Is(err, rpt.ErrBuildInconsistency) {
			log.Error("build inconsistency", "err", err)
			return exitInvalidFormat
		}
		log.Error("cannot write output", "path", outPath, "err", err)
		return exitCannotWriteOutput
	}

	log.Info("build complete", "pages", len(pages), "output", outPath)
	return exitOK
}

// loadPageDir reads every non-directory file in dir, one page's text per
// file, in lexical file-name order (zero-padded names such as
// page-0001.txt therefore come out in page order). File names are not
// filtered by pattern.
func loadPageDir(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pages := make([][]byte, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}

// cmdAFPSplit implements: afp-split <input.afp> <ranges> <output.afp> [--raw]
func cmdAFPSplit(log *slog.Logger, args []string) int {
	if len(args) != 3 && len(args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: rptctl afp-split <input.afp> <ranges> <output.afp> [--raw]")
		return exitBadArgs
	}
	inputPath, rangeStr, outputPath := args[0], args[1], args[2]
	mode := afp.Clean
	if len(args) == 4 {
		if args[3] != "--raw" {
			fmt.Fprintf(os.Stderr, "unknown option %q\n", args[3])
			return exitBadArgs
		}
		mode = afp.Raw
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.Error("cannot open input", "path", inputPath, "err", err)
		return exitCannotOpenInput
	}

	doc, err := afp.Parse(data)
	if err != nil {
		log.Error("invalid AFP format", "err", err)
		return exitInvalidFormat
	}

	ranges, err := afp.ParsePageRanges(rangeStr, doc.PageCount())
	if err != nil {
		log.Error("invalid page ranges", "ranges", rangeStr, "err", err)
		return exitInvalidSelection
	}
	pageNumbers := afp.ExpandPageNumbers(ranges)
	if len(pageNumbers) == 0 {
		log.Error("page range matched nothing", "ranges", rangeStr)
		return exitEmptySelection
	}

	out, err := doc.Split(pageNumbers, mode)
	if err != nil {
		log.Error("split failed", "err", err)
		return exitInvalidSelection
	}

	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		log.Error("cannot write output", "path", outputPath, "err", err)
		return exitCannotWriteOutput
	}

	log.Info("afp-split complete", "pages", len(pageNumbers), "output", outputPath)
	return exitOK
}

// cmdMapSearch implements: map-search <map-file> <line_id> <field_id> <value>
//
// The record layout is fixed for this CLI (16 bytes: line_id, field_id,
// 4-byte value, page, all little-endian); a caller embedding mapindex
// directly can pass any Schema.
func cmdMapSearch(log *slog.Logger, args []string) int {
	if len(args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: rptctl map-search <map-file> <line_id> <field_id> <value>")
		return exitBadArgs
	}
	mapPath, lineIDStr, fieldIDStr, valueStr := args[0], args[1], args[2], args[3]

	lineID, err1 := strconv.ParseUint(lineIDStr, 10, 32)
	fieldID, err2 := strconv.ParseUint(fieldIDStr, 10, 32)
	value, err3 := strconv.ParseUint(valueStr, 10, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Fprintln(os.Stderr, "line_id, field_id, and value must be integers")
		return exitBadArgs
	}

	data, err := os.ReadFile(mapPath)
	if err != nil {
		log.Error("cannot open MAP file", "path", mapPath, "err", err)
		return exitCannotOpenInput
	}

	schema := mapindex.Schema{
		RecordSize:    16,
		LineIDOffset:  0,
		FieldIDOffset: 4,
		ValueOffset:   8,
		ValueLength:   4,
		PageOffset:    12,
	}
	valueBytes := []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}

	pages, err := mapindex.Search(data, schema, uint32(lineID), uint32(fieldID), valueBytes)
	if err != nil {
		log.Error("MAP search failed", "err", err)
		return exitInvalidFormat
	}

	for _, p := range pages {
		fmt.Println(p)
	}
	return exitOK
}
