// Package csvrepair applies the mojibake heuristic to CSV files on disk.
//
// Each input is read as raw bytes, decoded once with the source encoding,
// repaired and then written next to the original as UTF-8 with a byte-order
// mark, so that spreadsheet applications pick up the encoding. Files are
// processed one at a time.
package csvrepair

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"utf8fix/lib/mojibake"
	"utf8fix/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

var tracer = telemetry.Tracer("utf8fix.lib.csvrepair")
var meter = telemetry.Meter("utf8fix.lib.csvrepair")
var filesCounter, _ = meter.Int64Counter("files_repaired")
var roundsCounter, _ = meter.Int64Counter("repair_rounds")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type FileResult struct {
	Input  string
	Output string
	// false for dry runs
	Written bool
	Report  mojibake.Report
}

type Fixer struct {
	suffix   string
	source   encoding.Encoding
	repairer *mojibake.Repairer
	config   Config
}

func New(config Config) (*Fixer, error) {
	if config.Suffix == "" {
		config.Suffix = DefaultSuffix
	}
	if strings.ContainsRune(config.Suffix, os.PathSeparator) {
		return nil, fmt.Errorf("suffix %q must not contain a path separator", config.Suffix)
	}
	source, err := LookupEncoding(config.SourceEncoding)
	if err != nil {
		return nil, err
	}
	opts, err := config.RepairOptions()
	if err != nil {
		return nil, err
	}
	repairer, err := mojibake.NewRepairer(opts)
	if err != nil {
		return nil, err
	}
	return &Fixer{
		suffix:   config.Suffix,
		source:   source,
		repairer: repairer,
		config:   config,
	}, nil
}

// OutputPath drops the extension of `path` and appends `suffix` and ".csv",
// "exports/a.CSV" becomes "exports/a_utf8.csv". Leading dots of the file
// name do not start an extension, ".csv" becomes ".csv_utf8.csv".
func OutputPath(path, suffix string) string {
	return strings.TrimSuffix(path, extension(path)) + suffix + ".csv"
}

func extension(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	if strings.Trim(stem, ".") == "" {
		return ""
	}
	return ext
}

func IsCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

func (f *Fixer) repairBytes(raw []byte) (mojibake.Report, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	text, err := f.source.NewDecoder().Bytes(raw)
	if err != nil {
		return mojibake.Report{}, fmt.Errorf("decode: %w", err)
	}
	return f.repairer.RepairReport(string(text))
}

func (f *Fixer) process(ctx context.Context, path string, write bool) (FileResult, error) {
	ctx, span := tracer.Start(ctx, "csvrepair:process")
	defer span.End()
	span.SetAttributes(
		attribute.String("path", path),
		attribute.Bool("write", write),
	)

	result := FileResult{Input: path, Output: OutputPath(path, f.suffix)}

	raw, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read input")
		return result, err
	}
	report, err := f.repairBytes(raw)
	result.Report = report
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to repair")
		return result, fmt.Errorf("%s: %w", path, err)
	}
	span.SetAttributes(
		attribute.Int("rounds", report.Rounds),
		attribute.Int("smells_before", report.SmellsBefore),
		attribute.Int("smells_after", report.SmellsAfter),
	)

	if !write {
		return result, nil
	}

	out, err := unicode.UTF8BOM.NewEncoder().String(report.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode output")
		return result, fmt.Errorf("%s: encode: %w", path, err)
	}
	err = os.WriteFile(result.Output, []byte(out), 0644)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write output")
		return result, err
	}
	result.Written = true

	filesCounter.Add(ctx, 1)
	roundsCounter.Add(ctx, int64(report.Rounds), metric.WithAttributes(
		attribute.Bool("clean", report.SmellsAfter == 0),
	))
	slog.InfoContext(
		ctx, "repaired",
		"input", filepath.Base(path),
		"output", filepath.Base(result.Output),
		"rounds", report.Rounds,
		"smells_after", report.SmellsAfter,
	)
	if report.DroppedRunes > 0 || report.DroppedBytes > 0 {
		slog.DebugContext(
			ctx, "characters dropped during repair",
			"input", path,
			"runes", report.DroppedRunes,
			"bytes", report.DroppedBytes,
		)
	}
	return result, nil
}

// RepairFile repairs a single file and writes it to OutputPath.
func (f *Fixer) RepairFile(ctx context.Context, path string) (FileResult, error) {
	return f.process(ctx, path, true)
}

// ListCSV returns the .csv files directly inside `dir` in lexical order.
// Subdirectories are left out, and so is the output of a previous run when
// the file it was made from sits in the same directory.
func (f *Fixer) ListCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	outputs := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() || !IsCSV(e.Name()) {
			continue
		}
		names = append(names, e.Name())
		outputs[strings.ToLower(OutputPath(e.Name(), f.suffix))] = true
	}

	var paths []string
	for _, name := range names {
		if outputs[strings.ToLower(name)] {
			slog.Debug("skipping previous output", "file", name)
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}

func (f *Fixer) processDir(ctx context.Context, dir string, write bool) ([]FileResult, error) {
	paths, err := f.ListCSV(dir)
	if err != nil {
		return nil, err
	}

	var results []FileResult
	var errlist []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			errlist = append(errlist, err)
			break
		}
		res, err := f.process(ctx, p, write)
		if err != nil {
			slog.ErrorContext(ctx, "failed to process file", "file", p, "err", err)
			errlist = append(errlist, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errlist...)
}

// RepairDir repairs every .csv file directly inside `dir`. A failure on one
// file does not stop the others, all failures are joined into the error.
func (f *Fixer) RepairDir(ctx context.Context, dir string) ([]FileResult, error) {
	return f.processDir(ctx, dir, true)
}

func (f *Fixer) processPath(ctx context.Context, path string, write bool) ([]FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return f.processDir(ctx, path, write)
	}
	res, err := f.process(ctx, path, write)
	if err != nil {
		return nil, err
	}
	return []FileResult{res}, nil
}

// RepairPath dispatches to RepairFile or RepairDir.
func (f *Fixer) RepairPath(ctx context.Context, path string) ([]FileResult, error) {
	return f.processPath(ctx, path, true)
}

// Scan computes what a repair of `path` would do without writing anything.
func (f *Fixer) Scan(ctx context.Context, path string) ([]FileResult, error) {
	return f.processPath(ctx, path, false)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (f *Fixer) processConfigured(ctx context.Context, write bool) ([]FileResult, error) {
	var results []FileResult
	var errlist []error

	if f.config.FilePath != "" && isFile(f.config.FilePath) {
		res, err := f.process(ctx, f.config.FilePath, write)
		if err != nil {
			errlist = append(errlist, err)
		} else {
			results = append(results, res)
		}
	} else {
		slog.DebugContext(ctx, "no file to repair", "file", f.config.FilePath)
	}

	if f.config.DirPath != "" && isDir(f.config.DirPath) {
		slog.InfoContext(ctx, "processing every csv in directory", "dir", f.config.DirPath)
		res, err := f.processDir(ctx, f.config.DirPath, write)
		results = append(results, res...)
		if err != nil {
			errlist = append(errlist, err)
		}
	} else {
		slog.DebugContext(ctx, "no directory to repair", "dir", f.config.DirPath)
	}

	return results, errors.Join(errlist...)
}

// Run processes the configured file and then the configured directory.
// Paths that are unset or do not exist are skipped without an error.
func (f *Fixer) Run(ctx context.Context) ([]FileResult, error) {
	return f.processConfigured(ctx, true)
}

// ScanConfigured is the dry run of Run.
func (f *Fixer) ScanConfigured(ctx context.Context) ([]FileResult, error) {
	return f.processConfigured(ctx, false)
}
