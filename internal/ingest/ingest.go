// Package ingest loads classification datasets from CSV, XLSX and FTP
// sources and normalizes their text ahead of the pipeline.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/veilletech/triage-cli/internal/model"
)

// Options configures dataset loading. Zero values mean auto-detection.
type Options struct {
	// TextColumn overrides text column detection.
	TextColumn string
	// Encoding names the source charset (e.g. "latin-1", "windows-1252");
	// empty means UTF-8.
	Encoding string
}

// Candidate column names, matched case insensitively. The text candidates
// cover the export formats seen in operator social datasets.
var (
	textColumns   = []string{"text", "tweet", "message", "contenu", "texte", "content", "full_text"}
	idColumns     = []string{"id", "tweet_id", "id_str"}
	authorColumns = []string{"author", "user", "username", "auteur", "screen_name"}
	dateColumns   = []string{"date", "created_at", "timestamp"}
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// Load reads a dataset into records. The source is picked by scheme and
// extension: ftp:// URLs are downloaded first, .csv and .xlsx files parse
// directly.
func Load(ctx context.Context, path string, opts Options) ([]model.Record, error) {
	if strings.HasPrefix(path, "ftp://") {
		return loadFTP(ctx, path, opts)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close()
		return loadCSV(ctx, f, opts)
	case ".xlsx":
		return loadXLSX(ctx, path, opts)
	default:
		return nil, eris.Errorf("ingest: unsupported dataset format %q", filepath.Ext(path))
	}
}

// loadCSV parses header + rows into records.
func loadCSV(ctx context.Context, r io.Reader, opts Options) ([]model.Record, error) {
	decoded, err := decodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: empty dataset")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}

	cols, err := detectColumns(header, opts.TextColumn)
	if err != nil {
		return nil, err
	}

	var records []model.Record
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ingest: context cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read row")
		}
		if rec, ok := rowToRecord(row, cols, len(records)); ok {
			records = append(records, rec)
		}
	}

	zap.L().Debug("dataset loaded",
		zap.String("format", "csv"),
		zap.Int("records", len(records)))
	return records, nil
}

// columns holds the detected field indexes; -1 means absent.
type columns struct {
	text   int
	id     int
	author int
	date   int
}

func detectColumns(header []string, textOverride string) (columns, error) {
	cols := columns{
		text:   findColumn(header, textOverride, textColumns),
		id:     findColumn(header, "", idColumns),
		author: findColumn(header, "", authorColumns),
		date:   findColumn(header, "", dateColumns),
	}
	if cols.text < 0 {
		return cols, eris.Errorf("ingest: no text column found (header: %s)", strings.Join(header, ", "))
	}
	return cols, nil
}

// findColumn returns the index of the override or the first candidate
// present in the header, -1 when none match.
func findColumn(header []string, override string, candidates []string) int {
	if override != "" {
		candidates = []string{override}
	}
	for _, want := range candidates {
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), want) {
				return i
			}
		}
	}
	return -1
}

// rowToRecord extracts one record; rows with an empty text cell are
// dropped. ordinal seeds the fallback ID for sources without one.
func rowToRecord(row []string, cols columns, ordinal int) (model.Record, bool) {
	text := cell(row, cols.text)
	if text == "" {
		return model.Record{}, false
	}

	rec := model.Record{
		ID:     cell(row, cols.id),
		Text:   text,
		Author: cell(row, cols.author),
	}
	if rec.ID == "" {
		rec.ID = strconv.Itoa(ordinal)
	}
	if raw := cell(row, cols.date); raw != "" {
		rec.CreatedAt = parseDate(raw)
	}
	return rec, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseDate tries the known export layouts; unparseable dates stay zero
// rather than failing the whole load.
func parseDate(raw string) time.Time {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// decodeReader wraps r with a charset decoder when a non-UTF-8 encoding is
// configured. Python-style names like "latin-1" are retried without
// hyphens, since the WHATWG label set spells them "latin1".
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		enc, err = htmlindex.Get(strings.ReplaceAll(name, "-", ""))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: unsupported encoding %q", name)
	}
	return enc.NewDecoder().Reader(r), nil
}
