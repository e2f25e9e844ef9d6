package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/veilletech/triage-cli/internal/model"
)

// loadXLSX reads the first sheet: header row plus one record per data row.
// Spreadsheet exports are small enough to read whole; charset decoding does
// not apply (XLSX is UTF-8 by format).
func loadXLSX(ctx context.Context, path string, opts Options) ([]model.Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("ingest: empty dataset")
	}

	cols, err := detectColumns(rowToStrings(sheet.Rows[0]), opts.TextColumn)
	if err != nil {
		return nil, err
	}

	var records []model.Record
	for _, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ingest: context cancelled")
		}
		if rec, ok := rowToRecord(rowToStrings(row), cols, len(records)); ok {
			records = append(records, rec)
		}
	}

	zap.L().Debug("dataset loaded",
		zap.String("format", "xlsx"),
		zap.Int("records", len(records)))
	return records, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
