package quarantine

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/211-Connect/silobuster-resources/modules/directory/services"
)

// SheetName is the worksheet holding the export.
const SheetName = "invalid_records"

type XLSXWriter struct {
	path string
}

func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

func (w *XLSXWriter) Path() string   { return w.path }
func (w *XLSXWriter) Format() Format { return FormatXLSX }

func (w *XLSXWriter) WriteRecords(ctx context.Context, records []services.InvalidRecord) error {
	return writeFile(ctx, w.path, records, EncodeXLSX)
}

// EncodeXLSX writes a single-sheet workbook with a frozen header row.
func EncodeXLSX(out io.Writer, records []services.InvalidRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return err
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if err := sw.SetRow("A1", cells(Header)); err != nil {
		return err
	}
	for i, r := range records {
		row := toRow(r)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells(row)); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(out)
	return err
}

func cells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
