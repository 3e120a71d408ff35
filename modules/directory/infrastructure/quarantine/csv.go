package quarantine

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/211-Connect/silobuster-resources/modules/directory/services"
)

type CSVWriter struct {
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

func (w *CSVWriter) Path() string   { return w.path }
func (w *CSVWriter) Format() Format { return FormatCSV }

func (w *CSVWriter) WriteRecords(ctx context.Context, records []services.InvalidRecord) error {
	return writeFile(ctx, w.path, records, EncodeCSV)
}

// EncodeCSV writes the header and one line per record.
func EncodeCSV(out io.Writer, records []services.InvalidRecord) error {
	w := csv.NewWriter(out)
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := toRow(r)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
