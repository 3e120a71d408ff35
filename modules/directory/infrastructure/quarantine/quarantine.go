// Package quarantine exports invalid directory rows as flat tables.
package quarantine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/modules/directory/services"
)

// Header is the column layout shared by every export format.
var Header = []string{"entity_type", "natural_key", "locale", "reason", "raw"}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported quarantine format %q", s)
	}
}

func (f Format) Ext() string { return "." + string(f) }

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// FileWriter writes the export to a local file.
type FileWriter interface {
	services.QuarantineWriter
	Path() string
	Format() Format
}

// NewFileWriter returns the writer for format targeting path.
func NewFileWriter(format Format, path string) (FileWriter, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(path), nil
	case FormatXLSX:
		return NewXLSXWriter(path), nil
	default:
		return nil, fmt.Errorf("unsupported quarantine format %q", format)
	}
}

// FileName names the export of one run.
func FileName(tenantID, stamp string, format Format) string {
	return fmt.Sprintf("invalid-%s-%s%s", tenantID, stamp, format.Ext())
}

func toRow(r services.InvalidRecord) []string {
	return []string{string(r.Type), r.NaturalKey, r.Locale, r.Reason, encodeRaw(r.Row)}
}

// encodeRaw renders a raw row as JSON. Values JSON cannot hold, such as
// NaN, are rendered with fmt so one odd row never fails the export.
func encodeRaw(row entity.RawRow) string {
	raw, err := json.Marshal(row)
	if err == nil {
		return string(raw)
	}
	flat := make(map[string]any, len(row))
	for k, v := range row {
		if v != nil {
			v = fmt.Sprint(v)
		}
		flat[k] = v
	}
	raw, _ = json.Marshal(flat)
	return string(raw)
}

type encodeFunc func(w io.Writer, records []services.InvalidRecord) error

// writeFile encodes into a temp file beside path and renames it into place.
func writeFile(ctx context.Context, path string, records []services.InvalidRecord, encode encodeFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := encode(tmp, records); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
