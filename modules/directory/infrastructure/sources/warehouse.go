package sources

import (
	"context"
	"fmt"
	"regexp"

	"cloud.google.com/go/bigquery"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

var bigQueryName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Warehouse reads the denormalized facts of one BigQuery dataset.
type Warehouse struct {
	client  *bigquery.Client
	project string
	dataset string
}

type WarehouseConfig struct {
	Project         string
	Dataset         string
	CredentialsFile string
	Location        string
}

func NewWarehouse(ctx context.Context, cfg WarehouseConfig) (*Warehouse, error) {
	if !bigQueryName.MatchString(cfg.Project) || !bigQueryName.MatchString(cfg.Dataset) {
		return nil, fmt.Errorf("invalid warehouse project/dataset %q/%q", cfg.Project, cfg.Dataset)
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bigquery client")
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}
	return &Warehouse{client: client, project: cfg.Project, dataset: cfg.Dataset}, nil
}

func (w *Warehouse) Close() error {
	return w.client.Close()
}

func warehouseQuery(project, dataset string, schema entity.Schema) (string, error) {
	if !bigQueryName.MatchString(schema.Dataset) {
		return "", fmt.Errorf("invalid warehouse table %q for %s", schema.Dataset, schema.Type)
	}
	return fmt.Sprintf("SELECT * FROM `%s.%s.%s`", project, dataset, schema.Dataset), nil
}

func (w *Warehouse) FetchRows(ctx context.Context, schema entity.Schema) ([]entity.RawRow, error) {
	query, err := warehouseQuery(w.project, w.dataset, schema)
	if err != nil {
		return nil, err
	}
	it, err := w.client.Query(query).Read(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", schema.Dataset)
	}

	var out []entity.RawRow
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", schema.Dataset)
		}
		out = append(out, rawRow(row))
	}
	return out, nil
}

func rawRow(row map[string]bigquery.Value) entity.RawRow {
	out := make(entity.RawRow, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
