// Package mapping binds canonical entity fields to source column keys.
package mapping

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

var ErrUnknownField = errors.New("unknown canonical field")

// WarehouseKeyColumn is the column holding the natural key in warehouse
// datasets when no override is configured.
const WarehouseKeyColumn = "id"

// Mapper is an immutable lookup of canonical field to column key per entity
// type and source. It is safe for concurrent use.
type Mapper struct {
	catalog  *entity.Catalog
	tenantID string
	columns  map[entity.Type]map[entity.Source]map[string]string
}

// Default maps every field to a column of the same name, except the
// warehouse natural key which reads WarehouseKeyColumn.
func Default(catalog *entity.Catalog) *Mapper {
	m := &Mapper{
		catalog: catalog,
		columns: make(map[entity.Type]map[entity.Source]map[string]string, len(catalog.Types())),
	}
	for _, typ := range catalog.Types() {
		schema, _ := catalog.Lookup(typ)
		rel := make(map[string]string)
		wh := make(map[string]string)
		for _, f := range schema.MappedFields() {
			rel[f] = f
			wh[f] = f
		}
		wh[schema.KeyField] = WarehouseKeyColumn
		m.columns[typ] = map[entity.Source]map[string]string{
			entity.Relational: rel,
			entity.Warehouse:  wh,
		}
	}
	return m
}

// Column returns the column key for a canonical field.
func (m *Mapper) Column(typ entity.Type, src entity.Source, field string) (string, bool) {
	col, ok := m.columns[typ][src][field]
	return col, ok
}

// Mapping returns a copy of the field to column table for one type and source.
func (m *Mapper) Mapping(typ entity.Type, src entity.Source) map[string]string {
	return maps.Clone(m.columns[typ][src])
}

// Catalog returns the catalog with any table or dataset overrides applied.
func (m *Mapper) Catalog() *entity.Catalog {
	return m.catalog
}

// TenantID is the tenant configured by the mapping file, if any.
func (m *Mapper) TenantID() string {
	return m.tenantID
}

// apply merges the overrides of f into a copy of m.
func (m *Mapper) apply(f File) (*Mapper, error) {
	tables := map[entity.Type]string{}
	datasets := map[entity.Type]string{}
	out := &Mapper{
		catalog:  m.catalog,
		tenantID: f.TenantID,
		columns:  make(map[entity.Type]map[entity.Source]map[string]string, len(m.columns)),
	}
	for typ, bySource := range m.columns {
		out.columns[typ] = map[entity.Source]map[string]string{
			entity.Relational: maps.Clone(bySource[entity.Relational]),
			entity.Warehouse:  maps.Clone(bySource[entity.Warehouse]),
		}
	}

	names := slices.Sorted(maps.Keys(f.Entities))
	for _, name := range names {
		typ, err := m.catalog.ParseType(name)
		if err != nil {
			return nil, err
		}
		schema, _ := m.catalog.Lookup(typ)
		ef := f.Entities[name]
		for src, overrides := range map[entity.Source]map[string]string{
			entity.Relational: ef.Relational,
			entity.Warehouse:  ef.Warehouse,
		} {
			for field, col := range overrides {
				if !schema.HasField(field) {
					return nil, fmt.Errorf("%s.%s: %w %q", typ, src, ErrUnknownField, field)
				}
				if col == "" {
					return nil, fmt.Errorf("%s.%s.%s: empty column", typ, src, field)
				}
				out.columns[typ][src][field] = col
			}
		}
		if ef.Table != nil {
			tables[typ] = *ef.Table
		}
		if ef.Dataset != nil {
			datasets[typ] = *ef.Dataset
		}
	}

	if len(tables) > 0 || len(datasets) > 0 {
		c, err := m.catalog.WithOverrides(tables, datasets)
		if err != nil {
			return nil, err
		}
		out.catalog = c
	}
	return out, nil
}

// File renders the effective mapping in the on-disk format.
func (m *Mapper) File() File {
	f := File{TenantID: m.tenantID, Entities: make(map[string]EntityFile, len(m.columns))}
	for _, typ := range m.catalog.Types() {
		schema, _ := m.catalog.Lookup(typ)
		table := schema.Table
		dataset := schema.Dataset
		f.Entities[string(typ)] = EntityFile{
			Table:      &table,
			Dataset:    &dataset,
			Relational: m.Mapping(typ, entity.Relational),
			Warehouse:  m.Mapping(typ, entity.Warehouse),
		}
	}
	return f
}
