package entity

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnknownType     = errors.New("unknown entity type")
	ErrDependencyCycle = errors.New("entity dependency cycle")
)

// Catalog is an immutable registry of entity schemas.
type Catalog struct {
	schemas   []Schema
	index     map[Type]int
	insertion []Type
}

// NewCatalog validates the schemas and precomputes the insertion order.
// Catalog order breaks ties between independent types.
func NewCatalog(schemas ...Schema) (*Catalog, error) {
	c := &Catalog{
		schemas: slices.Clone(schemas),
		index:   make(map[Type]int, len(schemas)),
	}
	for i, s := range c.schemas {
		if s.Type == "" || s.Table == "" || s.KeyField == "" {
			return nil, fmt.Errorf("schema #%d: type, table and key field are required", i)
		}
		if _, dup := c.index[s.Type]; dup {
			return nil, fmt.Errorf("duplicate schema for %s", s.Type)
		}
		c.index[s.Type] = i
	}
	for _, s := range c.schemas {
		for _, fk := range s.ForeignKeys {
			if _, ok := c.index[fk.References]; !ok {
				return nil, fmt.Errorf("%s.%s references %w %q", s.Type, fk.Field, ErrUnknownType, fk.References)
			}
			if _, ok := s.Field(fk.Field); !ok {
				return nil, fmt.Errorf("%s: foreign key %s is not a declared field", s.Type, fk.Field)
			}
		}
	}
	order, err := c.topoSort()
	if err != nil {
		return nil, err
	}
	c.insertion = order
	return c, nil
}

func MustCatalog(schemas ...Schema) *Catalog {
	c, err := NewCatalog(schemas...)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultCatalog = MustCatalog(DefaultSchemas()...)

// Default returns the catalog of the service-directory vocabulary.
func Default() *Catalog {
	return defaultCatalog
}

func (c *Catalog) Lookup(t Type) (Schema, bool) {
	i, ok := c.index[t]
	if !ok {
		return Schema{}, false
	}
	return c.schemas[i], true
}

// Types returns every type in catalog order.
func (c *Catalog) Types() []Type {
	out := make([]Type, len(c.schemas))
	for i, s := range c.schemas {
		out[i] = s.Type
	}
	return out
}

// ParseType resolves a type name against the catalog.
func (c *Catalog) ParseType(name string) (Type, error) {
	t := Type(name)
	if _, ok := c.index[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// InsertionOrder lists parents before the children referencing them.
func (c *Catalog) InsertionOrder() []Type {
	return slices.Clone(c.insertion)
}

// DeletionOrder lists children before their parents.
func (c *Catalog) DeletionOrder() []Type {
	out := slices.Clone(c.insertion)
	slices.Reverse(out)
	return out
}

// WithOverrides returns a copy of the catalog where the given types read
// from different relational tables or warehouse datasets.
func (c *Catalog) WithOverrides(tables, datasets map[Type]string) (*Catalog, error) {
	schemas := slices.Clone(c.schemas)
	for i := range schemas {
		if table, ok := tables[schemas[i].Type]; ok && table != "" {
			schemas[i].Table = table
		}
		if dataset, ok := datasets[schemas[i].Type]; ok {
			schemas[i].Dataset = dataset
		}
	}
	return NewCatalog(schemas...)
}

func (c *Catalog) topoSort() ([]Type, error) {
	indegree := make([]int, len(c.schemas))
	children := make([][]int, len(c.schemas))
	for i, s := range c.schemas {
		seen := map[int]bool{}
		for _, fk := range s.ForeignKeys {
			parent := c.index[fk.References]
			if parent == i || seen[parent] {
				continue
			}
			seen[parent] = true
			indegree[i]++
			children[parent] = append(children[parent], i)
		}
	}

	order := make([]Type, 0, len(c.schemas))
	done := make([]bool, len(c.schemas))
	for len(order) < len(c.schemas) {
		next := -1
		for i := range c.schemas {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []Type
			for i, s := range c.schemas {
				if !done[i] {
					stuck = append(stuck, s.Type)
				}
			}
			return nil, fmt.Errorf("%w: %v", ErrDependencyCycle, stuck)
		}
		done[next] = true
		order = append(order, c.schemas[next].Type)
		for _, child := range children[next] {
			indegree[child]--
		}
	}
	return order, nil
}
