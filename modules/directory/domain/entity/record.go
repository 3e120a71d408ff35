package entity

import (
	"strconv"

	"github.com/google/uuid"
)

// Key identifies a record within a tenant and entity type. Locale is empty
// for non-localized types.
type Key struct {
	ID     string
	Locale string
}

func (k Key) String() string {
	if k.Locale == "" {
		return k.ID
	}
	return k.ID + "@" + k.Locale
}

// Record is a canonical entity instance. Fields never holds the natural key
// or the locale; those live in Key.
type Record struct {
	Type        Type
	Key         Key
	TenantID    uuid.UUID
	IsCanonical bool
	Fields      map[string]Value
}

// Get returns the value of a data field, Unset when absent.
func (r Record) Get(name string) Value {
	if r.Fields == nil {
		return Unset()
	}
	return r.Fields[name]
}

// Diff returns the fields whose persisted value differs from r. The result
// is empty when storing r would be a no-op.
func (r Record) Diff(schema Schema, persisted Record) map[string]Value {
	changed := map[string]Value{}
	for _, f := range schema.Fields {
		want := r.Get(f.Name)
		if !want.Persists(persisted.Get(f.Name)) {
			changed[f.Name] = want
		}
	}
	if schema.Canonical && r.IsCanonical != persisted.IsCanonical {
		changed[IsCanonicalField] = String(strconv.FormatBool(r.IsCanonical))
	}
	return changed
}

// Document renders r as a flat JSON-ready object keyed by column name.
// Unset and null values both render as null.
func (r Record) Document(schema Schema) map[string]any {
	doc := make(map[string]any, len(schema.Fields)+3)
	doc[schema.KeyField] = r.Key.ID
	if schema.Localized {
		doc[LocaleField] = r.Key.Locale
	}
	if schema.Canonical {
		doc[IsCanonicalField] = r.IsCanonical
	}
	for _, f := range schema.Fields {
		v := r.Get(f.Name)
		if v.IsSet() {
			doc[f.Name] = v.String()
		} else {
			doc[f.Name] = nil
		}
	}
	return doc
}
