package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/modules/directory/domain/mapping"
	"github.com/211-Connect/silobuster-resources/pkg/constants"
)

// Canonicalizer turns raw rows into tenant-stamped records. One routine
// serves every entity type, driven by its schema and field mapping.
type Canonicalizer struct {
	mapper   *mapping.Mapper
	tenantID uuid.UUID
}

func NewCanonicalizer(mapper *mapping.Mapper, tenantID uuid.UUID) *Canonicalizer {
	return &Canonicalizer{mapper: mapper, tenantID: tenantID}
}

// Canonicalize parses a warehouse row. Failures are *SyncError values of
// kind validation carrying the quarantine reason.
func (c *Canonicalizer) Canonicalize(t entity.Type, row entity.RawRow) (entity.Record, error) {
	rec, err := c.parse(t, entity.Warehouse, row)
	if err != nil {
		return entity.Record{}, err
	}
	rec.IsCanonical = true
	return rec, nil
}

// PersistedRecord is a record read back from the target store. Key is
// normalized for the join with the snapshot; StoredKey is the key exactly
// as stored and addresses writes.
type PersistedRecord struct {
	entity.Record
	StoredKey entity.Key
}

// Persisted parses a row read back from the target store. Only the natural
// key, and the locale of localized types, must be present: a stored row is
// whatever the store holds, and a value that no longer normalizes is kept
// verbatim so the diff rewrites it.
func (c *Canonicalizer) Persisted(t entity.Type, row entity.RawRow) (PersistedRecord, error) {
	schema, ok := c.mapper.Catalog().Lookup(t)
	if !ok {
		return PersistedRecord{}, validationError(t, "unknown entity type", entity.ErrUnknownType)
	}

	id, ok := c.rawString(t, entity.Relational, schema.KeyField, row)
	if !ok || strings.TrimSpace(id) == "" {
		return PersistedRecord{}, validationError(t, ReasonMissingNaturalKey, nil)
	}
	stored := entity.Key{ID: id}
	key := entity.Key{ID: strings.TrimSpace(id)}
	if schema.Localized {
		raw, ok := c.rawString(t, entity.Relational, entity.LocaleField, row)
		if !ok || strings.TrimSpace(raw) == "" {
			return PersistedRecord{}, validationError(t, ReasonMissingLocale, nil)
		}
		stored.Locale = raw
		key.Locale = strings.TrimSpace(raw)
		if tag, err := language.Parse(key.Locale); err == nil {
			key.Locale = tag.String()
		}
	}

	values := make(map[string]entity.Value, len(schema.Fields))
	for _, f := range schema.Fields {
		col, ok := c.mapper.Column(t, entity.Relational, f.Name)
		if !ok {
			continue
		}
		raw, present := row[col]
		if !present {
			continue
		}
		v, err := entity.Normalize(f.Kind, raw)
		if err != nil {
			v = entity.String(fmt.Sprint(raw))
		}
		values[f.Name] = v
	}

	rec := PersistedRecord{
		Record:    entity.Record{Type: t, Key: key, TenantID: c.tenantID, Fields: values},
		StoredKey: stored,
	}
	if schema.Canonical {
		if raw, ok := row[entity.IsCanonicalField]; ok {
			v, err := entity.Normalize(entity.KindBool, raw)
			if err == nil && v.IsSet() {
				rec.IsCanonical = v.String() == "true"
			}
		}
	}
	return rec, nil
}

// CanonicalizeInto runs every row of t through Canonicalize, putting valid
// records into models and quarantining the rest.
func (c *Canonicalizer) CanonicalizeInto(t entity.Type, rows []entity.RawRow, models *ModelCache, sink *InvalidRecordSink) (valid, invalid int) {
	for _, row := range rows {
		rec, err := c.Canonicalize(t, row)
		if err != nil {
			sink.Record(t, row, reasonOf(err))
			recordCanonicalize(t, false)
			invalid++
			continue
		}
		models.Put(rec)
		recordCanonicalize(t, true)
		valid++
	}
	return valid, invalid
}

// Identify reads the natural key and locale of a warehouse row, as far as
// they are present.
func (c *Canonicalizer) Identify(t entity.Type, row entity.RawRow) (string, string) {
	schema, ok := c.mapper.Catalog().Lookup(t)
	if !ok {
		return "", ""
	}
	id, _ := c.readString(t, entity.Warehouse, schema.KeyField, row)
	var locale string
	if schema.Localized {
		locale, _ = c.readString(t, entity.Warehouse, entity.LocaleField, row)
	}
	return id, locale
}

func (c *Canonicalizer) parse(t entity.Type, src entity.Source, row entity.RawRow) (entity.Record, error) {
	schema, ok := c.mapper.Catalog().Lookup(t)
	if !ok {
		return entity.Record{}, validationError(t, "unknown entity type", entity.ErrUnknownType)
	}

	id, ok := c.readString(t, src, schema.KeyField, row)
	if !ok {
		return entity.Record{}, validationError(t, ReasonMissingNaturalKey, nil)
	}
	key := entity.Key{ID: id}

	if schema.Localized {
		raw, ok := c.readString(t, src, entity.LocaleField, row)
		if !ok {
			return entity.Record{}, validationError(t, ReasonMissingLocale, nil)
		}
		tag, err := language.Parse(raw)
		if err != nil {
			return entity.Record{}, validationError(t, ReasonInvalidLocale, err)
		}
		key.Locale = tag.String()
	}

	values := make(map[string]entity.Value, len(schema.Fields))
	for _, f := range schema.Fields {
		v, err := c.readField(t, src, f, row)
		if err != nil {
			return entity.Record{}, validationError(t, reasonInvalidField(f.Name), err)
		}
		if f.Required && (!v.IsSet() || strings.TrimSpace(v.String()) == "") {
			return entity.Record{}, validationError(t, reasonMissingRequired(f.Name), nil)
		}
		if !v.IsUnset() {
			values[f.Name] = v
		}
	}

	return entity.Record{
		Type:     t,
		Key:      key,
		TenantID: c.tenantID,
		Fields:   values,
	}, nil
}

func (c *Canonicalizer) readField(t entity.Type, src entity.Source, f entity.Field, row entity.RawRow) (entity.Value, error) {
	col, ok := c.mapper.Column(t, src, f.Name)
	if !ok {
		return entity.Unset(), nil
	}
	raw, present := row[col]
	if !present {
		return entity.Unset(), nil
	}
	v, err := entity.Normalize(f.Kind, raw)
	if err != nil {
		return entity.Value{}, err
	}
	if !v.IsSet() {
		return v, nil
	}
	if f.Kind == entity.KindNumber {
		if err := constants.Validate.Var(v.String(), "numeric"); err != nil {
			return entity.Value{}, fmt.Errorf("%q is not numeric", v.String())
		}
	}
	if f.Validate != "" {
		if err := constants.Validate.Var(v.String(), f.Validate); err != nil {
			return entity.Value{}, fmt.Errorf("%q fails %s", v.String(), f.Validate)
		}
	}
	return v, nil
}

// readString returns a trimmed, non-empty identity value.
func (c *Canonicalizer) readString(t entity.Type, src entity.Source, field string, row entity.RawRow) (string, bool) {
	raw, ok := c.rawString(t, src, field, row)
	if !ok {
		return "", false
	}
	s := strings.TrimSpace(raw)
	return s, s != ""
}

// rawString returns an identity value as the source holds it.
func (c *Canonicalizer) rawString(t entity.Type, src entity.Source, field string, row entity.RawRow) (string, bool) {
	col, ok := c.mapper.Column(t, src, field)
	if !ok {
		return "", false
	}
	raw, present := row[col]
	if !present || raw == nil {
		return "", false
	}
	v, err := entity.Normalize(entity.KindString, raw)
	if err != nil || !v.IsSet() {
		return "", false
	}
	return v.String(), true
}

func reasonOf(err error) string {
	var se *SyncError
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	return err.Error()
}
