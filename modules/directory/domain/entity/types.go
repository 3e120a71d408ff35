// Package entity holds the service-directory vocabulary: entity types, their
// declarative schemas and the canonical record representation.
package entity

import "slices"

type Type string

const (
	Organization                 Type = "organization"
	Program                      Type = "program"
	Service                      Type = "service"
	Location                     Type = "location"
	PhysicalAddress              Type = "physical_address"
	PostalAddress                Type = "postal_address"
	AccessibilityForDisabilities Type = "accessibility_for_disabilities"
	Contact                      Type = "contact"
	Eligibility                  Type = "eligibility"
	Language                     Type = "language"
	PaymentAccepted              Type = "payment_accepted"
	Phone                        Type = "phone"
	RequiredDocument             Type = "required_document"
	ServiceAtLocation            Type = "service_at_location"
	Schedule                     Type = "schedule"
	ServiceArea                  Type = "service_area"
	ServiceAttribute             Type = "service_attribute"
	TaxonomyTerm                 Type = "taxonomy_term"
	Search                       Type = "c_search"
)

// Source names an upstream system rows are read from.
type Source string

const (
	Relational Source = "relational"
	Warehouse  Source = "warehouse"
	// Target is the store being reconciled, read back through the
	// relational column mapping.
	Target Source = "target"
)

// RawRow maps a source column key to an untyped value. Rows are never
// mutated once cached.
type RawRow map[string]any

type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// Field is one mapped, non-identity column of an entity.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	// Validate is an optional go-playground/validator tag applied to the
	// normalized value (e.g. "latitude").
	Validate string
}

type ForeignKey struct {
	Field      string
	References Type
}

// Fixed column names shared by every target table.
const (
	LocaleField      = "locale"
	TenantIDField    = "tenant_id"
	IsCanonicalField = "is_canonical"
)

type Schema struct {
	Type Type
	// Table is the relational/target table holding the type.
	Table string
	// Dataset is the default warehouse table; empty when the warehouse does
	// not feed this type.
	Dataset  string
	KeyField string
	// Localized types carry a locale that is part of the record identity.
	Localized bool
	// Canonical types carry the is_canonical flag.
	Canonical   bool
	Fields      []Field
	ForeignKeys []ForeignKey
}

// MappedFields lists every canonical field a FieldMapping may bind: the
// natural key, the locale for localized types, then the data fields.
func (s Schema) MappedFields() []string {
	out := make([]string, 0, len(s.Fields)+2)
	out = append(out, s.KeyField)
	if s.Localized {
		out = append(out, LocaleField)
	}
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	return out
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s Schema) HasField(name string) bool {
	return slices.Contains(s.MappedFields(), name)
}

// HasWarehouseFeed reports whether the snapshot for this type can be built.
func (s Schema) HasWarehouseFeed() bool {
	return s.Dataset != ""
}
