package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecord_Diff(t *testing.T) {
	t.Parallel()

	org, _ := Default().Lookup(Organization)
	persisted := Record{
		Type:        Organization,
		Key:         Key{ID: "o1", Locale: "en"},
		IsCanonical: true,
		Fields:      map[string]Value{"name": String("Old Name"), "email": Null()},
	}
	same := Record{
		Type:        Organization,
		Key:         persisted.Key,
		IsCanonical: true,
		Fields:      map[string]Value{"name": String("Old Name")},
	}
	require.Empty(t, same.Diff(org, persisted))

	renamed := same
	renamed.Fields = map[string]Value{"name": String("New Name")}
	changed := renamed.Diff(org, persisted)
	require.Len(t, changed, 1)
	require.Equal(t, "New Name", changed["name"].String())

	flagged := same
	flagged.IsCanonical = false
	changed = flagged.Diff(org, persisted)
	require.Equal(t, map[string]Value{IsCanonicalField: String("false")}, changed)
}

func TestRecord_Document(t *testing.T) {
	t.Parallel()

	addr, _ := Default().Lookup(PhysicalAddress)
	r := Record{Type: PhysicalAddress, Key: Key{ID: "a1"}, Fields: map[string]Value{"city": String("Austin")}}
	doc := r.Document(addr)
	require.Equal(t, "a1", doc["id"])
	require.Equal(t, "Austin", doc["city"])
	require.Nil(t, doc["country"])
	require.NotContains(t, doc, LocaleField)
	require.NotContains(t, doc, IsCanonicalField)
}

func TestKey_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "o1@en", Key{ID: "o1", Locale: "en"}.String())
	require.Equal(t, "a1", Key{ID: "a1"}.String())
}
