package entity

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_InsertionOrderPutsParentsFirst(t *testing.T) {
	t.Parallel()

	c := Default()
	order := c.InsertionOrder()
	require.Len(t, order, len(c.Types()))

	pos := make(map[Type]int, len(order))
	for i, typ := range order {
		pos[typ] = i
	}
	for _, typ := range c.Types() {
		s, ok := c.Lookup(typ)
		require.True(t, ok)
		for _, fk := range s.ForeignKeys {
			if fk.References == typ {
				continue
			}
			require.Less(t, pos[fk.References], pos[typ], "%s must be inserted before %s", fk.References, typ)
		}
	}

	require.Equal(t, TaxonomyTerm, order[0])
	require.Equal(t, Organization, order[1])
}

func TestDefaultCatalog_DeletionOrderReversesInsertion(t *testing.T) {
	t.Parallel()

	c := Default()
	ins := c.InsertionOrder()
	del := c.DeletionOrder()
	slices.Reverse(del)
	require.Equal(t, ins, del)
}

func TestNewCatalog_RejectsCycle(t *testing.T) {
	t.Parallel()

	_, err := NewCatalog(
		Schema{Type: "a", Table: "a", KeyField: "id", Fields: []Field{ref("b_id")}, ForeignKeys: []ForeignKey{{Field: "b_id", References: "b"}}},
		Schema{Type: "b", Table: "b", KeyField: "id", Fields: []Field{ref("a_id")}, ForeignKeys: []ForeignKey{{Field: "a_id", References: "a"}}},
	)
	require.ErrorIs(t, err, ErrDependencyCycle)
}

func TestNewCatalog_RejectsUnknownReference(t *testing.T) {
	t.Parallel()

	_, err := NewCatalog(
		Schema{Type: "a", Table: "a", KeyField: "id", Fields: []Field{ref("x_id")}, ForeignKeys: []ForeignKey{{Field: "x_id", References: "x"}}},
	)
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestCatalog_WithOverrides(t *testing.T) {
	t.Parallel()

	c, err := Default().WithOverrides(
		map[Type]string{Organization: "org_tr"},
		map[Type]string{Program: "program", Location: ""},
	)
	require.NoError(t, err)

	org, _ := c.Lookup(Organization)
	require.Equal(t, "org_tr", org.Table)
	prog, _ := c.Lookup(Program)
	require.True(t, prog.HasWarehouseFeed())
	loc, _ := c.Lookup(Location)
	require.False(t, loc.HasWarehouseFeed())

	orig, _ := Default().Lookup(Organization)
	require.Equal(t, "organization_translations", orig.Table)
}

func TestSchema_MappedFields(t *testing.T) {
	t.Parallel()

	org, ok := Default().Lookup(Organization)
	require.True(t, ok)
	mapped := org.MappedFields()
	require.Equal(t, []string{"organization_id", "locale"}, mapped[:2])
	require.Contains(t, mapped, "year_incorporated")

	lang, _ := Default().Lookup(Language)
	require.False(t, lang.HasField(LocaleField))
}
