package sources

import (
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

func TestWarehouseQuery(t *testing.T) {
	t.Parallel()

	q, err := warehouseQuery("proj", "directory", lookup(t, entity.Location))
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM `proj.directory.com_location`", q)

	bad := lookup(t, entity.Search)
	bad.Dataset = "com_search`; DROP"
	_, err = warehouseQuery("proj", "directory", bad)
	require.Error(t, err)
}

func TestRawRow_NormalizesThroughEntityValues(t *testing.T) {
	t.Parallel()

	row := rawRow(map[string]bigquery.Value{
		"id":         "s1",
		"valid_from": civil.Date{Year: 2024, Month: 3, Day: 1},
		"count":      int64(4),
		"until":      nil,
	})
	require.Len(t, row, 4)

	v, err := entity.Normalize(entity.KindDate, row["valid_from"])
	require.NoError(t, err)
	require.Equal(t, "2024-03-01", v.String())

	v, err = entity.Normalize(entity.KindNumber, row["count"])
	require.NoError(t, err)
	require.Equal(t, "4", v.String())
	require.Nil(t, row["until"])
}
