package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type row struct {
	Name  string  `json:"name"`
	SKU   string  `json:"sku"`
	Stock int     `json:"current_stock"`
	Max   *int    `json:"max_stock"`
	Price float64 `json:"unit_price"`
}

func TestRecordsKeepFieldOrder(t *testing.T) {
	recs, err := Records([]row{{Name: "Widget", SKU: "W-1", Stock: 3, Price: 2.5}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"name", "sku", "current_stock", "max_stock", "unit_price"}, recs[0].Keys())
	assert.JSONEq(t, `"Widget"`, string(recs[0][0].Value))
	assert.Equal(t, "null", string(recs[0][3].Value))
}

func TestRecordsRejectNonArray(t *testing.T) {
	_, err := Records(row{Name: "x"})
	require.Error(t, err)
}

func TestWriteCSVQuotesStrings(t *testing.T) {
	recs, err := Records([]row{{Name: "Widget", SKU: "W-1", Stock: 3, Price: 2.5}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs))
	assert.Equal(t, "name,sku,current_stock,max_stock,unit_price\n\"Widget\",\"W-1\",3,null,2.5\n", buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestCSVRoundTripSimpleValues(t *testing.T) {
	recs, err := Records([]row{{Name: "Widget", SKU: "W-1", Stock: 3, Price: 2.5}, {Name: "Gadget", SKU: "G-2"}})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs))

	parsed, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "Widget", parsed[0]["name"])
	assert.Equal(t, "3", parsed[0]["current_stock"])
	assert.Equal(t, "G-2", parsed[1]["sku"])
}

func TestReadCSVSplitsQuotedComma(t *testing.T) {
	recs, err := Records([]row{{Name: "Widget, Large", SKU: "W-1"}})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs))

	parsed, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, `"Widget`, parsed[0]["name"])
	assert.Equal(t, `Large"`, parsed[0]["sku"])
}

func TestReadCSVHandlesCRLFAndBlankLines(t *testing.T) {
	parsed, err := ReadCSV(strings.NewReader("name,sku\r\n\"A\",\"1\"\r\n\r\n\"B\"\r\n"))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "A", parsed[0]["name"])
	assert.Equal(t, "", parsed[1]["sku"])
}

func TestJSONRoundTrip(t *testing.T) {
	in := map[string][]row{"products": {{Name: "Widget", SKU: "W-1", Stock: 3, Price: 2.5}}}
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, in))

	var out map[string][]row
	require.NoError(t, ReadJSON(&buf, &out))
	assert.Equal(t, in, out)
}

func TestTemplates(t *testing.T) {
	for _, entity := range []string{EntityProducts, EntityCategories, EntitySuppliers} {
		tpl, err := Template(entity)
		require.NoError(t, err, entity)
		parsed, err := ReadCSV(strings.NewReader(tpl))
		require.NoError(t, err, entity)
		require.Len(t, parsed, 1, entity)
		assert.NotEmpty(t, parsed[0]["name"], entity)
	}
	_, err := Template("movements")
	require.Error(t, err)
}

func TestTemplateHeaderFollowsExampleRow(t *testing.T) {
	tpl, err := Template(EntityProducts)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(tpl), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "name,sku,description,category_id,supplier_id,current_stock,min_stock,max_stock,unit_price,barcode,location", lines[0])
	assert.Equal(t, len(strings.Split(lines[0], ",")), len(strings.Split(lines[1], ",")))

	parsed, err := ReadCSV(strings.NewReader(tpl))
	require.NoError(t, err)
	assert.Equal(t, "null", parsed[0]["category_id"])
	assert.Equal(t, "MED-001", parsed[0]["sku"])
	assert.Equal(t, "1.25", parsed[0]["unit_price"])
}

func TestWriteXLSX(t *testing.T) {
	maxStock := 10
	recs, err := Records([]row{{Name: "Widget", SKU: "W-1", Stock: 3, Max: &maxStock, Price: 2.5}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "products", recs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("products")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "name", rows[0][0])
	assert.Equal(t, "Widget", rows[1][0])
	assert.Equal(t, "10", rows[1][3])
}
