package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow/internal/datastore/memory"
	"github.com/stockflow/stockflow/internal/export"
	"github.com/stockflow/stockflow/internal/inventory"
)

var fixedNow = time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)

func newCLI(t *testing.T) (*InventoryCLI, *memory.DB) {
	t.Helper()
	db := memory.New(func() time.Time { return fixedNow })
	return NewInventoryCLI(db.Inventory(), nil, func() time.Time { return fixedNow }), db
}

func TestTemplateCommand(t *testing.T) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := TemplateCommand(TemplateOptions{Entity: "categories", Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout.String(), "name,description,is_medicine\n"))

	code = TemplateCommand(TemplateOptions{Entity: "movements", Stdout: stdout, Stderr: stderr})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "no template")
}

func TestImportCSVThenExport(t *testing.T) {
	c, _ := newCLI(t)
	path := filepath.Join(t.TempDir(), "categories.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,description,is_medicine\n\"Medicine\",\"OTC\",true\n\"Tools\",\"\",false\n"), 0o600))

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := c.ImportCommand(context.Background(), ImportOptions{Path: path, Entity: "categories", JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, code, stderr.String())
	var report inventory.ImportReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, 2, report.Categories)
	assert.Empty(t, report.Errors)

	stdout.Reset()
	code = c.ExportCommand(context.Background(), ExportOptions{Format: "csv", Entity: "categories", Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, code, stderr.String())
	rows, err := export.ReadCSV(stdout)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	names := []string{rows[0]["name"], rows[1]["name"]}
	assert.ElementsMatch(t, []string{"Medicine", "Tools"}, names)
}

func TestImportReportsRowErrors(t *testing.T) {
	c, _ := newCLI(t)
	csv := "name,sku,description,current_stock,min_stock,max_stock,unit_price,barcode,location\n" +
		"\"Bolt\",\"B-1\",\"\",5,1,null,0.5,\"\",\"\"\n" +
		"\"Nut\",\"N-1\",\"\",many,1,null,0.5,\"\",\"\"\n"

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := c.ImportCommand(context.Background(), ImportOptions{
		Format: "csv", Entity: "products", Stdin: strings.NewReader(csv), Stdout: stdout, Stderr: stderr,
	})
	assert.Equal(t, 10, code)
	assert.Contains(t, stdout.String(), "products: 1")
	assert.Contains(t, stdout.String(), "products row 2:")
}

func TestImportJSONExportRoundTrip(t *testing.T) {
	src, _ := newCLI(t)
	in := "name,contact_person,email,phone,address\n\"PT Sumber\",\"Budi\",\"b@example.com\",\"\",\"\"\n"
	require.Equal(t, 0, src.ImportCommand(context.Background(), ImportOptions{
		Format: "csv", Entity: "suppliers", Stdin: strings.NewReader(in), Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer),
	}))

	dump := new(bytes.Buffer)
	require.Equal(t, 0, src.ExportCommand(context.Background(), ExportOptions{Stdout: dump, Stderr: new(bytes.Buffer)}))
	assert.Contains(t, dump.String(), `"exported_at": "2024-03-11T09:30:00Z"`)

	dst, db := newCLI(t)
	stdout := new(bytes.Buffer)
	require.Equal(t, 0, dst.ImportCommand(context.Background(), ImportOptions{Stdin: dump, Stdout: stdout, Stderr: new(bytes.Buffer)}))
	assert.Contains(t, stdout.String(), "suppliers: 1")

	suppliers, err := db.Inventory().Suppliers.Select(context.Background(), inventory.ListQuery{})
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	assert.Equal(t, "PT Sumber", suppliers[0].Name)
}

func TestExportRequiresEntityForTabularFormats(t *testing.T) {
	c, _ := newCLI(t)
	stderr := new(bytes.Buffer)
	assert.Equal(t, 1, c.ExportCommand(context.Background(), ExportOptions{Format: "xlsx", Stdout: new(bytes.Buffer), Stderr: stderr}))
	assert.Contains(t, stderr.String(), "--entity is required")

	assert.Equal(t, 1, c.ExportCommand(context.Background(), ExportOptions{Format: "pdf", Entity: "products", Stdout: new(bytes.Buffer), Stderr: stderr}))
}

func TestExportFailsWhenStoreUnavailable(t *testing.T) {
	c, db := newCLI(t)
	db.FailWith(errors.New("connection refused"))
	stderr := new(bytes.Buffer)
	assert.Equal(t, 1, c.ExportCommand(context.Background(), ExportOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	assert.Contains(t, stderr.String(), "connection refused")
}

func TestMigrateCommand(t *testing.T) {
	var got string
	migrate := func(_ context.Context, direction string) error {
		got = direction
		if direction == "down" {
			return errors.New("no migration")
		}
		return nil
	}
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	assert.Equal(t, 0, MigrateCommand(context.Background(), migrate, MigrateOptions{Stdout: stdout, Stderr: stderr}))
	assert.Equal(t, "up", got)
	assert.Contains(t, stdout.String(), "migrate up: ok")

	assert.Equal(t, 1, MigrateCommand(context.Background(), migrate, MigrateOptions{Direction: "down", Stdout: stdout, Stderr: stderr}))
	assert.Contains(t, stderr.String(), "no migration")

	got = ""
	assert.Equal(t, 1, MigrateCommand(context.Background(), migrate, MigrateOptions{Direction: "sideways", Stdout: stdout, Stderr: stderr}))
	assert.Empty(t, got)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestQueueCommand(t *testing.T) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := QueueCommand(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1}}, QueueOptions{JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"scheduled":0,"retry":1,"archived":0}`, stdout.String())

	code = QueueCommand(stubInspector{err: errors.New("redis down")}, QueueOptions{Stdout: stdout, Stderr: stderr})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "redis down")
}
