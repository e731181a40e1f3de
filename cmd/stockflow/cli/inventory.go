package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/stockflow/stockflow/internal/export"
	"github.com/stockflow/stockflow/internal/inventory"
)

// InventoryCLI runs export and import against the configured data store
// outside of any HTTP session.
type InventoryCLI struct {
	repos  inventory.Repositories
	logger *slog.Logger
	clock  func() time.Time
}

// NewInventoryCLI constructs the helper. clock defaults to time.Now.
func NewInventoryCLI(repos inventory.Repositories, logger *slog.Logger, clock func() time.Time) *InventoryCLI {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clock == nil {
		clock = time.Now
	}
	return &InventoryCLI{repos: repos, logger: logger, clock: clock}
}

func (c *InventoryCLI) load(ctx context.Context) (*inventory.Store, error) {
	st := inventory.NewStore(c.repos, c.logger, inventory.StoreConfig{SessionID: "cli", Clock: c.clock})
	if err := st.Load(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// ExportOptions defines the flags of the export command.
type ExportOptions struct {
	Format string
	Entity string
	Stdout io.Writer
	Stderr io.Writer
}

// ExportCommand writes the full snapshot as JSON, or one entity as CSV or
// XLSX, to Stdout.
func (c *InventoryCLI) ExportCommand(ctx context.Context, opts ExportOptions) int {
	opts.Stdout, opts.Stderr = outputs(opts.Stdout, opts.Stderr)
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "json"
	}
	if format != "json" && opts.Entity == "" {
		_, _ = fmt.Fprintf(opts.Stderr, "export: --entity is required for %s\n", format)
		return 1
	}

	st, err := c.load(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: load inventory: %v\n", err)
		return 1
	}
	defer st.Close()
	snapshot := st.Snapshot()

	switch format {
	case "json":
		err = export.WriteJSON(opts.Stdout, inventory.ExportOf(snapshot, c.clock()))
	case "csv", "xlsx":
		var rows any
		if rows, err = inventory.EntityRows(snapshot, opts.Entity); err != nil {
			break
		}
		var records []export.Record
		if records, err = export.Records(rows); err != nil {
			break
		}
		if format == "csv" {
			err = export.WriteCSV(opts.Stdout, records)
		} else {
			err = export.WriteXLSX(opts.Stdout, opts.Entity, records)
		}
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "export: unknown format %q (expected json, csv or xlsx)\n", opts.Format)
		return 1
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: %v\n", err)
		return 1
	}
	return 0
}

// ImportOptions defines the flags of the import command.
type ImportOptions struct {
	Path       string
	Format     string
	Entity     string
	JSONOutput bool
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// ImportCommand reads an export file (JSON) or an entity CSV and creates its
// rows. The exit code is 10 when some rows were rejected.
func (c *InventoryCLI) ImportCommand(ctx context.Context, opts ImportOptions) int {
	opts.Stdout, opts.Stderr = outputs(opts.Stdout, opts.Stderr)
	in := opts.Stdin
	if opts.Path != "" && opts.Path != "-" {
		f, err := os.Open(opts.Path)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "import: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}
	if in == nil {
		in = os.Stdin
	}

	format := strings.ToLower(opts.Format)
	if format == "" && strings.HasSuffix(strings.ToLower(opts.Path), ".csv") {
		format = "csv"
	}
	var (
		batch     inventory.Batch
		rowErrors []inventory.RowError
	)
	switch format {
	case "", "json":
		var file inventory.ExportFile
		if err := export.ReadJSON(in, &file); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "import: %v\n", err)
			return 1
		}
		batch = file.Batch()
	case "csv":
		records, err := export.ReadCSV(in)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "import: %v\n", err)
			return 1
		}
		batch, rowErrors, err = inventory.BatchFromRecords(opts.Entity, records)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "import: %v\n", err)
			return 1
		}
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "import: unknown format %q (expected json or csv)\n", opts.Format)
		return 1
	}

	st, err := c.load(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "import: load inventory: %v\n", err)
		return 1
	}
	defer st.Close()
	report, err := st.Import(ctx, batch)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "import: %v\n", err)
		return 1
	}
	report.Errors = append(rowErrors, report.Errors...)

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "import: encode json: %v\n", err)
			return 1
		}
	} else {
		renderImportHuman(opts.Stdout, report)
	}
	if len(report.Errors) > 0 {
		return 10
	}
	return 0
}

func renderImportHuman(w io.Writer, report inventory.ImportReport) {
	_, _ = fmt.Fprintf(w, "categories: %d\nsuppliers: %d\nproducts: %d\n", report.Categories, report.Suppliers, report.Products)
	if report.SkippedMovements > 0 {
		_, _ = fmt.Fprintf(w, "skipped movements: %d\n", report.SkippedMovements)
	}
	for _, e := range report.Errors {
		_, _ = fmt.Fprintf(w, "%s row %d: %s\n", e.Entity, e.Row, e.Error)
	}
}

// TemplateOptions defines the flags of the template command.
type TemplateOptions struct {
	Entity string
	Stdout io.Writer
	Stderr io.Writer
}

// TemplateCommand prints the CSV import template for an entity.
func TemplateCommand(opts TemplateOptions) int {
	opts.Stdout, opts.Stderr = outputs(opts.Stdout, opts.Stderr)
	if err := export.WriteTemplate(opts.Stdout, opts.Entity); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "template: %v\n", err)
		return 1
	}
	return 0
}

func outputs(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
