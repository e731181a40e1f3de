package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stockflow/stockflow/cmd/stockflow/cli"
	"github.com/stockflow/stockflow/internal/app"
	"github.com/stockflow/stockflow/internal/datastore/postgres"
	"github.com/stockflow/stockflow/internal/platform/db"
)

const usage = `usage: stockflow <command> [flags]

commands:
  serve                      run the HTTP server (default)
  migrate [up|down|status]   apply database migrations
  export  [-format json|csv|xlsx] [-entity name]
  import  [-format json|csv] [-entity name] [-json] <file>
  template <products|categories|suppliers>
  queue   [-json]            show mail queue counters
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	if command == "template" {
		entity := ""
		if len(args) > 0 {
			entity = args[0]
		}
		return cli.TemplateCommand(cli.TemplateOptions{Entity: entity})
	}
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Print(usage)
		return 0
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)

	switch command {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return migrate(ctx, cfg, args)
	case "export", "import":
		return inventoryCommand(ctx, cfg, logger, command, args)
	case "queue":
		fs := flag.NewFlagSet("queue", flag.ContinueOnError)
		jsonOut := fs.Bool("json", false, "print JSON")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		inspector := asynq.NewInspector(app.RedisClientOpt(cfg))
		defer inspector.Close()
		return cli.QueueCommand(inspector, cli.QueueOptions{JSONOutput: *jsonOut})
	}
	fmt.Fprint(os.Stderr, usage)
	return 2
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	rt, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("build runtime", slog.Any("error", err))
		return 1
	}
	defer rt.Close()
	if err := rt.Serve(ctx); err != nil {
		logger.Error("serve", slog.Any("error", err))
		return 1
	}
	return 0
}

func migrate(ctx context.Context, cfg *app.Config, args []string) int {
	direction := ""
	if len(args) > 0 {
		direction = args[0]
	}
	return cli.MigrateCommand(ctx, func(ctx context.Context, direction string) error {
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()
		return postgres.Migrate(ctx, pool, direction)
	}, cli.MigrateOptions{Direction: direction})
}

func inventoryCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	format := fs.String("format", "", "file format")
	entity := fs.String("entity", "", "entity for tabular formats: products, categories or suppliers")
	jsonOut := fs.Bool("json", false, "print the import report as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, err := app.OpenDatastore(ctx, cfg, nil, false)
	if err != nil {
		logger.Error("open datastore", slog.Any("error", err))
		return 1
	}
	defer store.Close()
	inv := cli.NewInventoryCLI(store.Inventory, logger, nil)

	if command == "export" {
		return inv.ExportCommand(ctx, cli.ExportOptions{Format: *format, Entity: *entity})
	}
	return inv.ImportCommand(ctx, cli.ImportOptions{
		Path:       fs.Arg(0),
		Format:     *format,
		Entity:     *entity,
		JSONOutput: *jsonOut,
	})
}
