package cli

import (
	"context"
	"fmt"
	"io"
)

// Migrator applies schema migrations in a direction: up, down or status.
type Migrator func(ctx context.Context, direction string) error

// MigrateOptions defines the flags of the migrate command.
type MigrateOptions struct {
	Direction string
	Stdout    io.Writer
	Stderr    io.Writer
}

// MigrateCommand runs migrate for opts.Direction.
func MigrateCommand(ctx context.Context, migrate Migrator, opts MigrateOptions) int {
	opts.Stdout, opts.Stderr = outputs(opts.Stdout, opts.Stderr)
	direction := opts.Direction
	if direction == "" {
		direction = "up"
	}
	switch direction {
	case "up", "down", "status":
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "migrate: unknown direction %q (expected up, down or status)\n", opts.Direction)
		return 1
	}
	if err := migrate(ctx, direction); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "migrate %s: %v\n", direction, err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "migrate %s: ok\n", direction)
	return 0
}
