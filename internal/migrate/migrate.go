// Package migrate applies the embedded schema migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/library-circulation/migrations"
)

// Command names accepted by Run.
const (
	CmdUp      = "up"
	CmdDown    = "down"
	CmdStatus  = "status"
	CmdVersion = "version"
)

// Up runs all pending migrations from the embedded filesystem.
func Up(ctx context.Context, dsn string) error {
	return Run(ctx, dsn, CmdUp)
}

// Run executes a single goose command against dsn.
func Run(ctx context.Context, dsn, command string) error {
	switch command {
	case CmdUp, CmdDown, CmdStatus, CmdVersion:
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.RunContext(ctx, command, db, ".")
}
