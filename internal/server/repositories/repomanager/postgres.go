// Package repomanager provides the PostgreSQL RepositoryManager, wiring
// repository constructors and goose migrations together.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/kiwes/internal/dbx"
	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/migrations"
	"github.com/dmitrijs2005/kiwes/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/kiwes/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct {
	digester *refreshtokens.Digester
	logger   logging.Logger
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db, m.digester)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{ctx: ctx, logger: m.logger})
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

// NewPostgresRepositoryManager constructs the manager. d keys the refresh
// token digests.
func NewPostgresRepositoryManager(d *refreshtokens.Digester, l logging.Logger) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{digester: d, logger: l.With("module", "migrations")}
}

// gooseLogger routes goose output into the application logger. Fatalf does
// not exit: goose returns the error to RunMigrations anyway.
type gooseLogger struct {
	ctx    context.Context
	logger logging.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(l.ctx, fmt.Sprintf(format, v...))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(l.ctx, fmt.Sprintf(format, v...))
}
