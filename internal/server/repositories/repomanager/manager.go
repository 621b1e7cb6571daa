package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/kiwes/internal/dbx"
	"github.com/dmitrijs2005/kiwes/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/kiwes/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a handle, so services can
// use the same code inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
