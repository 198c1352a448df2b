// Package repomanager hands out repositories over a DBTX handle, so services
// can use the same repository code inside and outside a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkovalov/filegate/internal/dbx"
	"github.com/dkovalov/filegate/internal/server/repositories/bindings"
	"github.com/dkovalov/filegate/internal/server/repositories/files"
	"github.com/dkovalov/filegate/internal/server/repositories/grants"
	"github.com/dkovalov/filegate/internal/server/repositories/sessions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Bindings(db dbx.DBTX) bindings.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Grants(db dbx.DBTX) grants.Repository
	Files(db dbx.DBTX) files.Repository
}
