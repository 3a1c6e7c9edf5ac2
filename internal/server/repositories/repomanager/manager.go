package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/events"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/files"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Events(db dbx.DBTX) events.Repository
}
