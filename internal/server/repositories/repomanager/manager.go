package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/attendances"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/occurrences"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/ratings"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/resetcodes"
)

// RepositoryManager hands out repositories bound to a DBTX, so that the same
// service code runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Occurrences(db dbx.DBTX) occurrences.Repository
	Attendances(db dbx.DBTX) attendances.Repository
	Ratings(db dbx.DBTX) ratings.Repository
	ResetCodes(db dbx.DBTX) resetcodes.Repository
}
