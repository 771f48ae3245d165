package memory

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/attendances"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/occurrences"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/ratings"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/resetcodes"
)

// Manager vends memory-backed repositories. The DBTX passed to each factory
// must be the *Store or a *Tx obtained from its WithTx.
type Manager struct{}

func NewManager() *Manager { return &Manager{} }

// RunMigrations is a no-op: the memory schema is the Go types.
func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Occurrences(db dbx.DBTX) occurrences.Repository {
	return &occurrenceRepo{h: handleFor(db)}
}

func (m *Manager) Attendances(db dbx.DBTX) attendances.Repository {
	return &attendanceRepo{h: handleFor(db)}
}

func (m *Manager) Ratings(db dbx.DBTX) ratings.Repository {
	return &ratingRepo{h: handleFor(db)}
}

func (m *Manager) ResetCodes(db dbx.DBTX) resetcodes.Repository {
	return &resetCodeRepo{h: handleFor(db)}
}
