// Package migration upgrades a database schema through numbered steps. The last
// applied step is kept as the database user version.
//
// It is a thin layer over the user version primitive of the squery store. Steps
// are written by the caller; the package only orders them, runs the pending ones
// inside a transaction and advances the version. It does not diff schemas,
// generate DDL, or roll steps back.
package migration

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/sllt/squery/pkg/squery/datasource"
	squerySQL "github.com/sllt/squery/pkg/squery/datasource/sql"
	"github.com/sllt/squery/pkg/squery/datasource/sql/qb"
	"github.com/sllt/squery/pkg/squery/logging"
)

var (
	errInvalidVersion = errors.New("migration version must be positive")
	errMissingUP      = errors.New("migration has no UP function")
)

// Datasource is handed to a migration. Tx and Store share the transaction the
// step runs in.
type Datasource struct {
	Logger datasource.Logger
	Tx     *squerySQL.Tx
	Store  *qb.Store
}

type MigrateFunc func(ctx context.Context, d Datasource) error

type Migrate struct {
	UP MigrateFunc
}

// Pending returns the versions above the current user version in the order Run
// applies them.
func Pending(ctx context.Context, db *squerySQL.DB, migrations map[int64]Migrate) ([]int64, error) {
	if err := validate(migrations); err != nil {
		return nil, err
	}

	current, err := db.UserVersion(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading user version")
	}

	var pending []int64

	for v := range migrations {
		if v > current {
			pending = append(pending, v)
		}
	}

	slices.Sort(pending)

	return pending, nil
}

// Run applies every pending migration in ascending order, each in its own
// transaction that also stores the new user version. It stops at the first
// failing step; earlier steps stay applied.
func Run(ctx context.Context, db *squerySQL.DB, logger datasource.Logger, migrations map[int64]Migrate) error {
	if logger == nil {
		logger = logging.NewWriterLogger(io.Discard, logging.FATAL)
	}

	pending, err := Pending(ctx, db, migrations)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		logger.Infof("no pending migrations")
		return nil
	}

	for _, v := range pending {
		if err := apply(ctx, db, logger, v, migrations[v]); err != nil {
			return err
		}
	}

	return nil
}

func apply(ctx context.Context, db *squerySQL.DB, logger datasource.Logger, version int64, m Migrate) error {
	start := time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "migration %d: begin transaction", version)
	}

	store, err := qb.NewStore(tx, logger)
	if err != nil {
		rollback(tx, logger, version)
		return errors.Wrapf(err, "migration %d", version)
	}

	logger.Debugf("running migration %v", version)

	if err := m.UP(ctx, Datasource{Logger: logger, Tx: tx, Store: store}); err != nil {
		rollback(tx, logger, version)
		return errors.Wrapf(err, "migration %d failed and rolled back", version)
	}

	if err := tx.SetUserVersion(ctx, version); err != nil {
		rollback(tx, logger, version)
		return errors.Wrapf(err, "migration %d: storing user version", version)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "migration %d: commit", version)
	}

	logging.NewContextLogger(ctx, logger).Infof("Migration %v ran successfully in %v", version, time.Since(start).Round(time.Millisecond))

	return nil
}

func rollback(tx *squerySQL.Tx, logger datasource.Logger, version int64) {
	if err := tx.Rollback(); err != nil {
		logger.Errorf("unable to rollback migration %v: %v", version, err)
	}
}

func validate(migrations map[int64]Migrate) error {
	for v, m := range migrations {
		if v <= 0 {
			return errors.Wrapf(errInvalidVersion, "version %d", v)
		}

		if m.UP == nil {
			return errors.Wrapf(errMissingUP, "version %d", v)
		}
	}

	return nil
}
