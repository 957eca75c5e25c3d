package db

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/db/migrations"
	"github.com/persistorai/explorer/internal/dbpool"
)

// SchemaVersion returns the number of SQL migration files, which equals the
// summary schema version the binary expects.
func SchemaVersion() int {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return 0
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}

	return count
}

// CheckCompatible verifies the database can be summarised by this binary: the
// summary schema must be fully migrated and the catalog must record when
// datasets were updated. It also tries to create the catalog index used for
// incremental change scans; failing to do so is only logged.
func CheckCompatible(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger) error {
	var applied int64

	err := pool.QueryRow(ctx,
		"SELECT coalesce(max(version_id), 0) FROM goose_db_version WHERE is_applied").Scan(&applied)
	if err != nil {
		return fmt.Errorf("reading summary schema version (run `explorer init`): %w", err)
	}

	if want := int64(SchemaVersion()); applied < want {
		return fmt.Errorf("summary schema is at version %d, need %d (run `explorer init`)", applied, want)
	}

	var hasUpdated bool

	err = pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_schema = 'agdc' AND table_name = 'dataset' AND column_name = 'updated')`).Scan(&hasUpdated)
	if err != nil {
		return fmt.Errorf("inspecting catalog schema: %w", err)
	}

	if !hasUpdated {
		return fmt.Errorf("catalog table agdc.dataset has no 'updated' column; upgrade the catalog schema first")
	}

	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS ix_dataset_changed
		ON agdc.dataset (dataset_type_ref, greatest(added, updated, archived))`)
	if err != nil {
		log.WithError(err).Warn("could not create catalog change index; incremental refreshes will be slower")
	}

	return nil
}
