// Package store provides focused, single-concern data access stores for the
// explorer's summary tables and the read-only catalog they summarise.
//
// Each store owns one table family (extents, overviews, products, regions)
// and embeds shared helpers (Pool, logger) via the Base struct. Stores never
// import each other; shared logic lives in this file or in helpers.go.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/db"
	"github.com/persistorai/explorer/internal/dbpool"
)

const defaultQueryTimeout = 30 * time.Second

// aggregateQueryTimeout bounds the grouped extent queries, which scan a whole
// month (or a whole product) of extent rows.
const aggregateQueryTimeout = 10 * time.Minute

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// withAggregateTimeout creates a context for long-running extent scans.
func withAggregateTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, aggregateQueryTimeout)
}

// beginTx starts a read-write transaction.
func (b *Base) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return tx, nil
}

// notify sends a pg_notify on the summary change channel (best-effort, post-commit).
func (b *Base) notify(product, op string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, _ := json.Marshal(db.ChangeEvent{Product: product, Op: op}) //nolint:errcheck // plain struct, cannot fail.
	if _, err := b.Pool.Exec(ctx, "SELECT pg_notify($1, $2)", db.SummaryChannel, string(payload)); err != nil {
		b.Log.WithError(err).WithField("product", product).Warn("failed to send " + op + " notification")
	}
}
