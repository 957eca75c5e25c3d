package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/explorer/internal/domain"
	"github.com/persistorai/explorer/internal/models"
)

// Refresher refreshes one product.
type Refresher interface {
	Refresh(ctx context.Context, product string, opts domain.RefreshOptions) (models.ResultKind, *models.TimePeriodOverview, error)
}

// Runner refreshes many products with bounded concurrency.
type Runner struct {
	refresher Refresher
	workers   int
	log       *logrus.Logger
}

// NewRunner creates a Runner refreshing up to workers products at once.
func NewRunner(refresher Refresher, workers int, log *logrus.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}

	return &Runner{refresher: refresher, workers: workers, log: log}
}

// RefreshAll refreshes every product and counts the results. A failing
// product is counted and logged without stopping the others; only
// cancellation of ctx ends the run early.
func (r *Runner) RefreshAll(ctx context.Context, products []string, opts domain.RefreshOptions) (map[models.ResultKind]int, error) {
	var (
		mu     sync.Mutex
		counts = map[models.ResultKind]int{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, name := range products {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			kind, _, err := r.refresher.Refresh(gctx, name, opts)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			counts[kind]++
			mu.Unlock()

			r.log.WithFields(logrus.Fields{
				"product": name,
				"result":  kind.String(),
			}).Info("product generated")

			return nil
		})
	}

	err := g.Wait()

	return counts, err
}
