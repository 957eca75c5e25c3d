package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/explorer/internal/db"
	"github.com/persistorai/explorer/internal/domain"
	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/service"
)

// resultOrder is the order results are reported in.
var resultOrder = []models.ResultKind{
	models.ResultCreated,
	models.ResultUpdated,
	models.ResultNoChanges,
	models.ResultUnsupported,
	models.ResultError,
}

func newGenerateCmd() *cobra.Command {
	var (
		all     bool
		jobs    int
		opts    domain.RefreshOptions
		minScan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate [product...]",
		Short: "Refresh product summaries",
		Long: "Bring the extents and summaries of the named products (or of every\n" +
			"catalog product with --all) up to date.",
		Args: func(cmd *cobra.Command, args []string) error {
			return checkProductArgs(all, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := db.CheckCompatible(ctx, e.pool, log); err != nil {
				return err
			}

			products := args
			if all {
				if products, err = e.catalog.ProductNames(ctx); err != nil {
					return err
				}
			}

			opts.MinimumScanWindow = models.Duration(minScan)

			counts, err := service.NewRunner(e.orch, jobs, log).RefreshAll(ctx, products, opts)
			if err != nil {
				return err
			}

			printResults(counts)

			if failed := counts[models.ResultError] + counts[models.ResultUnsupported]; failed > 0 {
				return fmt.Errorf("%d of %d products failed", failed, len(products))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Refresh every product in the catalog")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 3, "Products refreshed concurrently")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Recompute every summary, not only changed periods")
	cmd.Flags().BoolVar(&opts.RecreateExtents, "recreate-extents", false,
		"Rescan every dataset of the product instead of only changed ones")
	cmd.Flags().BoolVar(&opts.ResetIncrementalPosition, "reset-incremental-position", false,
		"Scan from the newest dataset already summarised")
	cmd.Flags().DurationVar(&minScan, "minimum-scan-window", 0,
		"Always rescan at least this far back, e.g. 72h")

	return cmd
}

// checkProductArgs requires either product names or --all, but not both.
func checkProductArgs(all bool, args []string) error {
	switch {
	case all && len(args) > 0:
		return errors.New("name products or pass --all, not both")
	case !all && len(args) == 0:
		return errors.New("name at least one product, or pass --all")
	}

	return nil
}

func printResults(counts map[models.ResultKind]int) {
	if flagFmt == "json" {
		out := make(map[string]int, len(counts))
		for k, n := range counts {
			out[k.String()] = n
		}

		formatJSON(out)

		return
	}

	rows := make([][]string, 0, len(resultOrder))
	for _, k := range resultOrder {
		if n := counts[k]; n > 0 {
			rows = append(rows, []string{k.String(), strconv.Itoa(n)})
		}
	}

	formatTable([]string{"RESULT", "PRODUCTS"}, rows)
}
