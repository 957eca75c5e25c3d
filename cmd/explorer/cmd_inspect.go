package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/persistorai/explorer/internal/service"
)

func newInspectCmd() *cobra.Command {
	var datasetID string

	cmd := &cobra.Command{
		Use:   "inspect <product>",
		Short: "Show how a dataset's extent resolves",
		Long: "Resolve the CRS, region and footprint of one dataset of a product (a\n" +
			"recent one unless --dataset is given) without writing anything.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var id *uuid.UUID
			if datasetID != "" {
				parsed, err := uuid.Parse(datasetID)
				if err != nil {
					return err
				}
				id = &parsed
			}

			e, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.product(ctx, args[0])
			if err != nil {
				return err
			}

			ins, err := e.sync.Inspect(ctx, p, id)
			if err != nil {
				return err
			}

			if flagFmt == "json" {
				formatJSON(struct {
					*service.Inspection
					Footprint string `json:"footprint_wkt,omitempty"`
				}{ins, ins.FootprintWKT()})

				return nil
			}

			formatTable([]string{"FIELD", "VALUE"}, [][]string{
				{"product", ins.Product},
				{"dataset", ins.DatasetID.String()},
				{"default crs", ins.DefaultCRS},
				{"crs", ins.CRS},
				{"region kind", ins.RegionKind},
				{"region", ins.RegionCode},
				{"region label", ins.RegionLabel},
				{"footprint", ins.FootprintWKT()},
			})

			return nil
		},
	}

	cmd.Flags().StringVar(&datasetID, "dataset", "", "Dataset id to inspect")

	return cmd
}
