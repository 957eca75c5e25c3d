package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/explorer/internal/models"
)

func newShowCmd() *cobra.Command {
	var year, month, day int

	cmd := &cobra.Command{
		Use:   "show [product]",
		Short: "Print a stored product or period summary",
		Long: "Without a product, list the summarised products. With one, print the\n" +
			"overview of the whole product or of the --year/--month/--day given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := models.ValidatePeriod(year, month, day); err != nil {
				return err
			}

			e, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if len(args) == 0 {
				names, err := e.orch.ProductNames(ctx)
				if err != nil {
					return err
				}

				rows := make([][]string, len(names))
				for i, n := range names {
					rows[i] = []string{n}
				}

				formatTable([]string{"PRODUCT"}, rows)

				return nil
			}

			o, err := e.orch.Get(ctx, args[0], year, month, day)
			if err != nil {
				return err
			}

			if o == nil {
				return errors.New("no summary stored for that product and period; run `explorer generate` first")
			}

			return printOverview(o)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Calendar year")
	cmd.Flags().IntVar(&month, "month", 0, "Month of --year (1-12)")
	cmd.Flags().IntVar(&day, "day", 0, "Day of --month")

	return cmd
}

func printOverview(o *models.TimePeriodOverview) error {
	switch flagFmt {
	case "json":
		formatJSON(o)
	case "csv":
		return formatCSV(o.Timeline())
	default:
		formatTable([]string{"FIELD", "VALUE"}, overviewRows(o))
		fmt.Println()
		formatTable([]string{strings.ToUpper(string(o.TimelinePeriod)), "DATASETS"}, timelineRows(o))
	}

	return nil
}

func overviewRows(o *models.TimePeriodOverview) [][]string {
	rows := [][]string{
		{"product", o.ProductName},
		{"period", string(o.PeriodType())},
		{"start", o.StartDay().Format(time.DateOnly)},
		{"datasets", strconv.Itoa(o.DatasetCount)},
		{"regions", strconv.Itoa(len(o.RegionDatasetCounts))},
		{"footprints", strconv.Itoa(o.FootprintCount)},
	}

	if o.TimeRange != nil {
		rows = append(rows, []string{"time range",
			o.TimeRange.Begin.Format(time.RFC3339) + " / " + o.TimeRange.End.Format(time.RFC3339)})
	}

	if o.FootprintCRS != "" {
		rows = append(rows, []string{"footprint crs", o.FootprintCRS})
	}

	if len(o.CRSes) > 0 {
		rows = append(rows, []string{"crses", strings.Join(o.CRSes, ", ")})
	}

	if o.SizeBytes != nil {
		rows = append(rows, []string{"size bytes", strconv.FormatInt(*o.SizeBytes, 10)})
	}

	if o.SummaryGenTime != nil {
		rows = append(rows, []string{"generated", o.SummaryGenTime.Format(time.RFC3339)})
	}

	return rows
}

func timelineRows(o *models.TimePeriodOverview) [][]string {
	timeline := o.Timeline()
	rows := make([][]string, len(timeline))

	for i, b := range timeline {
		rows[i] = []string{b.Start.Format(time.DateOnly), strconv.Itoa(b.Count)}
	}

	return rows
}
