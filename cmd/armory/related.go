package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"armory/internal/intel/models"
	id "armory/pkg/domain"
)

func newRelatedCmd(a *app) *cobra.Command {
	var (
		catalogFile string
		limit       int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "related <product id>",
		Short: "Rank related products for one product",
		Long: `Builds the intelligence cache from the configured catalog, or from a JSON
snapshot given with --catalog, and prints the ranked related products.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pid, err := id.ParseProductID(args[0])
			if err != nil {
				return err
			}
			cfg := a.cfg
			// Offline runs are not latency bound.
			cfg.Intel.QueryTimeout = 0
			eng, err := buildEngine(ctx, cfg, catalogFile, a.logger, nil)
			if err != nil {
				return err
			}
			defer eng.Close()

			if limit == 0 {
				limit = cfg.Intel.DefaultLimit
			}
			result, err := eng.svc.RelatedProducts(ctx, pid, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			return writeTable(cmd, result)
		},
	}
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "JSON catalog snapshot (array of records)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func writeTable(cmd *cobra.Command, result *models.RankedResult) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tSCORE\tNAME\tREASONS\n")
	for _, it := range result.Items {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", it.Product.ID, it.Score.Points, it.Product.Name, strings.Join(it.Score.Reasons, "; "))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d results from %d sampled candidates", len(result.Items), result.Sampled)
	if result.Partial {
		fmt.Fprint(cmd.OutOrStdout(), " (partial)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
