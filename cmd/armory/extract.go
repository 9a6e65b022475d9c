package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"armory/internal/intel/extract"
)

func newExtractCmd(a *app) *cobra.Command {
	var manufacturer string
	cmd := &cobra.Command{
		Use:   "extract <product name>",
		Short: "Print the attributes extracted from a product name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			holder, err := loadRegistry(cmd.Context(), a.cfg.Registry, a.logger, nil)
			if err != nil {
				return err
			}
			ex, err := extract.New(holder)
			if err != nil {
				return err
			}
			attrs := ex.ExtractText(strings.Join(args, " "), manufacturer)
			return writeJSON(cmd, attrs)
		},
	}
	cmd.Flags().StringVarP(&manufacturer, "manufacturer", "m", "", "manufacturer field, if known")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
