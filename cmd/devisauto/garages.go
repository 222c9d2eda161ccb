package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lgarneau/devisauto/internal/config"
	"github.com/lgarneau/devisauto/internal/store"
)

func newGaragesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "garages",
		Short: "List the garages that receive quote requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGarages(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runGarages(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	recs, err := s.Query(cmd.Context(), store.TableGarages, nil)
	if err != nil {
		return fmt.Errorf("load garages: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No garages configured; the fan-out will fail until some exist.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEMAIL\tPHONE\tSPECIALTIES")
	for _, rec := range recs {
		g := store.GarageFromRecord(rec)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Name, g.Email, g.Phone, g.Specialties)
	}
	return w.Flush()
}
