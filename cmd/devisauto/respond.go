package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lgarneau/devisauto/internal/config"
)

func newRespondCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Run one customer-response cycle",
		Long:  "Evaluates every open request and sends the quote summary to customers whose requests are complete or have waited long enough.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRespond(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runRespond(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	sender, err := newSender(cfg)
	if err != nil {
		return err
	}

	res, err := newEngine(cfg, s, sender).CheckAndSendCustomerResponses(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Checked %d VINs, sent %d summaries\n", res.VINsChecked, res.ResponsesSent)
	for _, e := range res.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", e)
	}
	return nil
}
