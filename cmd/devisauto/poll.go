package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lgarneau/devisauto/internal/config"
)

func newPollCmd() *cobra.Command {
	var (
		configPath string
		noMark     bool
	)

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one inbox ingestion cycle",
		Long:  "Connects to the IMAP mailbox, processes unseen garage replies and persists them. Use --no-mark-read to inspect without consuming messages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd, configPath, !noMark)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().BoolVar(&noMark, "no-mark-read", false, "leave messages unseen (dry run)")
	return cmd
}

func runPoll(cmd *cobra.Command, configPath string, markAsRead bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	mb, err := newMailbox(cfg)
	if err != nil {
		return err
	}

	res, err := newPoller(cfg, s, mb).CheckAndProcessNewEmails(cmd.Context(), markAsRead)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d of %d messages\n", res.Processed, res.TotalFound)
	for _, e := range res.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", e)
	}
	return nil
}
