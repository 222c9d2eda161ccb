package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lgarneau/devisauto/internal/config"
	"github.com/lgarneau/devisauto/internal/correlate"
	"github.com/lgarneau/devisauto/internal/store"
)

func newDispatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "dispatch <request-id>",
		Short: "Re-send the garage fan-out for a stored request",
		Long:  "Loads a service request by record ID and emails every configured garage, for when the automatic fan-out at intake time failed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runDispatch(cmd *cobra.Command, configPath, id string) error {
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

	ctx := cmd.Context()
	rec, err := s.Get(ctx, store.TableServiceRequests, id)
	if err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("no service request with id %s", id)
		}
		return fmt.Errorf("load request: %w", err)
	}
	req := store.ServiceRequestFromRecord(rec)
	if req.VIN == "" {
		return fmt.Errorf("request %s has no VIN", id)
	}

	// The token timestamp must line up with the submission time so replies
	// that echo it resolve back to this request.
	token := correlate.NewToken(req.SubmittedAt)
	res, err := newDispatcher(cfg, s, sender).SendQuoteRequests(ctx, token, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Contacted %d/%d garages (%d failed) for VIN %s\n", res.Contacted, res.Total, res.Failed, req.VIN)
	return nil
}
