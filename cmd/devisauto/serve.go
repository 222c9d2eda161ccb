package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lgarneau/devisauto/internal/config"
	"github.com/lgarneau/devisauto/internal/intake"
	"github.com/lgarneau/devisauto/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the full pipeline daemon",
		Long:  "Serves the intake API and runs the inbox poller and the customer-response check on their schedules until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "intake API port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	sender, err := newSender(cfg)
	if err != nil {
		return err
	}
	mb, err := newMailbox(cfg)
	if err != nil {
		return err
	}
	blobs, err := newBlobs(cfg)
	if err != nil {
		return err
	}
	alerts := newOps(cfg)

	engine := newEngine(cfg, s, sender)
	respondTask := &scheduler.Task{
		Name:     "respond",
		Interval: time.Duration(cfg.Schedule.RespondIntervalSec) * time.Second,
		Cron:     cfg.Schedule.RespondCron,
		Offset:   time.Duration(cfg.Schedule.RespondOffsetSec) * time.Second,
		Run: func(ctx context.Context) {
			res, err := engine.CheckAndSendCustomerResponses(ctx)
			if err != nil {
				log.Printf("serve: respond cycle: %v", err)
				alerts.Notify(ctx, "respond cycle failed: %v", err)
				return
			}
			for _, e := range res.Errors {
				alerts.Notify(ctx, "respond: %s", e)
			}
			if res.ResponsesSent > 0 {
				log.Printf("serve: sent %d customer summaries (%d VINs checked)", res.ResponsesSent, res.VINsChecked)
			}
		},
	}

	poller := newPoller(cfg, s, mb)
	// A cycle that stored new replies may have completed a VIN; check right
	// away instead of waiting for the respond timer.
	poller.OnPersisted = func(ctx context.Context) { respondTask.TryRun(ctx) }
	pollTask := &scheduler.Task{
		Name:     "poll",
		Interval: time.Duration(cfg.Schedule.PollIntervalSec) * time.Second,
		Cron:     cfg.Schedule.PollCron,
		Run: func(ctx context.Context) {
			res, err := poller.CheckAndProcessNewEmails(ctx, true)
			if err != nil {
				log.Printf("serve: poll cycle: %v", err)
				alerts.Notify(ctx, "inbox poll failed: %v", err)
				return
			}
			if res.Processed > 0 || len(res.Errors) > 0 {
				log.Printf("serve: poll processed %d/%d messages, %d errors", res.Processed, res.TotalFound, len(res.Errors))
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	sched := scheduler.New(pollTask, respondTask)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	return intake.Start(ctx, intake.StartOpts{
		Store:      s,
		Dispatcher: newDispatcher(cfg, s, sender),
		Blobs:      blobs,
		Ops:        alerts,
		Port:       cfg.Server.Port,
		Out:        cmd.OutOrStdout(),
	})
}
