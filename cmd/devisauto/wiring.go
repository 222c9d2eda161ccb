package main

import (
	"fmt"
	"time"

	"github.com/lgarneau/devisauto/internal/blob"
	"github.com/lgarneau/devisauto/internal/config"
	"github.com/lgarneau/devisauto/internal/dispatch"
	"github.com/lgarneau/devisauto/internal/inbox"
	"github.com/lgarneau/devisauto/internal/ingest"
	"github.com/lgarneau/devisauto/internal/mail"
	"github.com/lgarneau/devisauto/internal/ops"
	"github.com/lgarneau/devisauto/internal/respond"
	"github.com/lgarneau/devisauto/internal/store"
)

const defaultConfigPath = "devisauto.yaml"

// openStore builds the record store from config.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "baserow":
		return store.NewBaserow(store.BaserowOptions{
			BaseURL: cfg.Store.Baserow.BaseURL,
			Token:   cfg.Store.Baserow.Token,
			Tables: map[string]store.TableMap{
				store.TableServiceRequests: tableMap(cfg.Store.Baserow.Tables.ServiceRequests),
				store.TableGarages:         tableMap(cfg.Store.Baserow.Tables.Garages),
				store.TableGarageReplies:   tableMap(cfg.Store.Baserow.Tables.GarageReplies),
			},
		}), nil
	case "local":
		return store.OpenLocal(cfg.Store.Local.Driver, cfg.Store.Local.DSN)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func tableMap(t config.TableConfig) store.TableMap {
	return store.TableMap{ID: t.ID, Fields: t.Fields}
}

// newSender builds the outbound email transport from config.
func newSender(cfg *config.Config) (mail.Sender, error) {
	if cfg.Mailer.From == "" {
		return nil, fmt.Errorf("mailer.from is required")
	}
	switch cfg.Mailer.Backend {
	case "graph":
		g := cfg.Mailer.Graph
		if g.TenantID == "" || g.ClientID == "" || g.ClientSecret == "" {
			return nil, fmt.Errorf("mailer.graph needs tenant_id, client_id and client_secret (or GRAPH_CLIENT_SECRET)")
		}
		return mail.NewGraphSender(mail.GraphOptions{
			TenantID:     g.TenantID,
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			Sender:       cfg.Mailer.From,
		}), nil
	case "smtp":
		s := cfg.Mailer.SMTP
		if s.Host == "" || s.Username == "" {
			return nil, fmt.Errorf("mailer.smtp needs host and username")
		}
		return mail.NewSMTPSender(mail.SMTPOptions{
			Host:     s.Host,
			Port:     s.Port,
			Username: s.Username,
			Password: s.Password,
			From:     cfg.Mailer.From,
		})
	default:
		return nil, fmt.Errorf("unsupported mailer backend %q", cfg.Mailer.Backend)
	}
}

// newMailbox builds the inbound IMAP transport from config.
func newMailbox(cfg *config.Config) (inbox.Mailbox, error) {
	if cfg.IMAP.Host == "" || cfg.IMAP.Username == "" {
		return nil, fmt.Errorf("imap needs host and username")
	}
	return inbox.NewIMAP(inbox.IMAPOptions{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		Mailbox:  cfg.IMAP.Mailbox,
	}), nil
}

// newBlobs builds the image store, or nil when Cloudinary is not
// configured. Image upload is optional; the rest of the pipeline is not.
func newBlobs(cfg *config.Config) (blob.Store, error) {
	if cfg.Images.CloudName == "" {
		return nil, nil
	}
	return blob.NewCloudinary(blob.CloudinaryOptions{
		CloudName: cfg.Images.CloudName,
		APIKey:    cfg.Images.APIKey,
		APISecret: cfg.Images.APISecret,
		Folder:    cfg.Images.Folder,
	})
}

func newDispatcher(cfg *config.Config, s store.Store, sender mail.Sender) *dispatch.Dispatcher {
	return &dispatch.Dispatcher{
		Store:     s,
		Sender:    sender,
		BatchSize: cfg.Policy.BatchSize,
	}
}

func newPoller(cfg *config.Config, s store.Store, mb inbox.Mailbox) *ingest.Poller {
	return &ingest.Poller{
		Store:         s,
		Mailbox:       mb,
		MaxMessageAge: time.Duration(cfg.Policy.MaxMessageAgeHours) * time.Hour,
	}
}

func newEngine(cfg *config.Config, s store.Store, sender mail.Sender) *respond.Engine {
	return &respond.Engine{
		Store:           s,
		Sender:          sender,
		StaleAfter:      time.Duration(cfg.Policy.StaleAfterDays) * 24 * time.Hour,
		MinBusinessDays: cfg.Policy.MinBusinessDays,
	}
}

func newOps(cfg *config.Config) *ops.Notifier {
	return &ops.Notifier{WebhookURL: cfg.Ops.SlackWebhookURL}
}
