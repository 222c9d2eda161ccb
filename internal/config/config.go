// Package config provides YAML-based configuration loading for Devis Auto.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from config.yaml. Secrets
// are never expected in the file; they come from the environment (see
// applyEnv).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Mailer   MailerConfig   `yaml:"mailer"`
	IMAP     IMAPConfig     `yaml:"imap"`
	Images   ImagesConfig   `yaml:"images"`
	Ops      OpsConfig      `yaml:"ops"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Policy   PolicyConfig   `yaml:"policy"`
}

// ServerConfig holds the intake API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Backend string        `yaml:"backend"` // "baserow" or "local"
	Baserow BaserowConfig `yaml:"baserow"`
	Local   LocalConfig   `yaml:"local"`
}

// BaserowConfig holds Baserow API settings and the logical-to-backend
// field mapping per table.
type BaserowConfig struct {
	BaseURL string       `yaml:"base_url"`
	Token   string       `yaml:"token"`
	Tables  TablesConfig `yaml:"tables"`
}

// TablesConfig maps the three logical tables to Baserow table IDs.
type TablesConfig struct {
	ServiceRequests TableConfig `yaml:"service_requests"`
	Garages         TableConfig `yaml:"garages"`
	GarageReplies   TableConfig `yaml:"garage_replies"`
}

// TableConfig is one table's backend ID plus its logical-name to
// field-identifier mapping.
type TableConfig struct {
	ID     int               `yaml:"id"`
	Fields map[string]string `yaml:"fields"`
}

// LocalConfig holds settings for the gorm-backed local store.
type LocalConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	DSN    string `yaml:"dsn"`
}

// MailerConfig selects and configures the outbound email transport.
type MailerConfig struct {
	Backend string      `yaml:"backend"` // "graph" or "smtp"
	From    string      `yaml:"from"`
	Graph   GraphConfig `yaml:"graph"`
	SMTP    SMTPConfig  `yaml:"smtp"`
}

// GraphConfig holds Microsoft Graph client-credentials settings.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SMTPConfig holds SMTP submission settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IMAPConfig holds the inbound mailbox settings.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Mailbox  string `yaml:"mailbox"`
}

// ImagesConfig holds Cloudinary settings for customer photo uploads.
type ImagesConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Folder    string `yaml:"folder"`
}

// OpsConfig holds operational alerting settings.
type OpsConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// ScheduleConfig drives the two periodic tasks. Cron expressions, when
// set, take precedence over the interval for that task.
type ScheduleConfig struct {
	PollIntervalSec    int    `yaml:"poll_interval_sec"`
	PollCron           string `yaml:"poll_cron"`
	RespondIntervalSec int    `yaml:"respond_interval_sec"`
	RespondCron        string `yaml:"respond_cron"`
	RespondOffsetSec   int    `yaml:"respond_offset_sec"`
}

// PolicyConfig holds the completion and ingestion thresholds.
type PolicyConfig struct {
	StaleAfterDays     int `yaml:"stale_after_days"`
	MinBusinessDays    int `yaml:"min_business_days"`
	MaxMessageAgeHours int `yaml:"max_message_age_hours"`
	BatchSize          int `yaml:"batch_size"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays secrets from the environment. Environment values win
// over file values so deployments never need credentials on disk.
func (c *Config) applyEnv() {
	overlay := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	overlay(&c.Store.Baserow.Token, "BASEROW_TOKEN")
	overlay(&c.Mailer.Graph.ClientSecret, "GRAPH_CLIENT_SECRET")
	overlay(&c.Mailer.SMTP.Password, "SMTP_PASSWORD")
	overlay(&c.IMAP.Password, "IMAP_PASSWORD")
	overlay(&c.Images.APISecret, "CLOUDINARY_API_SECRET")
	overlay(&c.Ops.SlackWebhookURL, "SLACK_WEBHOOK_URL")
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "local"
	}
	if c.Store.Local.Driver == "" {
		c.Store.Local.Driver = "sqlite"
	}
	if c.Store.Local.DSN == "" {
		c.Store.Local.DSN = "devisauto.db"
	}
	if c.Mailer.Backend == "" {
		c.Mailer.Backend = "smtp"
	}
	if c.Mailer.SMTP.Port == 0 {
		c.Mailer.SMTP.Port = 587
	}
	if c.IMAP.Port == 0 {
		c.IMAP.Port = 993
	}
	if c.IMAP.Mailbox == "" {
		c.IMAP.Mailbox = "INBOX"
	}
	if c.Schedule.PollIntervalSec == 0 {
		c.Schedule.PollIntervalSec = 300
	}
	if c.Schedule.RespondIntervalSec == 0 {
		c.Schedule.RespondIntervalSec = 600
	}
	if c.Schedule.RespondOffsetSec == 0 {
		c.Schedule.RespondOffsetSec = 60
	}
	if c.Policy.StaleAfterDays == 0 {
		c.Policy.StaleAfterDays = 7
	}
	if c.Policy.MinBusinessDays == 0 {
		c.Policy.MinBusinessDays = 2
	}
	if c.Policy.MaxMessageAgeHours == 0 {
		c.Policy.MaxMessageAgeHours = 24
	}
	if c.Policy.BatchSize == 0 {
		c.Policy.BatchSize = 10
	}
}

// validate checks that all required fields are present and consistent.
// Transport credentials are checked lazily by the commands that need them,
// so read-only commands work with a minimal file.
func (c *Config) validate() error {
	var errs []string
	switch c.Store.Backend {
	case "local":
	case "baserow":
		if c.Store.Baserow.BaseURL == "" {
			errs = append(errs, "store.baserow.base_url is required")
		}
		if c.Store.Baserow.Token == "" {
			errs = append(errs, "store.baserow.token is required (or set BASEROW_TOKEN)")
		}
		for name, t := range map[string]TableConfig{
			"service_requests": c.Store.Baserow.Tables.ServiceRequests,
			"garages":          c.Store.Baserow.Tables.Garages,
			"garage_replies":   c.Store.Baserow.Tables.GarageReplies,
		} {
			if t.ID == 0 {
				errs = append(errs, fmt.Sprintf("store.baserow.tables.%s.id is required", name))
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not supported (local, baserow)", c.Store.Backend))
	}
	switch c.Mailer.Backend {
	case "smtp", "graph":
	default:
		errs = append(errs, fmt.Sprintf("mailer.backend %q is not supported (smtp, graph)", c.Mailer.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
