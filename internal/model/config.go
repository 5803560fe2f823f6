package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// AuthConfig holds the identity platform settings used to obtain tokens.
type AuthConfig struct {
	// ClientID is the application (client) identifier registered with the
	// identity provider. Required.
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// TenantID is the directory identifier ("common", "organizations",
	// "consumers" or a tenant GUID/domain).
	TenantID string `mapstructure:"tenant_id" yaml:"tenant_id"`

	// AuthorityHost is the root URL of the identity provider.
	AuthorityHost string `mapstructure:"authority_host" yaml:"authority_host"`

	// Scopes are the permissions requested for the mailbox API.
	Scopes []string `mapstructure:"scopes" yaml:"scopes"`
}

// CredentialConfig selects where the token cache is persisted.
type CredentialConfig struct {
	// Backend is "file" or "keyring".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the token cache file used by the file backend.
	Path string `mapstructure:"path" yaml:"path"`

	// KeyringDir is the directory used by the keyring's encrypted file
	// fallback backend.
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// MailboxConfig describes the remote mailbox and the message filter.
type MailboxConfig struct {
	// Provider is "graph" or "imap".
	Provider string `mapstructure:"provider" yaml:"provider"`

	// BaseURL is the Graph API root.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Folder is the mail folder that is polled.
	Folder string `mapstructure:"folder" yaml:"folder"`

	// SubjectKey is the exact subject a message must have to be processed.
	SubjectKey string `mapstructure:"subject_key" yaml:"subject_key"`

	// PageSize caps the number of messages listed per cycle.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// IMAPAddr is host:port of the IMAP server (imap provider only).
	IMAPAddr string `mapstructure:"imap_addr" yaml:"imap_addr"`

	// IMAPUsername is the mailbox login used for XOAUTH2 (imap provider only).
	IMAPUsername string `mapstructure:"imap_username" yaml:"imap_username"`

	// IMAPSecurity is "tls" (implicit TLS, port 993) or "starttls"
	// (upgrade on port 143).
	IMAPSecurity string `mapstructure:"imap_security" yaml:"imap_security"`
}

// PollConfig controls the cadence of the poll loop.
type PollConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// Schedule is an optional cron expression (with seconds field). When set
	// it replaces the fixed interval.
	Schedule string `mapstructure:"schedule" yaml:"schedule"`

	// Workers bounds how many messages are processed concurrently.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// S3Config configures the optional object storage mirror.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

// OutputConfig describes where qualifying attachments are written.
type OutputConfig struct {
	Dir string   `mapstructure:"dir" yaml:"dir"`
	S3  S3Config `mapstructure:"s3" yaml:"s3"`
}

// LedgerConfig holds the download history database settings.
type LedgerConfig struct {
	// Path to the SQLite database. Empty disables the ledger.
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	DevMode bool   `mapstructure:"dev_mode" yaml:"dev_mode"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Credential CredentialConfig `mapstructure:"credential" yaml:"credential"`
	Mailbox    MailboxConfig    `mapstructure:"mailbox" yaml:"mailbox"`
	Poll       PollConfig       `mapstructure:"poll" yaml:"poll"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Ledger     LedgerConfig     `mapstructure:"ledger" yaml:"ledger"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath is the configuration file read when no path is given.
const DefaultConfigPath = "mailpdf.yaml"

// envPrefix is prepended to every configuration key when read from the
// environment, e.g. MAILPDF_POLL_WORKERS.
const envPrefix = "MAILPDF"

// legacyEnv maps configuration keys to the additional environment variable
// names accepted for them.
var legacyEnv = map[string]string{
	"auth.client_id":    "AZURE_CLIENT_ID",
	"auth.tenant_id":    "AZURE_TENANT_ID",
	"auth.scopes":       "SCOPES",
	"poll.interval_sec": "CHECK_INTERVAL",
}

// defaultKeyringDir returns ~/.config/mailpdf/credentials.
func defaultKeyringDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "credentials")
	}
	return filepath.Join(home, ".config", "mailpdf", "credentials")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.tenant_id", "common")
	v.SetDefault("auth.authority_host", "https://login.microsoftonline.com")
	v.SetDefault("auth.scopes", []string{"Mail.ReadWrite"})

	v.SetDefault("credential.backend", "file")
	v.SetDefault("credential.path", "token_cache.bin")
	v.SetDefault("credential.keyring_dir", defaultKeyringDir())

	v.SetDefault("mailbox.provider", "graph")
	v.SetDefault("mailbox.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("mailbox.folder", "Inbox")
	v.SetDefault("mailbox.subject_key", "beneficios")
	v.SetDefault("mailbox.page_size", 50)
	v.SetDefault("mailbox.imap_addr", "outlook.office365.com:993")
	v.SetDefault("mailbox.imap_username", "")
	v.SetDefault("mailbox.imap_security", "tls")

	v.SetDefault("poll.interval_sec", 60)
	v.SetDefault("poll.schedule", "")
	v.SetDefault("poll.workers", 1)

	v.SetDefault("output.dir", "bils")
	v.SetDefault("output.s3.bucket", "")
	v.SetDefault("output.s3.region", "")
	v.SetDefault("output.s3.endpoint", "")
	v.SetDefault("output.s3.prefix", "")
	v.SetDefault("output.s3.access_key_id", "")
	v.SetDefault("output.s3.secret_access_key", "")

	v.SetDefault("ledger.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev_mode", false)
}

// LoadConfig reads configuration from the given YAML file path using Viper
// and applies environment overrides. A missing file is not an error: the
// defaults and the environment are used instead.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Auth.Scopes = normalizeScopes(cfg.Auth.Scopes)
	if cfg.Poll.Workers <= 0 {
		cfg.Poll.Workers = 1
	}

	return cfg, nil
}

// normalizeScopes trims whitespace and drops empty entries so that a
// comma separated SCOPES value like "Mail.ReadWrite, User.Read" works.
func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports configuration errors that must stop the process at
// startup.
func (c *AppConfig) Validate() error {
	if c.Auth.ClientID == "" {
		return errors.New("auth.client_id is required (set AZURE_CLIENT_ID)")
	}
	if c.Auth.TenantID == "" {
		return errors.New("auth.tenant_id must not be empty")
	}
	if len(c.Auth.Scopes) == 0 {
		return errors.New("auth.scopes must list at least one scope")
	}

	switch c.Credential.Backend {
	case "file":
		if c.Credential.Path == "" {
			return errors.New("credential.path is required for the file backend")
		}
	case "keyring":
	default:
		return fmt.Errorf("unknown credential.backend %q", c.Credential.Backend)
	}

	switch c.Mailbox.Provider {
	case "graph":
		if c.Mailbox.BaseURL == "" {
			return errors.New("mailbox.base_url is required for the graph provider")
		}
	case "imap":
		if c.Mailbox.IMAPAddr == "" || c.Mailbox.IMAPUsername == "" {
			return errors.New("mailbox.imap_addr and mailbox.imap_username are required for the imap provider")
		}
		if c.Mailbox.IMAPSecurity != "tls" && c.Mailbox.IMAPSecurity != "starttls" {
			return fmt.Errorf("unknown mailbox.imap_security %q", c.Mailbox.IMAPSecurity)
		}
	default:
		return fmt.Errorf("unknown mailbox.provider %q", c.Mailbox.Provider)
	}

	if c.Mailbox.SubjectKey == "" {
		return errors.New("mailbox.subject_key must not be empty")
	}
	if c.Mailbox.PageSize <= 0 {
		return fmt.Errorf("mailbox.page_size must be positive, got %d", c.Mailbox.PageSize)
	}
	if c.Poll.Schedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Poll.Schedule); err != nil {
			return fmt.Errorf("invalid poll.schedule %q: %w", c.Poll.Schedule, err)
		}
	}
	if c.Poll.Schedule == "" && c.Poll.IntervalSec <= 0 {
		return fmt.Errorf("poll.interval_sec must be positive, got %d", c.Poll.IntervalSec)
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir must not be empty")
	}

	return nil
}
