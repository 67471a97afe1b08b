package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailConfig holds the mailbox account and server settings. Passwords are
// never stored here; they are resolved through the credential package.
type MailConfig struct {
	// Address is the mailbox account, used for IMAP/SMTP login and as
	// the From address on outgoing replies.
	Address string `mapstructure:"address" yaml:"address"`

	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`

	// TLS controls whether the IMAP connection uses implicit TLS
	// (true) or STARTTLS (false).
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// KeywordConfig holds the classifier keyword sets. Matching is
// case-insensitive substring matching; precedence between the sets is
// fixed in the classifier, not by their order here.
type KeywordConfig struct {
	Sensitive   []string `mapstructure:"sensitive" yaml:"sensitive"`
	OrderStatus []string `mapstructure:"order_status" yaml:"order_status"`
	FAQ         []string `mapstructure:"faq" yaml:"faq"`
	ThankYou    []string `mapstructure:"thank_you" yaml:"thank_you"`
}

// LLMConfig holds settings for the reply-generation service.
type LLMConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ReplyConfig holds the deterministic parts of outgoing replies.
type ReplyConfig struct {
	// SignOff is appended to every generated reply.
	SignOff string `mapstructure:"sign_off" yaml:"sign_off"`

	// DiscountCode is included in order-status replies.
	DiscountCode string `mapstructure:"discount_code" yaml:"discount_code"`
}

// SchedulerConfig holds the polling and backoff parameters.
type SchedulerConfig struct {
	// IdleIntervalSec is the sleep between cycles when no unseen mail
	// was found.
	IdleIntervalSec int `mapstructure:"idle_interval_sec" yaml:"idle_interval_sec"`

	// FailureBackoffSec is the base backoff unit; a failed cycle sleeps
	// five times this value before the next attempt.
	FailureBackoffSec int `mapstructure:"failure_backoff_sec" yaml:"failure_backoff_sec"`

	ConnectRetries       int `mapstructure:"connect_retries" yaml:"connect_retries"`
	ConnectRetryDelaySec int `mapstructure:"connect_retry_delay_sec" yaml:"connect_retry_delay_sec"`

	// OpTimeoutSec bounds every single mailbox operation.
	OpTimeoutSec int `mapstructure:"op_timeout_sec" yaml:"op_timeout_sec"`
}

// AppConfig is the top-level application configuration. It is constructed
// once at startup and passed explicitly into each component constructor.
type AppConfig struct {
	Mail      MailConfig      `mapstructure:"mail" yaml:"mail"`
	Keywords  KeywordConfig   `mapstructure:"keywords" yaml:"keywords"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Reply     ReplyConfig     `mapstructure:"reply" yaml:"reply"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`

	// LedgerPath is the review ledger database file.
	LedgerPath string `mapstructure:"ledger_path" yaml:"ledger_path"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailbot/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailbot", "config.yaml")
}

// DefaultLedgerPath returns the default review ledger location,
// ~/.local/share/mailbot/reviews.db.
func DefaultLedgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "reviews.db")
	}
	return filepath.Join(home, ".local", "share", "mailbot", "reviews.db")
}

// defaultAppConfig returns a sensible default configuration, including the
// stock keyword sets for a German/English shop mailbox.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Mail: MailConfig{
			IMAPPort: "993",
			SMTPPort: "465",
			TLS:      true,
		},
		Keywords: KeywordConfig{
			Sensitive: []string{
				"storno", "stornieren", "kündigen", "abbrechen",
				"anwalt", "polizei", "klarna-verfahren", "widerruf",
				"betrug", "gericht", "rückerstattung", "beschwerde",
				"streit", "cancel", "fraud", "lawyer", "refund",
				"complaint",
			},
			OrderStatus: []string{
				"bestellung", "lieferung", "wann kommt",
				"order status", "delivery", "when will",
			},
			FAQ: []string{
				"größe", "grössen", "lieferzeit", "versand",
				"size", "sizing", "delivery time", "shipping",
			},
			ThankYou: []string{
				"danke", "vielen dank", "thank you", "thanks",
			},
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			MaxTokens: 200,
		},
		Reply: ReplyConfig{
			SignOff:      "Mit freundlichen Grüßen / Best regards,\nIhr Shop-Team",
			DiscountCode: "DANKE10",
		},
		Scheduler: SchedulerConfig{
			IdleIntervalSec:      120,
			FailureBackoffSec:    60,
			ConnectRetries:       3,
			ConnectRetryDelaySec: 5,
			OpTimeoutSec:         10,
		},
		LedgerPath: DefaultLedgerPath(),
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("mail.imap_port", "993")
	v.SetDefault("mail.smtp_port", "465")
	v.SetDefault("mail.tls", true)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 200)
	v.SetDefault("scheduler.idle_interval_sec", 120)
	v.SetDefault("scheduler.failure_backoff_sec", 60)
	v.SetDefault("scheduler.connect_retries", 3)
	v.SetDefault("scheduler.connect_retry_delay_sec", 5)
	v.SetDefault("scheduler.op_timeout_sec", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.LedgerPath == "" {
		cfg.LedgerPath = DefaultLedgerPath()
	}

	return cfg, nil
}

// Validate reports the first missing required field as an error.
func (c *AppConfig) Validate() error {
	switch {
	case c.Mail.Address == "":
		return fmt.Errorf("config: missing required field mail.address")
	case c.Mail.IMAPHost == "":
		return fmt.Errorf("config: missing required field mail.imap_host")
	case c.Mail.SMTPHost == "":
		return fmt.Errorf("config: missing required field mail.smtp_host")
	}
	return nil
}
