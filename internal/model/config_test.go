package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "993", cfg.Mail.IMAPPort)
	assert.True(t, cfg.Mail.TLS)
	assert.Equal(t, 120, cfg.Scheduler.IdleIntervalSec)
	assert.Equal(t, 3, cfg.Scheduler.ConnectRetries)
	assert.Contains(t, cfg.Keywords.Sensitive, "storno")
	assert.Contains(t, cfg.Keywords.OrderStatus, "wann kommt")
	assert.NotEmpty(t, cfg.LedgerPath)
}

func TestLoadConfigReadsFileAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mail:
  address: shop@example.com
  imap_host: imap.example.com
  smtp_host: smtp.example.com
reply:
  sign_off: "Ihr Shop-Team"
  discount_code: "SOMMER5"
scheduler:
  idle_interval_sec: 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "shop@example.com", cfg.Mail.Address)
	assert.Equal(t, "SOMMER5", cfg.Reply.DiscountCode)
	assert.Equal(t, 30, cfg.Scheduler.IdleIntervalSec)
	// Unset keys fall back to defaults.
	assert.Equal(t, "993", cfg.Mail.IMAPPort)
	assert.Equal(t, 10, cfg.Scheduler.OpTimeoutSec)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mail: [unclosed"), 0o644))

	_, err := LoadConfig(path)

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &AppConfig{
		Mail: MailConfig{
			Address:  "shop@example.com",
			IMAPHost: "imap.example.com",
			SMTPHost: "smtp.example.com",
		},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Mail.Address = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "mail.address")
}
