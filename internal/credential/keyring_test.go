package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "MAILBOT_IMAP_PASSWORD", EnvVar(KeyIMAPPassword))
	assert.Equal(t, "MAILBOT_SMTP_PASSWORD", EnvVar(KeySMTPPassword))
	assert.Equal(t, "MAILBOT_LLM_API_KEY", EnvVar(KeyLLMAPIKey))
}

func TestKnownKeysCoversAllCredentials(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{KeyIMAPPassword, KeySMTPPassword, KeyLLMAPIKey},
		KnownKeys(),
	)
}
