package credential

import (
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "mailbot"

// Well-known credential keys.
const (
	KeyIMAPPassword = "imap_password"
	KeySMTPPassword = "smtp_password"
	KeyLLMAPIKey    = "llm_api_key"
)

// KnownKeys lists the credential keys mailbot manages.
func KnownKeys() []string {
	return []string{KeyIMAPPassword, KeySMTPPassword, KeyLLMAPIKey}
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailbot/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailbot-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring. When the
// key is absent from the keyring, the environment variable MAILBOT_<KEY>
// (upper-cased) is consulted before giving up.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		if v := fromEnv(key); v != "" {
			return v, nil
		}
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		if v := fromEnv(key); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// EnvVar returns the environment variable name consulted as fallback for
// the given credential key.
func EnvVar(key string) string {
	return "MAILBOT_" + strings.ToUpper(key)
}

func fromEnv(key string) string {
	return os.Getenv(EnvVar(key))
}
