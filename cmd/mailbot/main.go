// Command mailbot polls a mailbox, classifies incoming messages, and
// either sends an automated reply or escalates the message for human
// review.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nhle/mailbot/internal/classify"
	"github.com/nhle/mailbot/internal/compose"
	"github.com/nhle/mailbot/internal/credential"
	"github.com/nhle/mailbot/internal/engine"
	"github.com/nhle/mailbot/internal/language"
	"github.com/nhle/mailbot/internal/ledger"
	"github.com/nhle/mailbot/internal/llm"
	"github.com/nhle/mailbot/internal/mailbox"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/outbound"
	"github.com/nhle/mailbot/internal/scheduler"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	setKey := flag.String("set-credential", "",
		"store a credential in the system keyring and exit; "+
			"the value is read from stdin")
	deleteKey := flag.String("delete-credential", "",
		"remove a credential from the system keyring and exit")
	flag.Parse()

	// .env is optional; real deployments use the keyring or environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *setKey != "" || *deleteKey != "" {
		if err := manageCredential(*setKey, *deleteKey, os.Stdin); err != nil {
			logger.Error("credential command failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, logger); err != nil {
		logger.Error("mailbot exited", "error", err)
		os.Exit(1)
	}
}

// manageCredential handles the -set-credential and -delete-credential
// flags. Exactly one of setKey and deleteKey may be non-empty.
func manageCredential(setKey, deleteKey string, in io.Reader) error {
	if setKey != "" && deleteKey != "" {
		return errors.New("use either -set-credential or -delete-credential, not both")
	}

	key := setKey
	if key == "" {
		key = deleteKey
	}
	if !slices.Contains(credential.KnownKeys(), key) {
		return fmt.Errorf("unknown credential key %q (known: %s)",
			key, strings.Join(credential.KnownKeys(), ", "))
	}

	if deleteKey != "" {
		return credential.Delete(key)
	}

	value, err := readSecret(in)
	if err != nil {
		return err
	}
	return credential.Set(key, value)
}

// readSecret reads a single credential value from r, up to the first
// newline, and trims surrounding whitespace.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading credential value: %w", err)
	}

	value := strings.TrimSpace(line)
	if value == "" {
		return "", errors.New("empty credential value")
	}
	return value, nil
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	imapPassword, err := credential.Get(credential.KeyIMAPPassword)
	if err != nil {
		return err
	}
	smtpPassword, err := credential.Get(credential.KeySMTPPassword)
	if err != nil {
		// Most providers share one password across IMAP and SMTP.
		smtpPassword = imapPassword
	}
	apiKey, err := credential.Get(credential.KeyLLMAPIKey)
	if err != nil {
		return err
	}

	reviewLedger, err := ledger.NewSQLiteLedger(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer reviewLedger.Close()

	client := llm.New(cfg.LLM, apiKey)
	detector := language.New(client, logger)

	gateway := mailbox.NewGateway(
		cfg.Mail,
		imapPassword,
		time.Duration(cfg.Scheduler.OpTimeoutSec)*time.Second,
		detector,
		logger,
	)

	eng := engine.New(
		classify.New(cfg.Keywords),
		compose.New(client, cfg.Reply),
		outbound.NewSender(cfg.Mail, smtpPassword),
		gateway,
		reviewLedger,
		logger,
	)

	sched := scheduler.New(gateway, eng, cfg.Scheduler, logger)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	logger.Info("mailbot starting",
		"address", cfg.Mail.Address,
		"imap", cfg.Mail.IMAPHost,
		"ledger", cfg.LedgerPath,
	)

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("mailbot stopped")
	return nil
}
