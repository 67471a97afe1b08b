// Package language detects whether a message body is German or English.
//
// Detection runs a fast trigram heuristic over a two-language whitelist
// first; only when its confidence falls below the threshold does it fall
// back to a single remote completion call.
package language

import (
	"context"
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/nhle/mailbot/internal/model"
)

// confidenceThreshold is the minimum heuristic confidence accepted
// without consulting the remote fallback.
const confidenceThreshold = 0.9

// Completer is the remote fallback used when the heuristic is ambiguous.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Detector classifies body text as german or english.
type Detector struct {
	fallback Completer
	logger   *slog.Logger
	options  whatlanggo.Options
}

// New creates a Detector with the given remote fallback. A nil fallback
// disables the remote step; ambiguous bodies then default to english.
func New(fallback Completer, logger *slog.Logger) *Detector {
	return &Detector{
		fallback: fallback,
		logger:   logger,
		options: whatlanggo.Options{
			Whitelist: map[whatlanggo.Lang]bool{
				whatlanggo.Deu: true,
				whatlanggo.Eng: true,
			},
		},
	}
}

// Detect returns the language of body. Quoted content must already be
// stripped by the caller. Empty bodies and all failures default to
// english.
func (d *Detector) Detect(ctx context.Context, body string) model.Language {
	body = strings.TrimSpace(body)
	if body == "" {
		return model.LanguageEnglish
	}

	info := whatlanggo.DetectWithOptions(body, d.options)
	if info.Confidence >= confidenceThreshold {
		switch info.Lang {
		case whatlanggo.Deu:
			return model.LanguageGerman
		case whatlanggo.Eng:
			return model.LanguageEnglish
		}
	}

	if d.fallback == nil {
		return model.LanguageEnglish
	}

	d.logger.Debug("language heuristic ambiguous, using remote fallback",
		"lang", info.Lang.String(),
		"confidence", info.Confidence,
	)

	answer, err := d.fallback.Complete(ctx,
		"You are a language detection assistant. Determine if the "+
			"following text is primarily in German or English. Respond "+
			"with only \"german\" or \"english\".",
		body,
	)
	if err != nil {
		d.logger.Warn("remote language detection failed, defaulting to english",
			"error", err,
		)
		return model.LanguageEnglish
	}

	if strings.EqualFold(strings.TrimSpace(answer), "german") {
		return model.LanguageGerman
	}
	return model.LanguageEnglish
}
