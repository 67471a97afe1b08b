// Package compose turns a classified message into outgoing reply text.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/mailbot/internal/classify"
	"github.com/nhle/mailbot/internal/model"
)

// ErrNoReply is returned when the generation service reports that no
// automated response should be produced for the message.
var ErrNoReply = errors.New("compose: no automated response")

// Generator produces reply text from a system and user prompt.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Composer orchestrates reply generation: it builds a category- and
// language-aware prompt, delegates to the generation service, and appends
// the deterministic parts (discount code, sign-off) itself rather than
// trusting the model to include them.
type Composer struct {
	gen Generator
	cfg model.ReplyConfig
}

// New creates a Composer using the given generator and reply settings.
func New(gen Generator, cfg model.ReplyConfig) *Composer {
	return &Composer{gen: gen, cfg: cfg}
}

// Compose returns the reply text for msg. Thank-you messages get a short
// templated reply without a generation round-trip. Returns ErrNoReply when
// the generator declines to produce a response; all other generator errors
// propagate unchanged.
func (c *Composer) Compose(
	ctx context.Context,
	msg *model.Message,
	category classify.Category,
) (string, error) {
	if category == classify.CategoryThankYou {
		return c.finish(c.thankYouReply(msg), category, msg.Language), nil
	}

	reply, err := c.gen.Complete(ctx, systemPrompt, c.userPrompt(msg, category))
	if err != nil {
		return "", fmt.Errorf("generating reply for %s: %w", msg.From, err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" || strings.EqualFold(reply, "no response") {
		return "", ErrNoReply
	}

	return c.finish(reply, category, msg.Language), nil
}

const systemPrompt = "You are a professional email assistant for an " +
	"online shop. Generate polite, formal, and concise replies. Keep " +
	"the tone professional and avoid promising anything that cannot " +
	"be delivered. Do not include a signature or greeting unless " +
	"specified. If the email cannot be answered automatically, respond " +
	"with exactly \"no response\"."

// userPrompt builds the generation prompt from the message and category.
func (c *Composer) userPrompt(
	msg *model.Message, category classify.Category,
) string {
	var sb strings.Builder

	sb.WriteString("The email details are:\n")
	fmt.Fprintf(&sb, "From: %s\n", msg.From)
	fmt.Fprintf(&sb, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&sb, "Content: %s\n\n", msg.Body)

	switch category {
	case classify.CategoryOrderStatus:
		sb.WriteString("The customer asks about an order or delivery. ")
		sb.WriteString("Explain that orders usually ship within 2-3 ")
		sb.WriteString("business days and that a tracking link follows ")
		sb.WriteString("by email once the parcel is handed over.\n")
	case classify.CategoryFAQ:
		sb.WriteString("The customer asks a general question about ")
		sb.WriteString("sizing, shipping, or delivery times. Answer it ")
		sb.WriteString("briefly and point to the shop's FAQ page for ")
		sb.WriteString("details.\n")
	default:
		sb.WriteString("Generate a reply that addresses the email's ")
		sb.WriteString("content.\n")
	}

	if msg.Language == model.LanguageGerman {
		sb.WriteString("\nWrite the reply in German.")
	} else {
		sb.WriteString("\nWrite the reply in English.")
	}

	return sb.String()
}

// thankYouReply is the templated short reply for thank-you messages; no
// generation call is needed for these.
func (c *Composer) thankYouReply(msg *model.Message) string {
	if msg.Language == model.LanguageGerman {
		return "vielen Dank für Ihre freundliche Nachricht! Wir freuen " +
			"uns sehr, dass Sie zufrieden sind."
	}
	return "thank you for your kind message! We are very happy to hear " +
		"that you are satisfied."
}

// finish appends the deterministic reply parts: the discount code for
// order-status replies, in the reply's language, and the configured
// sign-off for every reply.
func (c *Composer) finish(
	reply string, category classify.Category, lang model.Language,
) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(reply))

	if category == classify.CategoryOrderStatus && c.cfg.DiscountCode != "" {
		sb.WriteString("\n\n")
		if lang == model.LanguageGerman {
			fmt.Fprintf(&sb,
				"Als kleines Dankeschön für Ihre Geduld: %s",
				c.cfg.DiscountCode)
		} else {
			fmt.Fprintf(&sb,
				"As a small thank you for your patience: %s",
				c.cfg.DiscountCode)
		}
	}

	if c.cfg.SignOff != "" {
		sb.WriteString("\n\n")
		sb.WriteString(c.cfg.SignOff)
	}

	return sb.String()
}
