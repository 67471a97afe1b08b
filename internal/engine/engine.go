// Package engine implements the per-message decision state machine:
// Fetched -> Classified -> Decided -> Effected -> MarkedRead. Each message
// produces exactly one decision, drives exactly one side-effect group, and
// is retired with exactly one mark-read.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nhle/mailbot/internal/classify"
	"github.com/nhle/mailbot/internal/compose"
	"github.com/nhle/mailbot/internal/ledger"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/outbound"
)

// Kind is the decision outcome for one message.
type Kind string

const (
	KindAutoReply Kind = "auto-reply"
	KindEscalate  Kind = "escalate"
	KindSkip      Kind = "skip"
)

// Decision is the single outcome produced for a fetched message.
type Decision struct {
	Kind Kind

	// Reply is the generated reply text for KindAutoReply. On a send
	// failure it survives as the preserved draft on the escalation.
	Reply string

	// Reason explains an escalation or skip.
	Reason string

	// Keywords are the matched classifier keywords or a synthetic
	// reason tag, recorded on the review ledger.
	Keywords []string
}

// Gateway is the mailbox surface the engine needs to retire a message.
type Gateway interface {
	MarkSeen(ctx context.Context, uid uint32) error
}

// Sender delivers an auto-reply.
type Sender interface {
	SendReply(ctx context.Context, toAddress, subject, bodyText string) error
}

// Composer produces reply text for a message and category.
type Composer interface {
	Compose(
		ctx context.Context,
		msg *model.Message,
		category classify.Category,
	) (string, error)
}

// Classifier assigns a message body to a category.
type Classifier interface {
	Classify(body string) classify.Result
}

// Engine decides and applies the outcome for each fetched message.
type Engine struct {
	classifier Classifier
	composer   Composer
	sender     Sender
	gateway    Gateway
	ledger     ledger.Ledger
	logger     *slog.Logger
}

// New creates an Engine wired to its collaborators.
func New(
	classifier Classifier,
	composer Composer,
	sender Sender,
	gateway Gateway,
	reviewLedger ledger.Ledger,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		classifier: classifier,
		composer:   composer,
		sender:     sender,
		gateway:    gateway,
		ledger:     reviewLedger,
		logger:     logger,
	}
}

// ProcessBatch processes a fetched batch sequentially, most recent first,
// so a backlog drains newest-first. The first cycle-level error aborts the
// remainder of the batch; untouched messages stay unseen and are refetched
// next cycle.
func (e *Engine) ProcessBatch(ctx context.Context, msgs []*model.Message) error {
	sorted := make([]*model.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	for _, msg := range sorted {
		if err := e.Process(ctx, msg); err != nil {
			return err
		}
	}

	return nil
}

// Process runs one message through the full pipeline pass.
func (e *Engine) Process(ctx context.Context, msg *model.Message) error {
	cls := e.classifier.Classify(msg.Body)
	e.logger.Info("classified message",
		"uid", msg.UID,
		"from", msg.From,
		"category", cls.Category,
		"matched", cls.Matched,
	)

	decision, err := e.Decide(ctx, msg, cls)
	if err != nil {
		return err
	}

	return e.Apply(ctx, decision, msg)
}

// Decide produces the decision for a classified message. Rules, in
// priority order: no-reply sender escalates; sensitive classification
// escalates without generating any draft; everything else delegates to the
// composer. Generation failures propagate so the cycle can back off while
// the message stays unseen.
func (e *Engine) Decide(
	ctx context.Context,
	msg *model.Message,
	cls classify.Result,
) (Decision, error) {
	if isNoReplyAddress(msg.From) {
		return Decision{
			Kind:     KindEscalate,
			Reason:   "no-reply address",
			Keywords: []string{model.TagNoReply},
		}, nil
	}

	if cls.Category == classify.CategorySensitive {
		// Generation is skipped entirely here: no draft is produced
		// that could be misused for sensitive mail.
		return Decision{
			Kind:     KindEscalate,
			Reason:   "sensitive keywords",
			Keywords: cls.Matched,
		}, nil
	}

	if strings.TrimSpace(msg.Body) == "" {
		return Decision{
			Kind:   KindSkip,
			Reason: "empty body",
		}, nil
	}

	reply, err := e.composer.Compose(ctx, msg, cls.Category)
	if err != nil {
		if errors.Is(err, compose.ErrNoReply) {
			return Decision{
				Kind:     KindEscalate,
				Reason:   "no automated response",
				Keywords: []string{model.TagNoReply},
			}, nil
		}
		return Decision{}, fmt.Errorf("deciding message %d: %w", msg.UID, err)
	}

	return Decision{Kind: KindAutoReply, Reply: reply}, nil
}

// Apply drives the decision's side-effect group, then retires the message
// with a single unconditional mark-read. A failed send converts the
// decision in place to an escalation that preserves the draft; it is never
// retried inline. A ledger append failure aborts the pass before mark-read
// so an escalated message is never silently lost. A mark-read failure is
// returned as a connection-health signal, never as a reason to repeat the
// decision.
func (e *Engine) Apply(
	ctx context.Context,
	decision Decision,
	msg *model.Message,
) error {
	switch decision.Kind {
	case KindAutoReply:
		if err := e.sender.SendReply(ctx, msg.From, msg.Subject, decision.Reply); err != nil {
			if !outbound.IsSendError(err) {
				return fmt.Errorf("applying auto-reply for %d: %w", msg.UID, err)
			}
			e.logger.Warn("send failed, escalating with preserved draft",
				"uid", msg.UID,
				"from", msg.From,
				"error", err,
			)
			escalated := Decision{
				Kind:     KindEscalate,
				Reason:   "send failure",
				Keywords: []string{model.TagSendFailure},
				Reply:    decision.Reply,
			}
			if err := e.escalate(ctx, escalated, msg); err != nil {
				return err
			}
		} else {
			e.logger.Info("sent auto-reply",
				"uid", msg.UID,
				"to", msg.From,
				"subject", msg.Subject,
			)
		}

	case KindEscalate:
		if err := e.escalate(ctx, decision, msg); err != nil {
			return err
		}

	case KindSkip:
		e.logger.Info("skipped message",
			"uid", msg.UID,
			"from", msg.From,
			"reason", decision.Reason,
		)
	}

	if err := e.gateway.MarkSeen(ctx, msg.UID); err != nil {
		e.logger.Error("failed to mark message read",
			"uid", msg.UID,
			"error", err,
		)
		return err
	}

	return nil
}

// escalate appends the review record. The append must complete durably
// before the message can be marked read.
func (e *Engine) escalate(
	ctx context.Context,
	decision Decision,
	msg *model.Message,
) error {
	draft := decision.Reply
	if draft == "" {
		draft = model.DraftNone
	}

	rec := model.ReviewRecord{
		From:       msg.From,
		SenderName: msg.SenderName,
		Subject:    msg.Subject,
		Body:       msg.Body,
		Keywords:   decision.Keywords,
		DraftReply: draft,
	}

	if err := e.ledger.Append(ctx, rec); err != nil {
		return fmt.Errorf("recording escalation for %d: %w", msg.UID, err)
	}

	e.logger.Info("escalated message for review",
		"uid", msg.UID,
		"from", msg.From,
		"reason", decision.Reason,
		"keywords", decision.Keywords,
	)

	return nil
}

// isNoReplyAddress reports whether addr looks like an unattended sender.
func isNoReplyAddress(addr string) bool {
	lower := strings.ToLower(addr)
	return strings.Contains(lower, "noreply") || strings.Contains(lower, "no-reply")
}
