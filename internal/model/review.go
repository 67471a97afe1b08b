package model

import "time"

// DraftNone is the DraftReply sentinel used when a review record carries
// no generated reply text.
const DraftNone = "none"

// Synthetic keyword tags recorded on escalations that are not driven by
// classifier matches.
const (
	TagNoReply     = "no-reply"
	TagSendFailure = "send-failure"
)

// ReviewRecord is one escalated message awaiting human handling. Records
// are append-only: nothing in this system ever mutates or deletes one; a
// human operator retires them out of band.
type ReviewRecord struct {
	ID         string
	CreatedAt  time.Time
	From       string
	SenderName string
	Subject    string
	Body       string

	// Keywords holds the matched classifier keywords, or a synthetic
	// reason tag such as "no-reply" or "send-failure".
	Keywords []string

	// DraftReply is the generated reply text preserved for the reviewer,
	// or DraftNone when no draft exists.
	DraftReply string
}
