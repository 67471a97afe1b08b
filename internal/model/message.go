package model

import "time"

// Language is the detected language of a message body.
type Language string

const (
	LanguageGerman  Language = "german"
	LanguageEnglish Language = "english"
)

// Message holds one fetched mail message for the duration of a single
// pipeline pass. It is never cached across cycles.
type Message struct {
	// UID is the IMAP-assigned identifier, unique within the mailbox
	// session.
	UID uint32

	// From is the sender address.
	From string

	// SenderName is the sender display name. When the envelope carries
	// none, it falls back to the localpart of the address.
	SenderName string

	Subject string

	// Body is the message text with quoted/forwarded content stripped.
	Body string

	// RawBody is the unstripped text body.
	RawBody string

	Date time.Time

	Language Language
}
