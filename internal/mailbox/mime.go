package mailbox

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// extractTextBody parses a raw RFC 2822 message using go-message and
// returns its text/plain body, falling back to the HTML part and finally
// to the raw bytes when parsing fails.
func extractTextBody(raw []byte) string {
	reader := bytes.NewReader(raw)

	mr, err := mail.CreateReader(reader)
	if err != nil {
		// If parsing fails, treat the whole thing as plain text.
		return string(raw)
	}
	defer mr.Close()

	var textBody, htmlBody string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	if textBody != "" {
		return textBody
	}
	return htmlBody
}
