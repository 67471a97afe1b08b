package mailbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbot/internal/model"
)

func newTestGateway(timeout time.Duration) *Gateway {
	return NewGateway(model.MailConfig{}, "", timeout, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAwaitSlowOperationReturnsConnError(t *testing.T) {
	g := newTestGateway(5 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)

	err := g.await(context.Background(), "search", func() error {
		<-release
		return nil
	})

	require.Error(t, err)
	assert.True(t, IsConnError(err))

	var connErr *ConnError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "search", connErr.Op)
	assert.Contains(t, connErr.Error(), "timed out")
}

func TestAwaitWrapsOperationError(t *testing.T) {
	g := newTestGateway(time.Second)

	opErr := errors.New("NO mailbox unavailable")
	err := g.await(context.Background(), "fetch", func() error { return opErr })

	require.Error(t, err)
	assert.True(t, IsConnError(err))
	assert.ErrorIs(t, err, opErr)

	var connErr *ConnError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "fetch", connErr.Op)
}

func TestAwaitCancelledContextReturnsConnError(t *testing.T) {
	g := newTestGateway(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)

	err := g.await(ctx, "mark-seen", func() error {
		<-release
		return nil
	})

	require.Error(t, err)
	assert.True(t, IsConnError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwaitResultDiscardsOrphanedValue(t *testing.T) {
	release := make(chan struct{})
	discarded := make(chan string, 1)

	_, err := awaitResult(context.Background(), 5*time.Millisecond, "connect",
		func() (string, error) {
			<-release
			return "session", nil
		},
		func(v string) { discarded <- v })

	require.Error(t, err)
	assert.True(t, IsConnError(err))

	close(release)
	select {
	case v := <-discarded:
		assert.Equal(t, "session", v)
	case <-time.After(time.Second):
		t.Fatal("orphaned value was never discarded")
	}
}

func TestStripQuoted(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no quote",
			body: "Wann kommt meine Bestellung?",
			want: "Wann kommt meine Bestellung?",
		},
		{
			name: "quoted reply",
			body: "Danke!\n\n> Am Montag schrieben Sie:\n> Ihre Bestellung",
			want: "Danke!",
		},
		{
			name: "quote only",
			body: "> forwarded content",
			want: "",
		},
		{
			name: "empty",
			body: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripQuoted(tt.body))
		})
	}
}

func TestLocalpart(t *testing.T) {
	assert.Equal(t, "kunde", localpart("kunde@example.com"))
	assert.Equal(t, "no-address", localpart("no-address"))
	assert.Equal(t, "@example.com", localpart("@example.com"))
}

func TestExtractTextBodyPlainText(t *testing.T) {
	raw := []byte("From: kunde@example.com\r\n" +
		"To: shop@example.com\r\n" +
		"Subject: Test\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Wann kommt meine Bestellung?\r\n")

	got := extractTextBody(raw)

	assert.Contains(t, got, "Wann kommt meine Bestellung?")
}

func TestExtractTextBodyPrefersPlainOverHTML(t *testing.T) {
	raw := []byte("From: kunde@example.com\r\n" +
		"To: shop@example.com\r\n" +
		"Subject: Test\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=frontier\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--frontier--\r\n")

	got := extractTextBody(raw)

	assert.Contains(t, got, "plain body")
	assert.NotContains(t, got, "html body")
}

func TestExtractTextBodyUnparsableFallsBackToRaw(t *testing.T) {
	raw := []byte("not a mime message at all")

	assert.Equal(t, "not a mime message at all", extractTextBody(raw))
}
