// Package mailbox wraps the IMAP protocol client behind the small gateway
// surface the pipeline needs: connect, search unseen, fetch, mark seen,
// disconnect. The gateway owns a single persistent session; it is not safe
// for concurrent use, matching the single-threaded processing contract of
// the decision engine.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailbot/internal/model"
)

// ConnError indicates a transport-level mailbox failure (timeout, protocol
// error, lost connection). The scheduler reacts by reconnecting.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("mailbox %s: %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnError reports whether err (or any error in its chain) is a ConnError.
func IsConnError(err error) bool {
	var connErr *ConnError
	return errors.As(err, &connErr)
}

// Detector resolves the language of a stripped message body.
type Detector interface {
	Detect(ctx context.Context, body string) model.Language
}

// Gateway is the IMAP mailbox client used by the pipeline.
type Gateway struct {
	cfg      model.MailConfig
	password string
	timeout  time.Duration
	detector Detector
	logger   *slog.Logger

	client *imapclient.Client
}

// NewGateway creates a Gateway. opTimeout bounds each network operation.
func NewGateway(
	cfg model.MailConfig,
	password string,
	opTimeout time.Duration,
	detector Detector,
	logger *slog.Logger,
) *Gateway {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Gateway{
		cfg:      cfg,
		password: password,
		timeout:  opTimeout,
		detector: detector,
		logger:   logger,
	}
}

// Connected reports whether a session is currently established.
func (g *Gateway) Connected() bool {
	return g.client != nil
}

// Connect dials the IMAP server, authenticates, and selects INBOX. It is a
// no-op when a session is already established.
func (g *Gateway) Connect(ctx context.Context) error {
	if g.client != nil {
		return nil
	}

	client, err := awaitResult(ctx, g.timeout, "connect", g.dial,
		func(c *imapclient.Client) { _ = c.Close() })
	if err != nil {
		return err
	}

	g.client = client
	g.logger.Info("connected to IMAP server", "host", g.cfg.IMAPHost)
	return nil
}

// dial establishes a fresh authenticated session with INBOX selected.
func (g *Gateway) dial() (*imapclient.Client, error) {
	addr := g.cfg.IMAPHost + ":" + g.cfg.IMAPPort

	var client *imapclient.Client
	var dialErr error
	if g.cfg.TLS {
		client, dialErr = imapclient.DialTLS(addr, nil)
	} else {
		client, dialErr = imapclient.DialStartTLS(addr, nil)
	}
	if dialErr != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, dialErr)
	}

	if loginErr := client.Login(g.cfg.Address, g.password).Wait(); loginErr != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authenticating %s: %w", g.cfg.Address, loginErr)
	}

	if _, selErr := client.Select("INBOX", nil).Wait(); selErr != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting INBOX: %w", selErr)
	}

	return client, nil
}

// SearchUnseen returns the UIDs of all unseen messages in INBOX.
func (g *Gateway) SearchUnseen(ctx context.Context) ([]uint32, error) {
	if g.client == nil {
		return nil, &ConnError{Op: "search", Err: errors.New("not connected")}
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	var uids []uint32
	err := g.await(ctx, "search", func() error {
		searchData, searchErr := g.client.UIDSearch(criteria, nil).Wait()
		if searchErr != nil {
			return searchErr
		}
		for _, uid := range searchData.AllUIDs() {
			uids = append(uids, uint32(uid))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return uids, nil
}

// Fetch retrieves and parses the message with the given UID. The body is
// fetched with peek so reading never sets the \Seen flag as a side effect;
// mark-read stays the explicit final step of a pipeline pass.
func (g *Gateway) Fetch(ctx context.Context, uid uint32) (*model.Message, error) {
	if g.client == nil {
		return nil, &ConnError{Op: "fetch", Err: errors.New("not connected")}
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	var buf *imapclient.FetchMessageBuffer
	err := g.await(ctx, "fetch", func() error {
		fetchCmd := g.client.Fetch(uidSet, fetchOpts)
		defer fetchCmd.Close()

		msg := fetchCmd.Next()
		if msg == nil {
			return fmt.Errorf("message UID %d not found", uid)
		}

		var collectErr error
		buf, collectErr = msg.Collect()
		if collectErr != nil {
			return fmt.Errorf("collecting message data: %w", collectErr)
		}

		return fetchCmd.Close()
	})
	if err != nil {
		return nil, err
	}

	message := messageFromBuffer(uid, buf, bodySection)
	message.Language = g.detector.Detect(ctx, message.Body)

	g.logger.Info("fetched message",
		"uid", message.UID,
		"from", message.From,
		"subject", message.Subject,
		"language", message.Language,
	)

	return message, nil
}

// MarkSeen sets the \Seen flag on the message with the given UID. This is
// the sole dedup mechanism against reprocessing, so failures here surface
// as connection-health signals.
func (g *Gateway) MarkSeen(ctx context.Context, uid uint32) error {
	if g.client == nil {
		return &ConnError{Op: "mark-seen", Err: errors.New("not connected")}
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	return g.await(ctx, "mark-seen", func() error {
		storeCmd := g.client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil)
		return storeCmd.Close()
	})
}

// Disconnect logs out and drops the session. Safe to call when already
// disconnected.
func (g *Gateway) Disconnect() {
	if g.client == nil {
		return
	}
	_ = g.client.Logout().Wait()
	g.client = nil
	g.logger.Info("disconnected from IMAP server")
}

// Drop discards the session without a protocol logout, used after a
// failure when the connection state is unknown.
func (g *Gateway) Drop() {
	if g.client == nil {
		return
	}
	_ = g.client.Close()
	g.client = nil
}

// await runs op with the gateway's per-call timeout. Timeouts and protocol
// errors surface through the same ConnError path.
func (g *Gateway) await(ctx context.Context, op string, f func() error) error {
	_, err := awaitResult(ctx, g.timeout, op, func() (struct{}, error) {
		return struct{}{}, f()
	}, nil)
	return err
}

// awaitResult runs f with a timeout and hands back its value. If f finishes
// after the caller has stopped waiting, the orphaned value is passed to
// discard so it can be released. Timeouts, cancellation and errors from f
// all surface as ConnError.
func awaitResult[T any](
	ctx context.Context,
	timeout time.Duration,
	op string,
	f func() (T, error),
	discard func(T),
) (T, error) {
	type result struct {
		val T
		err error
	}

	done := make(chan result, 1)
	go func() {
		val, err := f()
		done <- result{val: val, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	drain := func() {
		go func() {
			res := <-done
			if res.err == nil && discard != nil {
				discard(res.val)
			}
		}()
	}

	select {
	case res := <-done:
		if res.err != nil {
			return zero, &ConnError{Op: op, Err: res.err}
		}
		return res.val, nil
	case <-timer.C:
		drain()
		return zero, &ConnError{
			Op:  op,
			Err: fmt.Errorf("timed out after %s", timeout),
		}
	case <-ctx.Done():
		drain()
		return zero, &ConnError{Op: op, Err: ctx.Err()}
	}
}

// messageFromBuffer builds a model.Message from fetched IMAP data.
func messageFromBuffer(
	uid uint32,
	buf *imapclient.FetchMessageBuffer,
	bodySection *imap.FetchItemBodySection,
) *model.Message {
	msg := &model.Message{UID: uid}

	if buf.Envelope != nil {
		msg.Subject = buf.Envelope.Subject
		msg.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			msg.From = from.Addr()
			msg.SenderName = strings.TrimSpace(from.Name)
		}
	}

	if msg.SenderName == "" {
		msg.SenderName = localpart(msg.From)
	}

	rawBody := buf.FindBodySection(bodySection)
	if rawBody != nil {
		msg.RawBody = extractTextBody(rawBody)
		msg.Body = StripQuoted(msg.RawBody)
	}

	return msg
}

// localpart returns the part of addr before the '@'.
func localpart(addr string) string {
	if i := strings.Index(addr, "@"); i > 0 {
		return addr[:i]
	}
	return addr
}

// StripQuoted removes quoted/forwarded content: everything from the first
// '>' onward is dropped and the remainder trimmed.
func StripQuoted(body string) string {
	if i := strings.Index(body, ">"); i >= 0 {
		body = body[:i]
	}
	return strings.TrimSpace(body)
}
