package language

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mailbot/internal/model"
)

type fakeCompleter struct {
	answer string
	err    error
	calls  int
}

func (f *fakeCompleter) Complete(
	_ context.Context, _, _ string,
) (string, error) {
	f.calls++
	return f.answer, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDetectGermanHeuristic(t *testing.T) {
	fallback := &fakeCompleter{answer: "english"}
	d := New(fallback, discardLogger())

	body := "Guten Tag, ich hätte eine Frage zu meiner Bestellung. " +
		"Können Sie mir bitte sagen, wann die Lieferung bei mir ankommt? " +
		"Vielen Dank für Ihre Hilfe und freundliche Grüße aus München."

	got := d.Detect(context.Background(), body)

	assert.Equal(t, model.LanguageGerman, got)
	assert.Zero(t, fallback.calls,
		"a confident heuristic result must not consult the fallback")
}

func TestDetectEnglishHeuristic(t *testing.T) {
	fallback := &fakeCompleter{answer: "german"}
	d := New(fallback, discardLogger())

	body := "Hello, I would like to know when my order will arrive. " +
		"Could you please send me the tracking information for the " +
		"package? Thank you very much for your help and kind regards."

	got := d.Detect(context.Background(), body)

	assert.Equal(t, model.LanguageEnglish, got)
	assert.Zero(t, fallback.calls)
}

func TestDetectAmbiguousFallsBackToRemote(t *testing.T) {
	fallback := &fakeCompleter{answer: "german"}
	d := New(fallback, discardLogger())

	// Too short for a confident trigram result.
	got := d.Detect(context.Background(), "ok")

	assert.Equal(t, model.LanguageGerman, got)
	assert.Equal(t, 1, fallback.calls)
}

func TestDetectFallbackErrorDefaultsToEnglish(t *testing.T) {
	fallback := &fakeCompleter{err: errors.New("upstream unavailable")}
	d := New(fallback, discardLogger())

	got := d.Detect(context.Background(), "ok")

	assert.Equal(t, model.LanguageEnglish, got)
}

func TestDetectEmptyBodyDefaultsToEnglish(t *testing.T) {
	fallback := &fakeCompleter{answer: "german"}
	d := New(fallback, discardLogger())

	assert.Equal(t, model.LanguageEnglish, d.Detect(context.Background(), "   "))
	assert.Zero(t, fallback.calls)
}

func TestDetectNilFallbackDefaultsToEnglish(t *testing.T) {
	d := New(nil, discardLogger())

	assert.Equal(t, model.LanguageEnglish, d.Detect(context.Background(), "ok"))
}
