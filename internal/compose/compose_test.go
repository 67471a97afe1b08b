package compose

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbot/internal/classify"
	"github.com/nhle/mailbot/internal/model"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int

	lastSystem string
	lastUser   string
}

func (f *fakeGenerator) Complete(
	_ context.Context, system, user string,
) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	return f.reply, f.err
}

func testReplyConfig() model.ReplyConfig {
	return model.ReplyConfig{
		SignOff:      "Ihr Shop-Team",
		DiscountCode: "DANKE10",
	}
}

func germanOrderMessage() *model.Message {
	return &model.Message{
		UID:      7,
		From:     "kunde@example.com",
		Subject:  "Bestellung",
		Body:     "Wann kommt meine Bestellung?",
		Language: model.LanguageGerman,
	}
}

func TestComposeOrderStatusIncludesDiscountCodeAndSignOff(t *testing.T) {
	gen := &fakeGenerator{reply: "Ihre Bestellung ist unterwegs."}
	c := New(gen, testReplyConfig())

	reply, err := c.Compose(
		context.Background(), germanOrderMessage(), classify.CategoryOrderStatus,
	)

	require.NoError(t, err)
	assert.Contains(t, reply, "Ihre Bestellung ist unterwegs.")
	assert.Contains(t, reply, "Als kleines Dankeschön für Ihre Geduld: DANKE10")
	assert.NotContains(t, reply, "thank you for your patience")
	assert.Contains(t, reply, "Ihr Shop-Team")
}

func TestComposeEnglishOrderStatusUsesEnglishDiscountLine(t *testing.T) {
	gen := &fakeGenerator{reply: "Your order is on its way."}
	c := New(gen, testReplyConfig())

	msg := germanOrderMessage()
	msg.Language = model.LanguageEnglish

	reply, err := c.Compose(
		context.Background(), msg, classify.CategoryOrderStatus,
	)

	require.NoError(t, err)
	assert.Contains(t, reply, "As a small thank you for your patience: DANKE10")
	assert.NotContains(t, reply, "Dankeschön")
}

func TestComposePromptCarriesLanguageAndContent(t *testing.T) {
	gen := &fakeGenerator{reply: "Antwort"}
	c := New(gen, testReplyConfig())

	_, err := c.Compose(
		context.Background(), germanOrderMessage(), classify.CategoryOrderStatus,
	)

	require.NoError(t, err)
	assert.Contains(t, gen.lastUser, "Wann kommt meine Bestellung?")
	assert.Contains(t, gen.lastUser, "Write the reply in German.")
}

func TestComposeEnglishPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "On its way."}
	c := New(gen, testReplyConfig())

	msg := germanOrderMessage()
	msg.Language = model.LanguageEnglish

	_, err := c.Compose(context.Background(), msg, classify.CategoryGeneral)

	require.NoError(t, err)
	assert.Contains(t, gen.lastUser, "Write the reply in English.")
}

func TestComposeNonOrderReplyOmitsDiscountCode(t *testing.T) {
	gen := &fakeGenerator{reply: "General answer."}
	c := New(gen, testReplyConfig())

	reply, err := c.Compose(
		context.Background(), germanOrderMessage(), classify.CategoryGeneral,
	)

	require.NoError(t, err)
	assert.NotContains(t, reply, "DANKE10")
	assert.Contains(t, reply, "Ihr Shop-Team")
}

func TestComposeThankYouSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{}
	c := New(gen, testReplyConfig())

	msg := germanOrderMessage()
	msg.Body = "Vielen Dank!"

	reply, err := c.Compose(
		context.Background(), msg, classify.CategoryThankYou,
	)

	require.NoError(t, err)
	assert.Zero(t, gen.calls, "thank-you replies must not call the generator")
	assert.Contains(t, reply, "vielen Dank")
	assert.Contains(t, reply, "Ihr Shop-Team")
}

func TestComposeNoResponseYieldsErrNoReply(t *testing.T) {
	for _, generated := range []string{"", "no response", "No Response"} {
		gen := &fakeGenerator{reply: generated}
		c := New(gen, testReplyConfig())

		_, err := c.Compose(
			context.Background(), germanOrderMessage(), classify.CategoryGeneral,
		)

		assert.ErrorIs(t, err, ErrNoReply, "generated=%q", generated)
	}
}

func TestComposeGenerationErrorPropagates(t *testing.T) {
	genErr := errors.New("upstream unavailable")
	gen := &fakeGenerator{err: genErr}
	c := New(gen, testReplyConfig())

	_, err := c.Compose(
		context.Background(), germanOrderMessage(), classify.CategoryGeneral,
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, genErr)
	assert.NotErrorIs(t, err, ErrNoReply)
}
