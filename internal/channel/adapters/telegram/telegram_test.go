package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/bots"
	"github.com/chatrelay/chatrelay/internal/channel"
)

type fakeBotSource struct {
	byID map[string]bots.Bot
}

func (f *fakeBotSource) Get(_ context.Context, id string) (bots.Bot, error) {
	bot, ok := f.byID[id]
	if !ok {
		return bots.Bot{}, bots.ErrNotFound
	}
	return bot, nil
}

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func newTestAdapter(sender *fakeSender) *Adapter {
	source := &fakeBotSource{byID: map[string]bots.Bot{
		"b-1": {ID: "b-1", Token: "secret-token", IsActive: true},
	}}
	a := NewAdapter(nil, source)
	a.newAPI = func(token string) (botSender, error) {
		if token != "secret-token" {
			return nil, errors.New("bad token")
		}
		return sender, nil
	}
	return a
}

func TestSupports(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(&fakeSender{})
	assert.True(t, a.Supports(channel.ChannelTelegram))
	assert.False(t, a.Supports(channel.ChannelWeb))
}

func TestSendDeliversToChat(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	a := newTestAdapter(sender)

	err := a.Send(context.Background(), channel.OutboundMessage{
		Channel: channel.ChannelTelegram,
		Target:  "123456",
		Text:    "hello",
		Meta:    map[string]string{MetaBotID: "b-1"},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(123456), msg.ChatID)
	assert.Equal(t, "hello", msg.Text)
}

func TestSendRejectsBadTarget(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(&fakeSender{})
	err := a.Send(context.Background(), channel.OutboundMessage{
		Channel: channel.ChannelTelegram,
		Target:  "not-a-chat-id",
		Text:    "x",
		Meta:    map[string]string{MetaBotID: "b-1"},
	})
	assert.Error(t, err)
}

func TestSendRequiresBotID(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(&fakeSender{})
	err := a.Send(context.Background(), channel.OutboundMessage{
		Channel: channel.ChannelTelegram,
		Target:  "123",
		Text:    "x",
	})
	assert.Error(t, err)
}

func TestSendProviderErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("telegram 502")
	a := newTestAdapter(&fakeSender{err: boom})
	err := a.Send(context.Background(), channel.OutboundMessage{
		Channel: channel.ChannelTelegram,
		Target:  "123",
		Text:    "x",
		Meta:    map[string]string{MetaBotID: "b-1"},
	})
	assert.ErrorIs(t, err, boom)
}

func TestSendUnknownBot(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(&fakeSender{})
	err := a.Send(context.Background(), channel.OutboundMessage{
		Channel: channel.ChannelTelegram,
		Target:  "123",
		Text:    "x",
		Meta:    map[string]string{MetaBotID: "b-missing"},
	})
	assert.ErrorIs(t, err, bots.ErrNotFound)
}

func TestAPIIsCachedPerToken(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	a := newTestAdapter(sender)
	created := 0
	inner := a.newAPI
	a.newAPI = func(token string) (botSender, error) {
		created++
		return inner(token)
	}
	msg := channel.OutboundMessage{
		Channel: channel.ChannelTelegram,
		Target:  "123",
		Text:    "x",
		Meta:    map[string]string{MetaBotID: "b-1"},
	}
	require.NoError(t, a.Send(context.Background(), msg))
	require.NoError(t, a.Send(context.Background(), msg))
	assert.Equal(t, 1, created)
}
