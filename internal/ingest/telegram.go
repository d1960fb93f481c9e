// Package ingest receives inbound traffic (webhooks and the update poller)
// and feeds it through the ingestion pipeline.
package ingest

import (
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chatrelay/chatrelay/internal/bots"
	"github.com/chatrelay/chatrelay/internal/channel"
)

// fromTelegramUpdate converts a Telegram update into an inbound message.
// The second return is false for updates that carry nothing ingestible
// (edits, callbacks, service events, media without a caption); those are
// acked and skipped.
func fromTelegramUpdate(bot bots.Bot, update tgbotapi.Update) (channel.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return channel.InboundMessage{}, false
	}

	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if text == "" {
		return channel.InboundMessage{}, false
	}

	meta := channel.Meta{
		CompanyID: bot.CompanyID,
		BotID:     bot.ID,
		Content:   classifyContent(m),
		Raw: map[string]any{
			"update_id":           update.UpdateID,
			"telegram_message_id": m.MessageID,
			"chat_type":           m.Chat.Type,
		},
	}
	if m.From != nil {
		meta.Username = m.From.UserName
		meta.FirstName = m.From.FirstName
		meta.LastName = m.From.LastName
	}

	receivedAt := time.Now()
	if m.Date != 0 {
		receivedAt = time.Unix(int64(m.Date), 0)
	}

	return channel.InboundMessage{
		Channel:    channel.ChannelTelegram,
		ExternalID: strconv.FormatInt(m.Chat.ID, 10),
		Text:       text,
		ReceivedAt: receivedAt,
		Meta:       meta,
	}, true
}

func classifyContent(m *tgbotapi.Message) channel.ContentKind {
	switch {
	case len(m.Photo) > 0:
		return channel.ContentPhoto
	case m.Video != nil:
		return channel.ContentVideo
	case m.Sticker != nil:
		return channel.ContentSticker
	case m.Text != "":
		return channel.ContentText
	default:
		return channel.ContentUnknown
	}
}
