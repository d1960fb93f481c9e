package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/chat"
)

// Recognized intent labels. Anything the model returns outside this set is
// recorded as "other".
var knownIntents = map[string]struct{}{
	"question":  {},
	"complaint": {},
	"purchase":  {},
	"spam":      {},
	"other":     {},
}

const suggestTimeout = 30 * time.Second

// EventPublisher is the slice of the realtime publisher the enrichment
// stage needs.
type EventPublisher interface {
	ToCompany(ctx context.Context, companyID, event string, data map[string]any)
}

// AiEnrich classifies the message intent and patches it onto the stored row,
// then kicks off reply suggestions for operators. The stage is best-effort:
// it logs failures and always lets the chain succeed.
type AiEnrich struct {
	completer chat.Completer
	messages  MessageWriter
	publisher EventPublisher
	logger    *slog.Logger
}

// NewAiEnrich creates the enrichment stage. publisher may be nil, in which
// case suggestions are computed and dropped with a log line.
func NewAiEnrich(log *slog.Logger, completer chat.Completer, messages MessageWriter, publisher EventPublisher) *AiEnrich {
	if log == nil {
		log = slog.Default()
	}
	return &AiEnrich{
		completer: completer,
		messages:  messages,
		publisher: publisher,
		logger:    log.With(slog.String("stage", "enrich")),
	}
}

func (e *AiEnrich) Name() string { return "enrich" }

func (e *AiEnrich) Process(ctx context.Context, msg *channel.InboundMessage) error {
	if e.completer == nil || msg.Meta.MessageID == "" || strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	intent, err := e.classify(ctx, msg)
	if err != nil {
		e.logger.Warn("intent classification failed",
			slog.String("message_id", msg.Meta.MessageID),
			slog.Any("error", err),
		)
	} else if err := e.messages.PatchIntent(ctx, msg.Meta.MessageID, intent); err != nil {
		e.logger.Warn("intent patch failed",
			slog.String("message_id", msg.Meta.MessageID),
			slog.Any("error", err),
		)
	}

	// Suggestions run detached: the ingest response never waits for them.
	go e.suggest(context.WithoutCancel(ctx), *msg)
	return nil
}

func (e *AiEnrich) classify(ctx context.Context, msg *channel.InboundMessage) (string, error) {
	resp, err := e.completer.Complete(ctx, chat.Request{
		Feature: chat.FeatureIntent,
		Channel: msg.Channel.String(),
		Messages: []chat.Message{
			{Role: "system", Content: "Classify the customer message into exactly one intent: question, complaint, purchase, spam or other. Reply with the single word only."},
			{Role: "user", Content: msg.Text},
		},
	})
	if err != nil {
		return "", err
	}
	intent := strings.ToLower(strings.TrimSpace(resp.Content))
	if _, ok := knownIntents[intent]; !ok {
		intent = "other"
	}
	return intent, nil
}

func (e *AiEnrich) suggest(ctx context.Context, msg channel.InboundMessage) {
	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()
	resp, err := e.completer.Complete(ctx, chat.Request{
		Feature: chat.FeatureSuggest,
		Channel: msg.Channel.String(),
		Messages: []chat.Message{
			{Role: "system", Content: "Draft up to three short reply suggestions for a support operator, one per line."},
			{Role: "user", Content: msg.Text},
		},
	})
	if err != nil {
		e.logger.Debug("reply suggestions failed",
			slog.String("message_id", msg.Meta.MessageID),
			slog.Any("error", err),
		)
		return
	}
	if e.publisher == nil {
		e.logger.Debug("reply suggestions dropped, no publisher",
			slog.String("message_id", msg.Meta.MessageID))
		return
	}
	suggestions := make([]string, 0, 3)
	for _, line := range strings.Split(resp.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			suggestions = append(suggestions, line)
		}
	}
	// The ids ride next to the suggestions so operators can attribute them
	// to a chat and message.
	e.publisher.ToCompany(ctx, msg.Meta.CompanyID, "message.suggestions", map[string]any{
		"client_id":   msg.ClientID,
		"message_id":  msg.Meta.MessageID,
		"suggestions": suggestions,
	})
}
