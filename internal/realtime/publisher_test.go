package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransport struct {
	err      error
	channels []string
	payloads [][]byte
}

func (t *stubTransport) Publish(_ context.Context, channel string, payload []byte) error {
	t.channels = append(t.channels, channel)
	t.payloads = append(t.payloads, payload)
	return t.err
}

func TestToClientChannelAndBody(t *testing.T) {
	t.Parallel()
	transport := &stubTransport{}
	p := NewPublisher(nil, transport)

	p.ToClient(context.Background(), "c-42", "message.inbound", map[string]any{
		"client_id": "c-42",
		"text":      "hello",
	})

	require.Len(t, transport.channels, 1)
	assert.Equal(t, "chat.client.c-42", transport.channels[0])

	var env Envelope
	require.NoError(t, json.Unmarshal(transport.payloads[0], &env))
	assert.Equal(t, "message.inbound", env.Event)
	body := env.Data.(map[string]any)
	assert.Equal(t, "c-42", body["client_id"])
	assert.Equal(t, "hello", body["text"])
}

func TestToCompanyChannel(t *testing.T) {
	t.Parallel()
	transport := &stubTransport{}
	p := NewPublisher(nil, transport)
	p.ToCompany(context.Background(), "co-7", "chat.updated", map[string]any{"client_id": "c-1"})
	require.Len(t, transport.channels, 1)
	assert.Equal(t, "chat.company.co-7", transport.channels[0])
}

func TestPublishSwallowsTransportError(t *testing.T) {
	t.Parallel()
	transport := &stubTransport{err: errors.New("redis down")}
	p := NewPublisher(nil, transport)
	// Must not panic or propagate: realtime is best-effort.
	p.ToClient(context.Background(), "c-1", "message.inbound", map[string]any{"text": "x"})
	assert.Len(t, transport.channels, 1)
}
