package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/channel/adapters/telegram"
	"github.com/chatrelay/chatrelay/internal/client"
	"github.com/chatrelay/chatrelay/internal/message"
)

const clientUUID = "6a4f6f63-0c2f-4d5a-9f0e-2b7c1d8e9a01"

type fakeClients struct {
	byID map[string]client.Client
}

func (f *fakeClients) Get(_ context.Context, id string) (client.Client, error) {
	c, ok := f.byID[id]
	if !ok {
		return client.Client{}, client.ErrNotFound
	}
	return c, nil
}

type fakeMessageStore struct {
	mu      sync.Mutex
	created []message.CreateParams
	listed  []message.Message
}

func (f *fakeMessageStore) Create(_ context.Context, params message.CreateParams) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, params)
	return message.Message{ID: fmt.Sprintf("m-%d", len(f.created)), ClientID: params.ClientID, Direction: params.Direction, Text: params.Text}, nil
}

func (f *fakeMessageStore) ListByClient(context.Context, string, int) ([]message.Message, error) {
	return f.listed, nil
}

type recordingAdapter struct {
	mu   sync.Mutex
	sent []channel.OutboundMessage
	err  error
}

func (a *recordingAdapter) Name() string                      { return "recording" }
func (a *recordingAdapter) Supports(channel.ChannelType) bool { return true }
func (a *recordingAdapter) Send(_ context.Context, msg channel.OutboundMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, msg)
	return a.err
}

type companyEvents struct {
	mu     sync.Mutex
	events []string
}

func (p *companyEvents) ToCompany(_ context.Context, _, event string, _ map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func newSendTestEnv(target client.Client, adapter *recordingAdapter) (*echo.Echo, *fakeMessageStore, *companyEvents) {
	clients := &fakeClients{byID: map[string]client.Client{target.ID: target}}
	store := &fakeMessageStore{}
	registry := channel.NewRegistry(nil)
	registry.MustRegister(adapter)
	publisher := &companyEvents{}
	h := NewMessagesHandler(nil, clients, store, registry, publisher)
	e := echo.New()
	h.Register(e)
	return e, store, publisher
}

func telegramClient() client.Client {
	return client.Client{
		ID:             clientUUID,
		CompanyID:      "co-1",
		Channel:        "telegram",
		ExternalID:     "123456",
		TelegramChatID: 123456,
		BotID:          "b-1",
	}
}

func postSend(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/messages/send", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSendValidation(t *testing.T) {
	t.Parallel()
	e, _, _ := newSendTestEnv(telegramClient(), &recordingAdapter{})

	rec := postSend(e, `{"client_id":"","text":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postSend(e, `{"client_id":"not-a-uuid","text":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postSend(e, fmt.Sprintf(`{"client_id":"%s","text":""}`, clientUUID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendUnknownClient(t *testing.T) {
	t.Parallel()
	e, _, _ := newSendTestEnv(telegramClient(), &recordingAdapter{})
	rec := postSend(e, `{"client_id":"11111111-2222-4333-8444-555555555555","text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendPersistsAndDispatches(t *testing.T) {
	t.Parallel()
	adapter := &recordingAdapter{}
	e, store, publisher := newSendTestEnv(telegramClient(), adapter)

	rec := postSend(e, fmt.Sprintf(`{"client_id":"%s","text":"on our way"}`, clientUUID))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, store.created, 1)
	assert.Equal(t, message.DirectionOut, store.created[0].Direction)
	assert.Equal(t, clientUUID, store.created[0].ClientID)

	require.Len(t, adapter.sent, 1)
	sent := adapter.sent[0]
	assert.Equal(t, channel.ChannelTelegram, sent.Channel)
	assert.Equal(t, "123456", sent.Target)
	assert.Equal(t, "b-1", sent.Meta[telegram.MetaBotID])

	assert.Contains(t, publisher.events, "chat.updated")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "m-1", body["message_id"])
}

func TestSendDeliveryFailure(t *testing.T) {
	t.Parallel()
	adapter := &recordingAdapter{err: errors.New("telegram down")}
	e, store, _ := newSendTestEnv(telegramClient(), adapter)

	rec := postSend(e, fmt.Sprintf(`{"client_id":"%s","text":"hi"}`, clientUUID))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Len(t, store.created, 1, "outbound row is written before delivery is attempted")
}

func TestSendWebClientTargetsClientID(t *testing.T) {
	t.Parallel()
	webClient := client.Client{ID: clientUUID, CompanyID: "co-1", Channel: "web", ExternalID: "v-1"}
	adapter := &recordingAdapter{}
	e, _, _ := newSendTestEnv(webClient, adapter)

	rec := postSend(e, fmt.Sprintf(`{"client_id":"%s","text":"hello"}`, clientUUID))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, adapter.sent, 1)
	assert.Equal(t, channel.ChannelWeb, adapter.sent[0].Channel)
	assert.Equal(t, clientUUID, adapter.sent[0].Target)
}

func TestListMessages(t *testing.T) {
	t.Parallel()
	adapter := &recordingAdapter{}
	e, store, _ := newSendTestEnv(telegramClient(), adapter)
	store.listed = []message.Message{{ID: "m-1", Direction: message.DirectionIn, Text: "hi"}}

	req := httptest.NewRequest(http.MethodGet, "/clients/"+clientUUID+"/messages?limit=10", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []message.Message `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "m-1", body.Items[0].ID)
}
