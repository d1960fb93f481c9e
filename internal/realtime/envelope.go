// Package realtime publishes chat events to the pub/sub fabric feeding
// operator dashboards and web chat widgets.
package realtime

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved top-level keys of the wire envelope. Caller payload keys with
// these names never leak into the data body.
const (
	keyEvent         = "event"
	keyOccurredAt    = "occurred_at"
	keyCorrelationID = "correlation_id"
	keyData          = "data"
)

// Envelope is the uniform wire format of every published event.
type Envelope struct {
	Event         string `json:"event"`
	OccurredAt    string `json:"occurred_at"`
	CorrelationID string `json:"correlation_id"`
	Data          any    `json:"data"`
}

// newEnvelope wraps a caller payload. The payload's "event" key names the
// event. If the payload carries a "data" key holding a slice of any element
// type, that slice becomes the body verbatim; otherwise every non-reserved
// key of the payload forms the body object.
func newEnvelope(payload map[string]any) Envelope {
	event := ""
	if raw, ok := payload[keyEvent].(string); ok {
		event = strings.TrimSpace(raw)
	}
	env := Envelope{
		Event:         event,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		CorrelationID: correlationID(),
	}
	if raw, ok := payload[keyData]; ok && raw != nil {
		switch reflect.TypeOf(raw).Kind() {
		case reflect.Slice, reflect.Array:
			env.Data = raw
			return env
		}
	}
	body := make(map[string]any, len(payload))
	for k, v := range payload {
		switch k {
		case keyEvent, keyOccurredAt, keyCorrelationID, keyData:
			continue
		}
		body[k] = v
	}
	env.Data = body
	return env
}

// correlationID returns a fixed-length lowercase hex id for cross-system
// tracing.
func correlationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
