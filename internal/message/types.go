// Package message persists chat history rows.
package message

import "time"

// Direction of a message relative to the platform.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Message is one persisted chat message. Rows are immutable after creation
// except for the intent patch applied by AI enrichment.
type Message struct {
	ID        string         `json:"id"`
	ClientID  string         `json:"client_id"`
	Direction string         `json:"direction"`
	Text      string         `json:"text"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateParams is the input for writing a message row.
type CreateParams struct {
	ClientID  string
	Direction string
	Text      string
	Payload   map[string]any
}
