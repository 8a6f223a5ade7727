package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types published by the ingest runner.
const (
	TypeIngestCompleted = "ingest_completed"
	TypeIngestFailed    = "ingest_failed"
	TypeJobCreated      = "job_created"
)

// Event is the envelope every subscriber sees.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Publisher delivers events somewhere. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

func New(reqID, typ string, data any) Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Event{
		Type:      typ,
		Version:   1,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
}

func (e Event) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
