package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Event is emitted after a write has been committed.
type Event struct {
	Type   string    `json:"type"`
	Actor  string    `json:"actor"`
	Object string    `json:"object"`
	At     time.Time `json:"at"`
}

// Publisher delivers events to whoever is listening. Publish errors are reported to
// the caller but must never undo the write that produced the event.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// LogPublisher writes events to the log only. It is used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, evt Event) error {
	p.logger.Debug().
		Str("event", evt.Type).
		Str("actor", evt.Actor).
		Str("object", evt.Object).
		Msg("event published")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

func encode(evt Event) ([]byte, error) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	return json.Marshal(evt)
}
