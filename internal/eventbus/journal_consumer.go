package eventbus

import (
	"context"

	"github.com/matthewbaird/probenode/internal/journal"
)

// JournalConsumer appends the readings of every turn to a journal store.
type JournalConsumer struct {
	store journal.Store
}

// NewJournalConsumer creates a consumer writing to store.
func NewJournalConsumer(store journal.Store) *JournalConsumer {
	return &JournalConsumer{store: store}
}

// HandleEvent writes the event's readings. Skipped ticks carry none.
func (c *JournalConsumer) HandleEvent(ctx context.Context, evt Event) error {
	if len(evt.Readings) == 0 {
		return nil
	}
	return c.store.WriteReadings(ctx, evt.Readings)
}
