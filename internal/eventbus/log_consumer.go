package eventbus

import (
	"context"
	"log"
)

// LogConsumer logs every sampling turn.
type LogConsumer struct{}

func NewLogConsumer() *LogConsumer { return &LogConsumer{} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt Event) error {
	if evt.Err != "" {
		log.Printf("sample: skipped tick: %s", evt.Err)
		return nil
	}
	for _, r := range evt.Readings {
		log.Printf("sample: %s = %s (raw %d, published=%t)", r.Channel, r.Text(), r.Raw, evt.Published)
	}
	return nil
}
