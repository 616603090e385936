package events

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes every event to <prefix>.<type>, e.g. lending.events.action.processed.
func NATSSink(conn *nats.Conn, prefix string) Sink {
	if prefix == "" {
		prefix = "lending.events"
	}
	return func(evt Event) {
		data, err := json.Marshal(evt)
		if err != nil {
			log.Printf("❌ [NATS] failed to marshal event %s: %v", evt.Type, err)
			return
		}
		if err := conn.Publish(prefix+"."+string(evt.Type), data); err != nil {
			log.Printf("❌ [NATS] failed to publish event %s: %v", evt.Type, err)
		}
	}
}
