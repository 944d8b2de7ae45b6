package outbox

import "context"

// Message is the broker-agnostic unit handed to a Sink. Key carries the
// aggregate id so brokers that partition by key preserve per-aggregate order.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Receipt reports a durable acknowledgement from the broker. Location is
// backend specific (a Pub/Sub server id, a kafka partition/offset pair).
type Receipt struct {
	Persisted bool
	Location  string
}

// Sink delivers messages to the external broker. Publish must not return a
// successful Receipt until the broker has durably accepted the message.
type Sink interface {
	Publish(ctx context.Context, msg Message) (Receipt, error)
	Ping(ctx context.Context) error
	Close() error
}
