package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/heuristic-logix/backoffice/pkg/config"
	"github.com/heuristic-logix/backoffice/pkg/outbox"
)

// Sink delivers outbox messages through Pub/Sub. Publisher handles are cached
// per topic because each one carries its own batching goroutines.
type Sink struct {
	client         *Client
	enableOrdering bool

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func NewSink(client *Client, cfg config.PubSubConfig) (*Sink, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	return &Sink{
		client:         client,
		enableOrdering: cfg.EnableOrdering,
		publishers:     make(map[string]*gcppubsub.Publisher),
	}, nil
}

// Publish blocks until the server acknowledges the message. The returned
// location is the Pub/Sub server id of the stored message.
func (s *Sink) Publish(ctx context.Context, msg outbox.Message) (outbox.Receipt, error) {
	pub, err := s.publisher(msg.Topic)
	if err != nil {
		return outbox.Receipt{}, err
	}

	out := &gcppubsub.Message{
		Data:       msg.Value,
		Attributes: msg.Headers,
	}
	if s.enableOrdering {
		out.OrderingKey = msg.Key
	}

	serverID, err := pub.Publish(ctx, out).Get(ctx)
	if err != nil {
		return outbox.Receipt{}, fmt.Errorf("publishing to %s: %w", msg.Topic, err)
	}
	return outbox.Receipt{Persisted: true, Location: serverID}, nil
}

func (s *Sink) publisher(topic string) (*gcppubsub.Publisher, error) {
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.publishers[topic]; ok {
		return pub, nil
	}
	pub := s.client.Publisher(topic)
	if pub == nil {
		return nil, fmt.Errorf("publisher not available for topic %s", topic)
	}
	pub.EnableMessageOrdering = s.enableOrdering
	s.publishers[topic] = pub
	return pub, nil
}

func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close flushes every cached publisher before releasing the client.
func (s *Sink) Close() error {
	s.mu.Lock()
	for _, pub := range s.publishers {
		pub.Stop()
	}
	s.publishers = make(map[string]*gcppubsub.Publisher)
	s.mu.Unlock()
	return s.client.Close()
}
