package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/heuristic-logix/backoffice/pkg/config"
	"github.com/heuristic-logix/backoffice/pkg/logger"
	"github.com/heuristic-logix/backoffice/pkg/outbox"
)

// Sink delivers outbox messages to Kafka. Keys hash to partitions, so every
// event for one aggregate lands on the same partition in insert order, and
// RequireAll holds the write until the in-sync replicas have it.
type Sink struct {
	writer  *kafkago.Writer
	brokers []string
}

func NewSink(cfg config.KafkaConfig, logg *logger.Logger) (*Sink, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
	}

	if logg != nil {
		logg.Info(context.Background(), "kafka sink initialized")
	}

	return &Sink{writer: writer, brokers: brokers}, nil
}

// Publish writes one message and waits for the broker acknowledgement.
func (s *Sink) Publish(ctx context.Context, msg outbox.Message) (outbox.Receipt, error) {
	if msg.Topic == "" {
		return outbox.Receipt{}, errors.New("topic is required")
	}

	out := kafkago.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: headersFrom(msg.Headers),
	}
	if err := s.writer.WriteMessages(ctx, out); err != nil {
		return outbox.Receipt{}, fmt.Errorf("writing to %s: %w", msg.Topic, err)
	}
	return outbox.Receipt{Persisted: true, Location: msg.Topic}, nil
}

// Ping dials the first broker to verify the cluster is reachable.
func (s *Sink) Ping(ctx context.Context) error {
	conn, err := kafkago.DialContext(ctx, "tcp", s.brokers[0])
	if err != nil {
		return fmt.Errorf("dialing kafka broker %s: %w", s.brokers[0], err)
	}
	return conn.Close()
}

func (s *Sink) Close() error {
	return s.writer.Close()
}

func headersFrom(headers map[string]string) []kafkago.Header {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]kafkago.Header, 0, len(keys))
	for _, key := range keys {
		out = append(out, kafkago.Header{Key: key, Value: []byte(headers[key])})
	}
	return out
}
