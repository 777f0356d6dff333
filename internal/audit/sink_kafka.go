package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// KafkaSink mirrors audit events onto a Kafka topic for downstream compliance
// consumers. It wraps another Store: local persistence always happens first,
// and a produce failure never fails the append.
type KafkaSink struct {
	next   Store
	client *kgo.Client
	topic  string
	log    *zap.Logger
}

// NewKafkaSink connects a producer to the given brokers. Returns the wrapped
// store unchanged when no brokers are configured.
func NewKafkaSink(next Store, brokers []string, topic string, log *zap.Logger) (Store, error) {
	if len(brokers) == 0 {
		return next, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka audit sink: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaSink{next: next, client: client, topic: topic, log: log}, nil
}

type kafkaPayload struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	Actor     string            `json:"actor,omitempty"`
	Subject   string            `json:"subject"`
	Action    string            `json:"action"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	if err := s.next.Append(ctx, event); err != nil {
		return err
	}
	payload, err := json.Marshal(kafkaPayload{
		ID:        uuid.NewString(),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Actor:     event.Actor,
		Subject:   event.Subject,
		Action:    event.Action,
		Reason:    event.Reason,
		Metadata:  event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}
	record := &kgo.Record{Topic: s.topic, Key: []byte(event.Subject), Value: payload}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.log.Warn("audit produce failed", zap.String("action", event.Action), zap.Error(err))
		}
	})
	return nil
}

func (s *KafkaSink) ListBySubject(ctx context.Context, subject string) ([]Event, error) {
	return s.next.ListBySubject(ctx, subject)
}

// Close flushes buffered records and releases the producer.
func (s *KafkaSink) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Flush(ctx)
	s.client.Close()
}
