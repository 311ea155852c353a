package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	id "gatepass/pkg/domain"
)

// KafkaDispatcher publishes credential events to a Kafka topic for the
// downstream delivery workers (push/SMS). Produces are asynchronous and
// errors are logged, keeping the dispatch fire-and-forget.
type KafkaDispatcher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type kafkaEvent struct {
	ResidentID string            `json:"resident_id"`
	Event      string            `json:"event"`
	Data       map[string]string `json:"data,omitempty"`
	EmittedAt  time.Time         `json:"emitted_at"`
}

// NewKafkaDispatcher connects to the brokers and ensures the topic exists.
func NewKafkaDispatcher(brokers []string, topic string, logger *slog.Logger) (*KafkaDispatcher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	admin := kadm.NewClient(client)
	// CreateTopic is idempotent enough for startup: an already-exists response
	// is not a failure.
	if _, err := admin.CreateTopic(ctx, 3, 1, nil, topic); err != nil {
		logger.Warn("could not create notification topic, assuming it exists",
			"topic", topic,
			"error", err,
		)
	}

	return &KafkaDispatcher{client: client, topic: topic, logger: logger}, nil
}

func (d *KafkaDispatcher) Notify(ctx context.Context, residentID id.ResidentID, event string, data map[string]string) {
	value, err := json.Marshal(kafkaEvent{
		ResidentID: residentID.String(),
		Event:      event,
		Data:       data,
		EmittedAt:  time.Now().UTC(),
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "marshal notification event", "event", event, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: d.topic,
		Key:   []byte(residentID.String()),
		Value: value,
	}
	// Detached context: the notification must not be cancelled with the
	// request that triggered it.
	d.client.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			d.logger.Error("notification publish failed",
				"event", event,
				"resident_id", residentID.String(),
				"error", err,
			)
		}
	})
}

// Close flushes pending produces and closes the client.
func (d *KafkaDispatcher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = d.client.Flush(ctx)
	d.client.Close()
}
