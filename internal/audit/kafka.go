// mpesa-gateway/internal/audit/kafka.go
package audit

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes audit records to a topic, keyed by transaction
// reference so one transaction's records land in the same partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (s *KafkaSink) Insert(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.TransactionReference),
		Value: payload,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Tee writes to a primary store and mirrors to a best-effort secondary sink.
// Only the primary's error counts; a sink failure is logged and dropped.
type Tee struct {
	Primary   Store
	Secondary Store
}

func (t Tee) Insert(ctx context.Context, rec Record) error {
	err := t.Primary.Insert(ctx, rec)
	if t.Secondary != nil {
		if serr := t.Secondary.Insert(ctx, rec); serr != nil {
			log.Printf("[audit] secondary sink failed for %s: %v", rec.TransactionReference, serr)
		}
	}
	return err
}
