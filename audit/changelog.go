// Package audit records committed product edits.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Entry 代表一筆已提交的欄位變更
type Entry struct {
	ProductID string    `json:"productId"`
	Field     string    `json:"field"`
	From      any       `json:"from"`
	To        any       `json:"to"`
	Actor     string    `json:"actor,omitempty"`
	At        time.Time `json:"at"`
}

type Writer interface {
	Append(ctx context.Context, entries ...Entry) error
}

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(ctx context.Context, entries ...Entry) error {
	for _, w := range m.writers {
		if err := w.Append(ctx, entries...); err != nil {
			return err
		}
	}
	return nil
}

// LogWriter writes entries to the structured log.
type LogWriter struct {
	logger *zap.Logger
}

func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Append(_ context.Context, entries ...Entry) error {
	for _, e := range entries {
		w.logger.Info("Product field changed",
			zap.String("product_id", e.ProductID),
			zap.String("field", e.Field),
			zap.Any("from", e.From),
			zap.Any("to", e.To),
			zap.String("actor", e.Actor),
			zap.Time("at", e.At))
	}
	return nil
}

// KafkaWriter publishes entries to a Kafka topic keyed by product id, so all
// changes to one product stay ordered within a partition.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a Kafka writer.
// brokers can be a comma-separated list of host:port.
func NewKafkaWriter(brokers string, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(SplitBrokers(brokers)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}

func (k *KafkaWriter) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(entries))
	for i := range entries {
		b, err := json.Marshal(&entries[i])
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(entries[i].ProductID), Value: b})
	}
	return k.writer.WriteMessages(ctx, msgs...)
}

func (k *KafkaWriter) Close() error {
	return k.writer.Close()
}

func SplitBrokers(list string) []string {
	var brokers []string
	for _, a := range strings.Split(list, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}
