// Package events publishes cycle reports to Kafka for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/codetribute/codetribute/internal/models"
)

// EventTypeCycleFinished tags messages carrying a CycleReport.
const EventTypeCycleFinished = "codetribute.cycle.finished"

const writeTimeout = 10 * time.Second

// MessageWriter is the subset of kafka.Writer the emitter uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the message body.
type Envelope struct {
	Type       string             `json:"type"`
	OccurredAt time.Time          `json:"occurred_at"`
	Cycle      models.CycleReport `json:"cycle"`
}

// KafkaEmitter writes one message per completed cycle, keyed by cycle ID.
type KafkaEmitter struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewKafkaEmitter creates an emitter writing synchronously to topic.
func NewKafkaEmitter(brokers []string, topic string, logger *slog.Logger) *KafkaEmitter {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
	return newEmitter(writer, logger)
}

func newEmitter(writer MessageWriter, logger *slog.Logger) *KafkaEmitter {
	return &KafkaEmitter{writer: writer, logger: logger}
}

// ObserveCycle emits the report. Skipped cycles are not emitted.
func (e *KafkaEmitter) ObserveCycle(ctx context.Context, report models.CycleReport) error {
	if report.Outcome == models.CycleOutcomeSkipped {
		return nil
	}

	body, err := json.Marshal(Envelope{
		Type:       EventTypeCycleFinished,
		OccurredAt: report.FinishedAt,
		Cycle:      report,
	})
	if err != nil {
		return fmt.Errorf("encode cycle event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(report.ID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCycleFinished)},
		},
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write cycle event: %w", err)
	}

	e.logger.Debug("cycle event published", "cycle_id", report.ID)
	return nil
}

// Close flushes and releases the writer.
func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}
