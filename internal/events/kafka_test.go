package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/codetribute/codetribute/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestEmitter(w *fakeWriter) *KafkaEmitter {
	return newEmitter(w, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestObserveCycleWritesKeyedEnvelope(t *testing.T) {
	writer := &fakeWriter{}
	emitter := newTestEmitter(writer)

	finished := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	report := models.CycleReport{
		ID:           "cycle-1",
		FinishedAt:   finished,
		Outcome:      models.CycleOutcomeCompleted,
		RecordCount:  2,
		CreatedFiles: []string{"a.txt"},
	}

	if err := emitter.ObserveCycle(context.Background(), report); err != nil {
		t.Fatalf("ObserveCycle returned error: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}

	msg := writer.messages[0]
	if string(msg.Key) != "cycle-1" {
		t.Errorf("expected key cycle-1, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != EventTypeCycleFinished {
		t.Errorf("unexpected headers %v", msg.Headers)
	}

	var envelope Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Type != EventTypeCycleFinished || !envelope.OccurredAt.Equal(finished) || envelope.Cycle.RecordCount != 2 {
		t.Errorf("unexpected envelope %+v", envelope)
	}
}

func TestObserveCycleSkipsEmptyCycles(t *testing.T) {
	writer := &fakeWriter{}
	if err := newTestEmitter(writer).ObserveCycle(context.Background(), models.CycleReport{Outcome: models.CycleOutcomeSkipped}); err != nil {
		t.Fatalf("ObserveCycle returned error: %v", err)
	}
	if len(writer.messages) != 0 {
		t.Errorf("skipped cycle should not be emitted")
	}
}

func TestObserveCycleWrapsWriteError(t *testing.T) {
	cause := errors.New("broker unavailable")
	emitter := newTestEmitter(&fakeWriter{err: cause})

	err := emitter.ObserveCycle(context.Background(), models.CycleReport{ID: "x", Outcome: models.CycleOutcomeDegraded})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestClose(t *testing.T) {
	writer := &fakeWriter{}
	if err := newTestEmitter(writer).Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !writer.closed {
		t.Error("writer not closed")
	}
}
