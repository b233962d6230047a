// Package stream mirrors alert status writes and journal entries onto a
// Kafka topic for downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/timeutil"
)

// Event types carried in Event.Type.
const (
	EventStatus = "status"
	EventAlert  = "alert"
)

// Event is the JSON value of every mirrored message. The message key is the
// subject id so one subject's events stay ordered within a partition.
type Event struct {
	Type      string         `json:"type"`
	SubjectID string         `json:"subject_id"`
	Fields    map[string]any `json:"fields,omitempty"`
	Alert     *alert.Record  `json:"alert,omitempty"`
	AtMs      int64          `json:"at_ms"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMirror implements alert.StatusStore and alert.Journal by publishing
// each call as an Event.
type KafkaMirror struct {
	writer messageWriter
	clock  timeutil.Clock
}

// NewWriter returns a synchronous writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 250 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// NewKafkaMirror returns a mirror publishing to topic on brokers.
func NewKafkaMirror(brokers []string, topic string) *KafkaMirror {
	return newKafkaMirror(NewWriter(brokers, topic), timeutil.RealClock{})
}

func newKafkaMirror(w messageWriter, clock timeutil.Clock) *KafkaMirror {
	return &KafkaMirror{writer: w, clock: clock}
}

func (k *KafkaMirror) MergeStatus(ctx context.Context, subjectID string, fields map[string]any) error {
	return k.publish(ctx, Event{Type: EventStatus, SubjectID: subjectID, Fields: fields})
}

func (k *KafkaMirror) AppendAlert(ctx context.Context, rec alert.Record) error {
	return k.publish(ctx, Event{Type: EventAlert, SubjectID: rec.SubjectID, Alert: &rec})
}

func (k *KafkaMirror) publish(ctx context.Context, ev Event) error {
	now := k.clock.Now()
	ev.AtMs = now.UnixMilli()
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.SubjectID),
		Value: body,
		Time:  now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event for %s: %w", ev.Type, ev.SubjectID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaMirror) Close() error {
	return k.writer.Close()
}
