// Package events publishes notifications about stored submissions.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stevemurr/flash-survey/logging"
	"github.com/stevemurr/flash-survey/store"
	"github.com/stevemurr/flash-survey/submission"
)

const EventSubmissionSaved = "submission_saved"

// Notifier is told about every submission that was persisted.
type Notifier interface {
	SubmissionSaved(ctx context.Context, s submission.Submission) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) SubmissionSaved(context.Context, submission.Submission) error { return nil }

// SubmissionEvent is the message body published for a saved submission.
type SubmissionEvent struct {
	EventType   string             `json:"event_type"`
	ID          string             `json:"id"`
	SubmittedAt string             `json:"submitted_at"`
	Data        submission.Answers `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes one JSON message per saved submission, keyed by id.
type KafkaNotifier struct {
	writer  messageWriter
	timeout time.Duration
}

// DefaultTimeout bounds one publish. Save waits for it, so keep it short.
const DefaultTimeout = time.Second

// NewKafkaNotifier builds a synchronous producer. A non-positive timeout
// uses DefaultTimeout.
func NewKafkaNotifier(brokers []string, topic string, timeout time.Duration) *KafkaNotifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &KafkaNotifier{writer: writer, timeout: timeout}
}

func (n *KafkaNotifier) SubmissionSaved(ctx context.Context, s submission.Submission) error {
	data, err := json.Marshal(SubmissionEvent{
		EventType:   EventSubmissionSaved,
		ID:          s.ID,
		SubmittedAt: s.SubmittedAt,
		Data:        s.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal submission event: %w", err)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(s.ID),
		Value: data,
		Time:  time.Now(),
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send submission event: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// New returns a KafkaNotifier when brokers are configured and Nop otherwise.
func New(brokers []string, topic string, timeout time.Duration) Notifier {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaNotifier(brokers, topic, timeout)
}

// NotifyingStore announces every successful Save. A failed notification is
// logged and does not fail the save.
type NotifyingStore struct {
	store.Store
	notifier Notifier
}

func WrapStore(s store.Store, n Notifier) *NotifyingStore {
	if n == nil {
		n = Nop{}
	}
	return &NotifyingStore{Store: s, notifier: n}
}

func (s *NotifyingStore) Save(ctx context.Context, answers submission.Answers) (submission.Submission, error) {
	saved, err := s.Store.Save(ctx, answers)
	if err != nil {
		return saved, err
	}
	if err := s.notifier.SubmissionSaved(ctx, saved); err != nil {
		logging.FromContext(ctx).Warn(ctx, "submission notification failed",
			zap.String("submission_id", saved.ID), zap.Error(err))
	}
	return saved, nil
}
