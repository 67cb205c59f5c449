// Package notify dispatches outbound messages: per-result participant
// notifications and aggregated bulk-operation outcomes for instructors.
// Dispatch is asynchronous and best-effort; it never blocks the
// reconciliation write path.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

const (
	KindNewResult   = "new_result"
	KindBulkOutcome = "bulk_outcome"
)

type Message struct {
	Kind            string    `json:"kind"`
	ParticipationID uuid.UUID `json:"participation_id,omitempty"`
	ExerciseID      uuid.UUID `json:"exercise_id,omitempty"`
	Recipient       string    `json:"recipient,omitempty"`
	Payload         any       `json:"payload,omitempty"`
}

type Notifier interface {
	Notify(msg Message)
}

// Dispatcher pushes messages onto the platform notification queue and to any
// live websocket subscribers. A full buffer drops the message with a log
// line; losing a best-effort notification is acceptable, blocking a webhook
// handler is not.
type Dispatcher struct {
	logger    *slog.Logger
	sqsClient *sqs.Client
	queueURL  string
	hub       *Hub
	queue     chan Message
}

func NewDispatcher(sqsClient *sqs.Client, queueURL string, hub *Hub) *Dispatcher {
	d := &Dispatcher{
		logger:    slog.Default().With("module", "notify"),
		sqsClient: sqsClient,
		queueURL:  queueURL,
		hub:       hub,
		queue:     make(chan Message, 1000),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Notify(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("notification queue full, dropping message",
			"kind", msg.Kind, "participation_id", msg.ParticipationID)
	}
}

func (d *Dispatcher) run() {
	for msg := range d.queue {
		body, err := json.Marshal(msg)
		if err != nil {
			d.logger.Error("failed to marshal notification", "error", err)
			continue
		}
		if d.hub != nil && msg.ParticipationID != uuid.Nil {
			d.hub.Broadcast(msg.ParticipationID, body)
		}
		if d.sqsClient == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err = d.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(d.queueURL),
			MessageBody: aws.String(string(body)),
		})
		cancel()
		if err != nil {
			d.logger.Warn("failed to enqueue notification", "error", err,
				"kind", msg.Kind)
		}
	}
}

// Recorder is a Notifier for tests; it just remembers what was sent.
type Recorder struct {
	Messages []Message
}

func (r *Recorder) Notify(msg Message) {
	r.Messages = append(r.Messages, msg)
}
