package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Outbox is the part of the event store the relay reads and acknowledges.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]appointment.EventLog, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
}

// Envelope is the JSON body sent to the broker.
type Envelope struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type"`
	AppointmentID *uuid.UUID      `json:"appointment_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

type Relay struct {
	outbox    Outbox
	publisher Publisher
	batchSize int
	clock     scheduling.Clock
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
}

func NewRelay(outbox Outbox, publisher Publisher, batchSize int, m *metrics.Metrics, log logrus.FieldLogger) *Relay {
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		clock:     scheduling.RealClock{},
		metrics:   m,
		log:       log,
	}
}

// RoutingKey maps APPOINTMENT_CREATED to appointment.created and
// CLINICAL_NOTES_ADDED to appointment.clinical_notes_added.
func RoutingKey(eventType string) string {
	return "appointment." + strings.ToLower(strings.TrimPrefix(eventType, "APPOINTMENT_"))
}

// RunOnce relays one batch in id order. It stops at the first failure so that
// events for an appointment are never delivered out of order.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	batch, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished events: %w", err)
	}

	published := 0
	for _, ev := range batch {
		body, err := json.Marshal(Envelope{
			ID:            ev.ID,
			EventType:     ev.EventType,
			AppointmentID: ev.AppointmentID,
			OccurredAt:    ev.CreatedAt,
			Payload:       json.RawMessage(ev.Payload),
		})
		if err != nil {
			return published, fmt.Errorf("encode event %d: %w", ev.ID, err)
		}

		err = r.publisher.Publish(ctx, Message{
			ID:         strconv.FormatInt(ev.ID, 10),
			Type:       ev.EventType,
			RoutingKey: RoutingKey(ev.EventType),
			Body:       body,
			Timestamp:  ev.CreatedAt,
		})
		r.metrics.RecordPublished(ev.EventType, err)
		if err != nil {
			return published, fmt.Errorf("publish event %d: %w", ev.ID, err)
		}

		if err := r.outbox.MarkPublished(ctx, ev.ID, r.clock.Now()); err != nil {
			// the event will be sent again next round; consumers dedupe on message id
			return published, err
		}
		published++
	}

	return published, nil
}

// Run relays batches every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.WithField("interval", interval.String()).Info("outbox relay started")

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopping")
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				r.log.WithError(err).WithField("published", n).Error("outbox relay round failed")
				continue
			}
			if n > 0 {
				r.log.WithField("published", n).Debug("outbox relay round complete")
			}
		}
	}
}
