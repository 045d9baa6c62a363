package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// AssignmentGeneratedSubject is the NATS subject for agent-created assignments.
const AssignmentGeneratedSubject = "algogenius.assignments.generated"

// AssignmentGeneratedEvent describes an assignment created by the pipeline.
type AssignmentGeneratedEvent struct {
	AssignmentID       string    `json:"assignment_id"`
	SourceAssignmentID string    `json:"source_assignment_id"`
	StudentID          string    `json:"student_id"`
	ScenarioID         string    `json:"scenario_id"`
	Concept            string    `json:"concept"`
	Difficulty         string    `json:"difficulty"`
	CreatedAt          time.Time `json:"created_at"`
}

// EventPublisher emits domain events for other services.
type EventPublisher interface {
	AssignmentGenerated(ctx context.Context, event AssignmentGeneratedEvent) error
}

type natsEventPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSEventPublisher publishes events on NATS. A nil connection disables publishing.
func NewNATSEventPublisher(conn *nats.Conn, logger zerolog.Logger) EventPublisher {
	return &natsEventPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsEventPublisher) AssignmentGenerated(_ context.Context, event AssignmentGeneratedEvent) error {
	if p.conn == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(AssignmentGeneratedSubject, payload); err != nil {
		return err
	}
	p.logger.Debug().Str("assignment_id", event.AssignmentID).Msg("assignment generated event published")
	return nil
}
