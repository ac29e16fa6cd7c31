package activity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/engage-agent/pkg/logger"
)

// Pipeline-emitted actions
const (
	ActionAutoApproved = "auto_approved"
	ActionAutoPosted   = "auto_posted"
	ActionOpportunity  = "competitor_opportunity"
	ActionVerified     = "account_verified"
)

// Event is one structured activity record
type Event struct {
	ID          string
	WorkspaceID string
	Actor       string
	Action      string
	SubjectID   string
	Metadata    map[string]interface{}
	At          time.Time
}

// NewEvent builds an event stamped with a fresh ID and timestamp
func NewEvent(workspaceID, actor, action, subjectID string, metadata map[string]interface{}) Event {
	return Event{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Actor:       actor,
		Action:      action,
		SubjectID:   subjectID,
		Metadata:    metadata,
		At:          time.Now(),
	}
}

// Sink receives activity events fire-and-forget. Implementations must
// never fail the pipeline stage that emitted the event.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// LogSink writes events to the structured log
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a log-backed sink
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.WithComponent("activity")}
}

// Record logs the event
func (s *LogSink) Record(_ context.Context, event Event) {
	s.log.Info().
		Str("event_id", event.ID).
		Str("workspace_id", event.WorkspaceID).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("subject_id", event.SubjectID).
		Interface("metadata", event.Metadata).
		Msg("Activity event")
}

// MultiSink fans one event out to several sinks
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Record forwards the event to every sink
func (s *MultiSink) Record(ctx context.Context, event Event) {
	for _, sink := range s.sinks {
		sink.Record(ctx, event)
	}
}
