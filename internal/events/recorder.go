package events

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/abhisek/tutorly/internal/session"
	"github.com/abhisek/tutorly/internal/store"
)

// TransitionAppender persists transition events.
type TransitionAppender interface {
	AppendTransition(ctx context.Context, data store.TransitionEventData) error
}

// Recorder writes every transition to the event store.
type Recorder struct {
	events TransitionAppender
	logger hclog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(events TransitionAppender, logger hclog.Logger) *Recorder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Recorder{events: events, logger: logger.Named("events")}
}

// OnTransition implements session.Observer.
func (r *Recorder) OnTransition(ctx context.Context, t session.Transition) {
	err := r.events.AppendTransition(ctx, store.TransitionEventData{
		SessionID: t.SessionID,
		LearnerID: t.LearnerID,
		Topic:     t.Topic,
		Op:        t.Op,
		From:      string(t.From),
		To:        string(t.To),
		StepIndex: t.StepIndex,
		Progress:  t.Progress.Fraction,
	})
	if err != nil {
		r.logger.Warn("failed to record transition", "session", t.SessionID, "op", t.Op, "error", err)
	}
}
