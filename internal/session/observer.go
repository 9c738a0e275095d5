package session

import (
	"context"
	"time"
)

// Transition describes one committed change to a session.
type Transition struct {
	SessionID string       `json:"session_id"`
	LearnerID string       `json:"learner_id"`
	Topic     string       `json:"topic"`
	Op        string       `json:"op"`
	From      Phase        `json:"from"`
	To        Phase        `json:"to"`
	StepIndex int          `json:"step_index"`
	Seq       int64        `json:"seq"`
	Progress  GoalProgress `json:"progress"`
	At        time.Time    `json:"at"`
}

// Observer is notified after every committed change. Observers must not
// call back into the session.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) { f(ctx, t) }

// MultiObserver fans a transition out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnTransition(ctx context.Context, t Transition) {
	for _, o := range m {
		if o != nil {
			o.OnTransition(ctx, t)
		}
	}
}
