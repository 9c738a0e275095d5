// Package session runs guided learning sessions: it sequences lesson steps,
// gates advancement on mini-quiz mastery, and grades the final quiz.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/abhisek/tutorly/internal/lesson"
	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/llm"
	"github.com/abhisek/tutorly/internal/quiz"
)

// ContentWriter writes the explanatory content of a lesson step and
// answers the learner's questions about it.
type ContentWriter interface {
	WriteStep(ctx context.Context, input lesson.StepInput) (string, error)
	Answer(ctx context.Context, input lesson.QuestionInput) (string, error)
}

// QuizEngine generates and grades quizzes.
type QuizEngine interface {
	GenerateMini(ctx context.Context, input quiz.MiniInput) (*quiz.Quiz, error)
	GenerateFinal(ctx context.Context, input quiz.FinalInput) (*quiz.Quiz, error)
	Grade(ctx context.Context, q *quiz.Quiz, input quiz.GradeInput) ([]quiz.Attempt, error)
	Explain(ctx context.Context, input quiz.ExplainInput) (string, error)
}

// Persister receives a snapshot after every committed change. Snapshots
// carry an increasing sequence number per session.
type Persister interface {
	SaveSnapshot(ctx context.Context, sessionID string, seq int64, data json.RawMessage) error
}

// Deps are the collaborators a session calls.
type Deps struct {
	Writer    ContentWriter
	Quizzes   QuizEngine
	Persister Persister // optional
	Observer  Observer  // optional
	Logger    hclog.Logger
}

// Session is one guided learning interaction. All methods are safe for
// concurrent use; mutating operations are serialized and a second
// operation started while one is in flight fails with ErrSessionBusy.
type Session struct {
	mu   sync.Mutex
	st   Snapshot
	busy bool

	// grading is the in-flight grading phase, reported by Phase while a
	// submission is being graded.
	grading Phase

	deps   Deps
	cfg    Config
	logger hclog.Logger
	now    func() time.Time
}

// newSession creates a session around an existing plan.
func newSession(id, learnerID string, plan *lesson.Plan, lvl level.Level, digest string, deps Deps, cfg Config) *Session {
	s := build(deps, cfg)
	now := s.now()

	steps := make([]StepState, len(plan.Steps))
	for i, st := range plan.Steps {
		steps[i] = StepState{Step: st, Status: StatusNotStarted}
	}

	s.st = Snapshot{
		Version:      snapshotVersion,
		ID:           id,
		LearnerID:    learnerID,
		Topic:        plan.Topic,
		Goal:         plan.Goal,
		Level:        lvl,
		SourceDigest: digest,
		Phase:        PhaseCreated,
		Steps:        steps,
		Quizzes:      []*quiz.Quiz{},
		Attempts:     []quiz.Attempt{},
		Conversation: []Turn{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s
}

// Restore rebuilds a session from snapshot data.
func Restore(data json.RawMessage, deps Deps, cfg Config) (*Session, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported session snapshot version %d", snap.Version)
	}
	if len(snap.Steps) == 0 {
		return nil, fmt.Errorf("session snapshot %s has no steps", snap.ID)
	}
	if snap.Quizzes == nil {
		snap.Quizzes = []*quiz.Quiz{}
	}
	if snap.Attempts == nil {
		snap.Attempts = []quiz.Attempt{}
	}
	if snap.Conversation == nil {
		snap.Conversation = []Turn{}
	}

	s := build(deps, cfg)
	s.st = snap
	return s, nil
}

func build(deps Deps, cfg Config) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Session{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("session"),
		now:    time.Now,
	}
}

// traced tags ctx so generation events are attributed to this session.
func (s *Session) traced(ctx context.Context) context.Context {
	return llm.WithSession(ctx, s.ID())
}

// ID returns the session ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ID
}

// LearnerID returns the learner who owns the session.
func (s *Session) LearnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LearnerID
}

// Topic returns the session topic.
func (s *Session) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Topic
}

// Level returns the knowledge level used for the next generation call.
func (s *Session) Level() level.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Level
}

// Phase returns the current lifecycle phase. While a submission is being
// graded it reports the grading phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grading != "" {
		return s.grading
	}
	return s.st.Phase
}

// CurrentStep returns the index of the current step. It equals the number
// of steps once the session awaits the final quiz.
func (s *Session) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Current
}

// Steps returns a read-only view of every step.
func (s *Session) Steps() []StepView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepView, len(s.st.Steps))
	for i, st := range s.st.Steps {
		out[i] = st.view()
	}
	return out
}

// Attempts returns every quiz attempt in the order it was recorded.
func (s *Session) Attempts() []quiz.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]quiz.Attempt(nil), s.st.Attempts...)
}

// Conversation returns the session's conversation history.
func (s *Session) Conversation() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.st.Conversation...)
}

// Progress returns goal progress computed from the current mastery record.
func (s *Session) Progress() GoalProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress(s.st.Steps)
}

// Snapshot returns the session state encoded as JSON.
func (s *Session) Snapshot() (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.st)
}

// SetLevel changes the knowledge level used by later generation calls.
// Content already generated is left untouched.
func (s *Session) SetLevel(ctx context.Context, lvl level.Level) error {
	if !lvl.Valid() {
		return fmt.Errorf("set level: %w", level.ErrUnknownLevel)
	}

	s.mu.Lock()
	if err := s.checkLocked("set_level", nil); err != nil {
		s.mu.Unlock()
		return err
	}
	from := s.st.Phase
	s.st.Level = lvl
	s.turnLocked("learner", "level", fmt.Sprintf("Changed knowledge level to %s.", lvl))
	c := s.commitLocked("set_level", from)
	s.mu.Unlock()

	s.publish(ctx, c)
	return nil
}

// checkLocked verifies that op may run: the session is neither busy nor
// complete, and its phase is one of allowed (nil allows any live phase).
func (s *Session) checkLocked(op string, allowed []Phase) error {
	if s.busy {
		return ErrSessionBusy
	}
	if s.st.Phase == PhaseComplete {
		return &InvalidTransitionError{Op: op, Phase: PhaseComplete}
	}
	if allowed == nil {
		return nil
	}
	for _, p := range allowed {
		if s.st.Phase == p {
			return nil
		}
	}
	return &InvalidTransitionError{Op: op, Phase: s.st.Phase}
}

// release clears the busy flag after a failed or abandoned call.
func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.grading = ""
	s.mu.Unlock()
}

func (s *Session) turnLocked(role, kind, text string) {
	s.st.Conversation = append(s.st.Conversation, Turn{
		Role:      role,
		Kind:      kind,
		StepIndex: s.st.Current,
		Text:      text,
		At:        s.now(),
	})
}

// commit is a change ready to be persisted and published.
type commit struct {
	id        string
	seq       int64
	data      json.RawMessage
	encodeErr error
	event     Transition
}

// commitLocked stamps the state with the next sequence number and encodes
// it. The caller publishes the result after unlocking.
func (s *Session) commitLocked(op string, from Phase) commit {
	s.st.Seq++
	s.st.UpdatedAt = s.now()
	data, err := json.Marshal(s.st)

	return commit{
		id:        s.st.ID,
		seq:       s.st.Seq,
		data:      data,
		encodeErr: err,
		event: Transition{
			SessionID: s.st.ID,
			LearnerID: s.st.LearnerID,
			Topic:     s.st.Topic,
			Op:        op,
			From:      from,
			To:        s.st.Phase,
			StepIndex: s.st.Current,
			Seq:       s.st.Seq,
			Progress:  Progress(s.st.Steps),
			At:        s.st.UpdatedAt,
		},
	}
}

// publish hands a committed change to the persister and observer.
// Failures are logged; the change itself already happened.
func (s *Session) publish(ctx context.Context, c commit) {
	ctx = context.WithoutCancel(ctx)

	if c.encodeErr != nil {
		s.logger.Error("failed to encode snapshot", "session", c.id, "seq", c.seq, "error", c.encodeErr)
	} else if s.deps.Persister != nil {
		if err := s.deps.Persister.SaveSnapshot(ctx, c.id, c.seq, c.data); err != nil {
			s.logger.Warn("failed to save snapshot", "session", c.id, "seq", c.seq, "error", err)
		}
	}

	if s.deps.Observer != nil {
		s.deps.Observer.OnTransition(ctx, c.event)
	}
	s.logger.Debug("transition", "session", c.id, "op", c.event.Op,
		"from", c.event.From, "to", c.event.To, "step", c.event.StepIndex)
}
