package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/abhisek/tutorly/internal/lesson"
	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/llm"
	"github.com/abhisek/tutorly/internal/search"
	"github.com/abhisek/tutorly/internal/store"
)

// DefaultLearnerID is used when no learner identity is supplied.
const DefaultLearnerID = "local"

// Planner plans lessons and writes step content.
type Planner interface {
	ContentWriter
	Plan(ctx context.Context, input lesson.PlanInput) (*lesson.Plan, error)
}

// SnapshotStore saves and loads session snapshots. LoadSnapshot returns
// an error wrapping store.ErrNotFound for unknown sessions.
type SnapshotStore interface {
	Persister
	LoadSnapshot(ctx context.Context, sessionID string) (json.RawMessage, error)
}

// Identity records each learner's knowledge level per topic.
type Identity interface {
	LevelFor(ctx context.Context, learnerID, topic string) (level.Level, error)
	SetLevel(ctx context.Context, learnerID, topic string, lvl level.Level) error
}

// Searcher retrieves web snippets for grounding.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// ManagerDeps are the collaborators shared by every session.
type ManagerDeps struct {
	Planner  Planner
	Quizzes  QuizEngine
	Store    SnapshotStore // optional
	Identity Identity      // optional
	Searcher Searcher      // optional
	Observer Observer      // optional
	Logger   hclog.Logger
}

// Manager creates, resumes and tracks sessions. Sessions share
// collaborators but no mutable state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	deps   ManagerDeps
	cfg    Config
	logger hclog.Logger
	newID  func() string
}

// NewManager creates a Manager.
func NewManager(deps ManagerDeps, cfg Config) (*Manager, error) {
	if deps.Planner == nil || deps.Quizzes == nil {
		return nil, errors.New("session manager requires a planner and a quiz engine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = hclog.NewNullLogger()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		deps:     deps,
		cfg:      cfg,
		logger:   deps.Logger.Named("manager"),
		newID:    uuid.NewString,
	}, nil
}

// StartInput holds what the learner supplies to begin a session.
type StartInput struct {
	LearnerID string
	Topic     string
	Goal      string

	// Level overrides the learner's recorded level for the topic.
	Level level.Level

	// SourceDigest is distilled text from a learner-supplied document.
	SourceDigest string

	// WebSearch enables retrieval of web snippets as secondary grounding.
	WebSearch bool
}

// Start plans a lesson and creates a session for it. If planning fails no
// session is created.
func (m *Manager) Start(ctx context.Context, input StartInput) (*Session, error) {
	learner := strings.TrimSpace(input.LearnerID)
	if learner == "" {
		learner = DefaultLearnerID
	}
	topic := strings.TrimSpace(input.Topic)
	goal := strings.TrimSpace(input.Goal)

	lvl, err := m.resolveLevel(ctx, learner, topic, input.Level)
	if err != nil {
		return nil, err
	}

	id := m.newID()
	ctx = llm.WithSession(ctx, id)

	var grounding []lesson.Grounding
	if input.WebSearch && topic != "" && goal != "" {
		grounding = m.ground(ctx, topic, goal)
	}

	plan, err := m.deps.Planner.Plan(ctx, lesson.PlanInput{
		Topic:        topic,
		Goal:         goal,
		Level:        lvl,
		SourceDigest: input.SourceDigest,
		Grounding:    grounding,
	})
	if err != nil {
		return nil, err
	}

	s := newSession(id, learner, plan, lvl, input.SourceDigest, m.sessionDeps(), m.cfg)

	s.mu.Lock()
	s.turnLocked("learner", "goal", fmt.Sprintf("I want to learn %s. Goal: %s", topic, goal))
	c := s.commitLocked("start", "")
	s.mu.Unlock()
	s.publish(ctx, c)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session started", "session", id, "learner", learner,
		"topic", topic, "level", lvl, "steps", len(plan.Steps))
	return s, nil
}

func (m *Manager) resolveLevel(ctx context.Context, learner, topic string, requested level.Level) (level.Level, error) {
	if requested != "" {
		if !requested.Valid() {
			return "", fmt.Errorf("start session: %w: %q", level.ErrUnknownLevel, requested)
		}
		if m.deps.Identity != nil && topic != "" {
			if err := m.deps.Identity.SetLevel(ctx, learner, topic, requested); err != nil {
				m.logger.Warn("failed to record learner level", "learner", learner, "topic", topic, "error", err)
			}
		}
		return requested, nil
	}

	if m.deps.Identity == nil || topic == "" {
		return level.Beginner, nil
	}
	lvl, err := m.deps.Identity.LevelFor(ctx, learner, topic)
	if err != nil {
		m.logger.Warn("failed to look up learner level", "learner", learner, "topic", topic, "error", err)
		return level.Beginner, nil
	}
	return lvl, nil
}

// ground fetches web snippets. Failures degrade to ungrounded planning.
func (m *Manager) ground(ctx context.Context, topic, goal string) []lesson.Grounding {
	if m.deps.Searcher == nil {
		return nil
	}
	results, err := m.deps.Searcher.Search(ctx, topic+" "+goal)
	if err != nil {
		m.logger.Warn("web search failed, planning without grounding", "topic", topic, "error", err)
		return nil
	}
	out := make([]lesson.Grounding, 0, len(results))
	for _, r := range results {
		out = append(out, lesson.Grounding{Snippet: r.Snippet, URL: r.URL})
	}
	return out
}

func (m *Manager) sessionDeps() Deps {
	d := Deps{
		Writer:   m.deps.Planner,
		Quizzes:  m.deps.Quizzes,
		Observer: m.deps.Observer,
		Logger:   m.deps.Logger,
	}
	if m.deps.Store != nil {
		d.Persister = m.deps.Store
	}
	return d
}

// Get returns an active session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// Resume returns an active session or restores it from its latest
// snapshot.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	if s, err := m.Get(id); err == nil {
		return s, nil
	}
	if m.deps.Store == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}

	data, err := m.deps.Store.LoadSnapshot(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	s, err := Restore(data, m.sessionDeps(), m.cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	m.sessions[id] = s
	m.logger.Debug("session resumed", "session", id, "phase", s.st.Phase)
	return s, nil
}

// SetLevel changes a session's level and records it as the learner's level
// for the topic.
func (m *Manager) SetLevel(ctx context.Context, id string, lvl level.Level) error {
	s, err := m.Resume(ctx, id)
	if err != nil {
		return err
	}
	if err := s.SetLevel(ctx, lvl); err != nil {
		return err
	}
	if m.deps.Identity != nil {
		if err := m.deps.Identity.SetLevel(ctx, s.LearnerID(), s.Topic(), lvl); err != nil {
			m.logger.Warn("failed to record learner level", "session", id, "error", err)
		}
	}
	return nil
}

// Close forgets an active session. Its snapshots stay in the store.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Active returns the IDs of active sessions in sorted order.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
