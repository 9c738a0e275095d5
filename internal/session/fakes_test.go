package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/abhisek/tutorly/internal/lesson"
	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/quiz"
	"github.com/abhisek/tutorly/internal/store"
)

var errJudge = errors.New("judge unavailable")

// fakePlanner plans a fixed number of steps and writes content that names
// the level it was written for.
type fakePlanner struct {
	mu      sync.Mutex
	steps   int
	planErr error
	plans   []lesson.PlanInput
	writes  []lesson.StepInput
	asks    []lesson.QuestionInput
	askErr  error

	// started is signalled when WriteStep begins; release unblocks it.
	started chan struct{}
	release chan struct{}
}

func (f *fakePlanner) Plan(ctx context.Context, input lesson.PlanInput) (*lesson.Plan, error) {
	f.mu.Lock()
	f.plans = append(f.plans, input)
	f.mu.Unlock()
	if f.planErr != nil {
		return nil, f.planErr
	}
	n := f.steps
	if n == 0 {
		n = 3
	}
	plan := &lesson.Plan{Topic: input.Topic, Goal: input.Goal}
	for i := range n {
		plan.Steps = append(plan.Steps, lesson.Step{
			Index:     i,
			Title:     fmt.Sprintf("Step %d", i+1),
			Objective: fmt.Sprintf("Objective %d", i+1),
		})
	}
	return plan, nil
}

func (f *fakePlanner) WriteStep(ctx context.Context, input lesson.StepInput) (string, error) {
	f.mu.Lock()
	f.writes = append(f.writes, input)
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] %s explained", input.Level, input.Step.Title), nil
}

func (f *fakePlanner) Answer(ctx context.Context, input lesson.QuestionInput) (string, error) {
	f.mu.Lock()
	f.asks = append(f.asks, input)
	err := f.askErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] answer to %q", input.Level, input.Question), nil
}

func (f *fakePlanner) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// fakeQuizzes builds multiple-choice quizzes whose right answer is
// always "right".
type fakeQuizzes struct {
	mu sync.Mutex

	miniQuestions int
	ids           int
	miniCalls     int
	finalCalls    int
	explains      int
	explainErr    error

	// failAfter makes the next Grade call fail after grading that many
	// questions. Negative disables it.
	failAfter int
}

func newFakeQuizzes() *fakeQuizzes {
	return &fakeQuizzes{miniQuestions: 1, failAfter: -1}
}

func (f *fakeQuizzes) nextID(prefix string) string {
	f.ids++
	return fmt.Sprintf("%s-%d", prefix, f.ids)
}

func (f *fakeQuizzes) question(stepIndex int) quiz.Question {
	return quiz.Question{
		ID:        f.nextID("q"),
		StepIndex: stepIndex,
		Prompt:    fmt.Sprintf("Question about step %d", stepIndex+1),
		Kind:      quiz.KindMultipleChoice,
		Options:   []string{"right", "wrong"},
		Answer:    "right",
	}
}

func (f *fakeQuizzes) GenerateMini(ctx context.Context, input quiz.MiniInput) (*quiz.Quiz, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.miniCalls++
	q := &quiz.Quiz{ID: f.nextID("mini"), Scope: input.Step.Index}
	for range f.miniQuestions {
		q.Questions = append(q.Questions, f.question(input.Step.Index))
	}
	return q, nil
}

func (f *fakeQuizzes) GenerateFinal(ctx context.Context, input quiz.FinalInput) (*quiz.Quiz, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalCalls++
	q := &quiz.Quiz{ID: f.nextID("final"), Scope: quiz.FinalScope}
	for _, st := range input.Steps {
		q.Questions = append(q.Questions, f.question(st.Index))
	}
	return q, nil
}

func (f *fakeQuizzes) Grade(ctx context.Context, q *quiz.Quiz, input quiz.GradeInput) ([]quiz.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	failAfter := f.failAfter
	f.failAfter = -1

	var attempts []quiz.Attempt
	for _, question := range q.Questions {
		if input.Skip[question.ID] {
			continue
		}
		if failAfter >= 0 && len(attempts) == failAfter {
			return attempts, errJudge
		}
		submitted := input.Answers[question.ID]
		attempts = append(attempts, quiz.Attempt{
			ID:         f.nextID("a"),
			QuizID:     q.ID,
			QuestionID: question.ID,
			StepIndex:  question.StepIndex,
			Final:      q.Final(),
			Submitted:  submitted,
			Correct:    strings.EqualFold(strings.TrimSpace(submitted), question.Answer),
		})
	}
	return attempts, nil
}

func (f *fakeQuizzes) Explain(ctx context.Context, input quiz.ExplainInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.explains++
	if f.explainErr != nil {
		return "", f.explainErr
	}
	return fmt.Sprintf("%q is not it; the answer is %s.", input.Attempt.Submitted, input.Question.Answer), nil
}

func (f *fakeQuizzes) explainCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.explains
}

// memStore keeps the latest snapshot per session.
type memStore struct {
	mu    sync.Mutex
	data  map[string]json.RawMessage
	seqs  map[string][]int64
	err   error
	saves int
}

func newMemStore() *memStore {
	return &memStore{data: map[string]json.RawMessage{}, seqs: map[string][]int64{}}
}

func (m *memStore) SaveSnapshot(ctx context.Context, id string, seq int64, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.data[id] = append(json.RawMessage(nil), data...)
	m.seqs[id] = append(m.seqs[id], seq)
	return nil
}

func (m *memStore) LoadSnapshot(ctx context.Context, id string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, store.ErrNotFound)
	}
	return data, nil
}

// recorder collects transitions.
type recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recorder) OnTransition(ctx context.Context, t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recorder) all() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.transitions...)
}

// fakeIdentity is an in-memory level directory.
type fakeIdentity struct {
	mu     sync.Mutex
	levels map[string]level.Level
	err    error
}

func (f *fakeIdentity) key(learner, topic string) string { return learner + "/" + strings.ToLower(topic) }

func (f *fakeIdentity) LevelFor(ctx context.Context, learner, topic string) (level.Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if l, ok := f.levels[f.key(learner, topic)]; ok {
		return l, nil
	}
	return level.Beginner, nil
}

func (f *fakeIdentity) SetLevel(ctx context.Context, learner, topic string, lvl level.Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.levels == nil {
		f.levels = map[string]level.Level{}
	}
	f.levels[f.key(learner, topic)] = lvl
	return nil
}

// harness wires a manager to fakes.
type harness struct {
	planner  *fakePlanner
	quizzes  *fakeQuizzes
	store    *memStore
	rec      *recorder
	identity *fakeIdentity
	mgr      *Manager
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		planner:  &fakePlanner{},
		quizzes:  newFakeQuizzes(),
		store:    newMemStore(),
		rec:      &recorder{},
		identity: &fakeIdentity{},
	}
	mgr, err := NewManager(ManagerDeps{
		Planner:  h.planner,
		Quizzes:  h.quizzes,
		Store:    h.store,
		Identity: h.identity,
		Observer: h.rec,
	}, cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h.mgr = mgr
	return h
}

func (h *harness) start(t *testing.T) *Session {
	t.Helper()
	s, err := h.mgr.Start(context.Background(), StartInput{Topic: "Photosynthesis", Goal: "Explain how plants make sugar"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

// answerAll answers every question of q with the same text.
func answerAll(q *quiz.Quiz, answer string) map[string]string {
	out := make(map[string]string, len(q.Questions))
	for _, qq := range q.Questions {
		out[qq.ID] = answer
	}
	return out
}

// passStep delivers the current step and answers its mini-quiz correctly.
func passStep(t *testing.T, s *Session) *MiniResult {
	t.Helper()
	return attemptStep(t, s, "right")
}

func attemptStep(t *testing.T, s *Session, answer string) *MiniResult {
	t.Helper()
	ctx := context.Background()
	if _, err := s.StepContent(ctx); err != nil {
		t.Fatalf("StepContent: %v", err)
	}
	q, err := s.MiniQuiz(ctx, false)
	if err != nil {
		t.Fatalf("MiniQuiz: %v", err)
	}
	res, err := s.SubmitMiniQuiz(ctx, answerAll(q, answer))
	if err != nil {
		t.Fatalf("SubmitMiniQuiz: %v", err)
	}
	return res
}
