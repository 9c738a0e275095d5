package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/tutorly/internal/lesson"
	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/quiz"
)

func TestSession_AllCorrectVisitsEachStepOnce(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	assert.Equal(t, PhaseCreated, s.Phase())

	for i := range 3 {
		res := passStep(t, s)
		assert.True(t, res.Passed)
		assert.Equal(t, StatusMastered, res.Status)
		assert.Equal(t, i, res.StepIndex)
	}

	assert.Equal(t, PhaseAwaitingFinalQuiz, s.Phase())
	assert.Equal(t, 3, s.CurrentStep())

	inStep := map[int]bool{}
	for _, tr := range h.rec.all() {
		if tr.To == PhaseInStep {
			inStep[tr.StepIndex] = true
		}
		assert.NotEqual(t, PhaseRemediatingStep, tr.To)
	}
	assert.Len(t, inStep, 3)

	p := s.Progress()
	assert.Equal(t, 3, p.Mastered)
	assert.Equal(t, 0, p.Remediated)
	assert.InDelta(t, 1.0, p.Fraction, 1e-9)
}

func TestSession_FailThenPass(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)

	res := attemptStep(t, s, "wrong")
	assert.False(t, res.Passed)
	assert.Equal(t, PhaseRemediatingStep, s.Phase())
	assert.Equal(t, 1, res.Remediations)
	assert.Equal(t, StatusInProgress, res.Status)
	assert.Equal(t, 0, s.CurrentStep())

	res = attemptStep(t, s, "right")
	assert.True(t, res.Passed)
	assert.Equal(t, StatusMastered, res.Status)
	assert.Equal(t, 1, s.CurrentStep())
	assert.Equal(t, PhaseInStep, s.Phase())

	p := s.Progress()
	assert.Equal(t, 1, p.Mastered)
	assert.InDelta(t, 1.0/3.0, p.Fraction, 1e-9)

	// The retry reused the pending quiz.
	assert.Equal(t, 1, h.quizzes.miniCalls)
}

func TestSession_RemediationLimit(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)

	attemptStep(t, s, "wrong")
	res := attemptStep(t, s, "wrong")

	assert.False(t, res.Passed)
	assert.Equal(t, StatusRemediated, res.Status)
	assert.Equal(t, 2, res.Remediations)
	assert.Equal(t, PhaseInStep, s.Phase())
	assert.Equal(t, 1, s.CurrentStep())

	steps := s.Steps()
	assert.Equal(t, StatusRemediated, steps[0].Status)
	assert.LessOrEqual(t, steps[0].Remediations, DefaultConfig().RemediationLimit)

	p := s.Progress()
	assert.Equal(t, 0, p.Mastered)
	assert.Equal(t, 1, p.Remediated)
	assert.InDelta(t, 1.0/3.0, p.Fraction, 1e-9)
}

func TestSession_RemediationLimitOneAdvancesImmediately(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RemediationLimit = 1
	h := newHarness(t, cfg)
	s := h.start(t)

	res := attemptStep(t, s, "wrong")
	assert.Equal(t, StatusRemediated, res.Status)
	assert.Equal(t, 1, s.CurrentStep())
}

func TestSession_FinalQuiz(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	for range 3 {
		passStep(t, s)
	}
	explainsBefore := h.quizzes.explainCount()

	ctx := context.Background()
	q, err := s.FinalQuiz(ctx)
	require.NoError(t, err)
	require.Len(t, q.Questions, 3)
	assert.True(t, q.Final())

	again, err := s.FinalQuiz(ctx)
	require.NoError(t, err)
	assert.Equal(t, q.ID, again.ID)
	assert.Equal(t, 1, h.quizzes.finalCalls)

	answers := answerAll(q, "right")
	answers[q.Questions[1].ID] = "wrong"

	res, err := s.SubmitFinalQuiz(ctx, answers)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Correct)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, PhaseComplete, s.Phase())

	for i, a := range res.Attempts {
		assert.True(t, a.Final)
		if i == 1 {
			assert.False(t, a.Correct)
			assert.True(t, a.FeedbackGenerated)
			assert.NotEmpty(t, a.Feedback)
		} else {
			assert.True(t, a.Correct)
			assert.Empty(t, a.Feedback)
		}
	}
	assert.Equal(t, explainsBefore+1, h.quizzes.explainCount())

	sum := s.Summary()
	require.NotNil(t, sum.Final)
	assert.Equal(t, Score{Correct: 2, Total: 3}, *sum.Final)
}

func TestSession_ContentIsIdempotent(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	ctx := context.Background()

	first, err := s.StepContent(ctx)
	require.NoError(t, err)
	snap, err := s.Snapshot()
	require.NoError(t, err)

	second, err := s.StepContent(ctx)
	require.NoError(t, err)
	after, err := s.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.planner.writeCount())
	assert.JSONEq(t, string(snap), string(after))
	assert.Equal(t, StatusInProgress, first.Status)
}

func TestSession_LevelChangeOnlyAffectsLaterContent(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	ctx := context.Background()

	step0, err := s.StepContent(ctx)
	require.NoError(t, err)
	assert.Contains(t, step0.Content, "[beginner]")

	require.NoError(t, s.SetLevel(ctx, level.Expert))
	assert.Equal(t, level.Expert, s.Level())

	again, err := s.StepContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, step0.Content, again.Content)

	q, err := s.MiniQuiz(ctx, false)
	require.NoError(t, err)
	_, err = s.SubmitMiniQuiz(ctx, answerAll(q, "right"))
	require.NoError(t, err)

	step1, err := s.StepContent(ctx)
	require.NoError(t, err)
	assert.Contains(t, step1.Content, "[expert]")

	revisited, err := s.RevisitStep(0)
	require.NoError(t, err)
	assert.Equal(t, step0.Content, revisited.Content)
}

func TestSession_SetLevelRejectsUnknown(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)

	err := s.SetLevel(context.Background(), level.Level("wizard"))
	assert.ErrorIs(t, err, level.ErrUnknownLevel)
	assert.Equal(t, level.Beginner, s.Level())
}

func TestSession_ProgressNeverDecreases(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)

	attemptStep(t, s, "wrong")
	attemptStep(t, s, "right")
	attemptStep(t, s, "wrong")
	attemptStep(t, s, "wrong")
	passStep(t, s)

	ctx := context.Background()
	q, err := s.FinalQuiz(ctx)
	require.NoError(t, err)
	_, err = s.SubmitFinalQuiz(ctx, answerAll(q, "wrong"))
	require.NoError(t, err)

	last := -1.0
	for _, tr := range h.rec.all() {
		assert.GreaterOrEqual(t, tr.Progress.Fraction, last, "progress dropped at %s", tr.Op)
		last = tr.Progress.Fraction
	}
	assert.InDelta(t, 1.0, last, 1e-9)
}

func TestSession_MasteredStepsHaveCorrectAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PassThreshold = 0.5
	h := newHarness(t, cfg)
	h.quizzes.miniQuestions = 2
	s := h.start(t)
	ctx := context.Background()

	for range 3 {
		_, err := s.StepContent(ctx)
		require.NoError(t, err)
		q, err := s.MiniQuiz(ctx, false)
		require.NoError(t, err)
		answers := answerAll(q, "wrong")
		answers[q.Questions[0].ID] = "right"
		res, err := s.SubmitMiniQuiz(ctx, answers)
		require.NoError(t, err)
		assert.True(t, res.Passed)
		assert.Equal(t, 1, res.Correct)
	}

	attempts := s.Attempts()
	for _, st := range s.Steps() {
		if st.Status != StatusMastered {
			continue
		}
		found := false
		for _, a := range attempts {
			if a.StepIndex == st.Index && a.Correct {
				found = true
			}
		}
		assert.True(t, found, "step %d mastered without a correct attempt", st.Index)
	}
}

func TestSession_BusyRejectsConcurrentCalls(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)

	h.planner.started = make(chan struct{}, 1)
	h.planner.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := s.StepContent(context.Background())
		done <- err
	}()

	select {
	case <-h.planner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("content generation never started")
	}

	_, err := s.StepContent(context.Background())
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.ErrorIs(t, s.SetLevel(context.Background(), level.Expert), ErrSessionBusy)

	// Reads still work while busy.
	assert.Equal(t, PhaseCreated, s.Phase())
	assert.Equal(t, 0, s.Progress().Mastered)

	close(h.planner.release)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseInStep, s.Phase())
}

func TestSession_CancelledGenerationLeavesState(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	savesBefore := h.store.saves

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.StepContent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseCreated, s.Phase())
	assert.False(t, s.Steps()[0].Status.Done())
	assert.Empty(t, s.Steps()[0].Content)
	assert.Equal(t, savesBefore, h.store.saves)

	// The call can simply be retried.
	view, err := s.StepContent(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, view.Content)

	_, err = s.MiniQuiz(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseInStep, s.Phase())
}

func TestSession_PartialGradingFailureKeepsAttempts(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.quizzes.miniQuestions = 3
	s := h.start(t)
	ctx := context.Background()

	_, err := s.StepContent(ctx)
	require.NoError(t, err)
	q, err := s.MiniQuiz(ctx, false)
	require.NoError(t, err)

	h.quizzes.failAfter = 1
	_, err = s.SubmitMiniQuiz(ctx, answerAll(q, "right"))
	require.ErrorIs(t, err, errJudge)

	assert.Equal(t, PhaseAwaitingMiniQuiz, s.Phase())
	require.Len(t, s.Attempts(), 1)
	assert.Equal(t, q.Questions[0].ID, s.Attempts()[0].QuestionID)

	res, err := s.SubmitMiniQuiz(ctx, answerAll(q, "right"))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 3, res.Correct)
	assert.Len(t, res.Attempts, 3)
	assert.Len(t, s.Attempts(), 3, "retry must not re-grade kept attempts")
}

func TestSession_InvalidTransitions(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	ctx := context.Background()

	var ite *InvalidTransitionError

	_, err := s.MiniQuiz(ctx, false)
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, PhaseCreated, ite.Phase)

	_, err = s.SubmitMiniQuiz(ctx, nil)
	require.ErrorAs(t, err, &ite)

	_, err = s.FinalQuiz(ctx)
	require.ErrorAs(t, err, &ite)

	_, err = s.RevisitStep(1)
	assert.ErrorIs(t, err, ErrStepOutOfRange)

	_, err = s.Feedback(ctx, "nope")
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	assert.Equal(t, PhaseCreated, s.Phase())
}

func TestSession_CompleteIsTerminal(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	for range 3 {
		passStep(t, s)
	}
	ctx := context.Background()
	q, err := s.FinalQuiz(ctx)
	require.NoError(t, err)
	res, err := s.SubmitFinalQuiz(ctx, answerAll(q, "wrong"))
	require.NoError(t, err)
	require.Equal(t, PhaseComplete, s.Phase())

	_, err = s.StepContent(ctx)
	assert.ErrorIs(t, err, ErrSessionComplete)
	_, err = s.MiniQuiz(ctx, true)
	assert.ErrorIs(t, err, ErrSessionComplete)
	_, err = s.FinalQuiz(ctx)
	assert.ErrorIs(t, err, ErrSessionComplete)
	_, err = s.SubmitFinalQuiz(ctx, nil)
	assert.ErrorIs(t, err, ErrSessionComplete)
	assert.ErrorIs(t, s.SetLevel(ctx, level.Expert), ErrSessionComplete)
	assert.Equal(t, PhaseComplete, s.Phase())

	// History stays readable.
	view, err := s.RevisitStep(2)
	require.NoError(t, err)
	assert.Equal(t, StatusMastered, view.Status)

	fb, err := s.Feedback(ctx, res.Attempts[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, fb)
}

func TestSession_LazyFeedback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InstantFeedback = false
	h := newHarness(t, cfg)
	h.quizzes.miniQuestions = 2
	s := h.start(t)
	ctx := context.Background()

	_, err := s.StepContent(ctx)
	require.NoError(t, err)
	q, err := s.MiniQuiz(ctx, false)
	require.NoError(t, err)
	answers := answerAll(q, "right")
	answers[q.Questions[1].ID] = "wrong"
	res, err := s.SubmitMiniQuiz(ctx, answers)
	require.NoError(t, err)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, 0, h.quizzes.explainCount())

	fb, err := s.Feedback(ctx, res.Attempts[0].ID)
	require.NoError(t, err)
	assert.Empty(t, fb, "correct attempts have no feedback")

	miss := res.Attempts[1].ID
	fb, err = s.Feedback(ctx, miss)
	require.NoError(t, err)
	assert.Contains(t, fb, "wrong")

	again, err := s.Feedback(ctx, miss)
	require.NoError(t, err)
	assert.Equal(t, fb, again)
	assert.Equal(t, 1, h.quizzes.explainCount())

	for _, a := range s.Attempts() {
		if a.ID == miss {
			assert.True(t, a.FeedbackGenerated)
		}
	}
}

func TestSession_InstantFeedbackFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.quizzes.explainErr = errors.New("feedback down")
	s := h.start(t)

	res := attemptStep(t, s, "wrong")
	require.Len(t, res.Attempts, 1)
	assert.False(t, res.Attempts[0].FeedbackGenerated)
	assert.Equal(t, PhaseRemediatingStep, s.Phase())

	h.quizzes.mu.Lock()
	h.quizzes.explainErr = nil
	h.quizzes.mu.Unlock()

	fb, err := s.Feedback(context.Background(), res.Attempts[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, fb)
}

func TestSession_RegenerateMiniQuiz(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	ctx := context.Background()

	_, err := s.StepContent(ctx)
	require.NoError(t, err)
	first, err := s.MiniQuiz(ctx, false)
	require.NoError(t, err)
	same, err := s.MiniQuiz(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, same.ID)

	fresh, err := s.MiniQuiz(ctx, true)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fresh.ID)
	assert.Equal(t, 2, h.quizzes.miniCalls)

	res, err := s.SubmitMiniQuiz(ctx, answerAll(fresh, "right"))
	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestSession_SnapshotRoundTrip(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	passStep(t, s)
	attemptStep(t, s, "wrong")

	data, err := s.Snapshot()
	require.NoError(t, err)

	restored, err := Restore(data, Deps{Writer: h.planner, Quizzes: h.quizzes}, DefaultConfig())
	require.NoError(t, err)

	assertSameJSON(t, s.Summary(), restored.Summary())
	assertSameJSON(t, s.Attempts(), restored.Attempts())
	assertSameJSON(t, s.Conversation(), restored.Conversation())

	again, err := restored.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))

	// The restored session carries on where the original stopped.
	res := attemptStep(t, restored, "right")
	assert.True(t, res.Passed)
	assert.Equal(t, 2, restored.CurrentStep())
}

func TestRestore_Invalid(t *testing.T) {
	_, err := Restore([]byte("{"), Deps{}, DefaultConfig())
	assert.Error(t, err)

	_, err = Restore([]byte(`{"version":99,"steps":[{}]}`), Deps{}, DefaultConfig())
	assert.Error(t, err)

	_, err = Restore([]byte(`{"version":1,"steps":[]}`), Deps{}, DefaultConfig())
	assert.Error(t, err)
}

func TestSession_SnapshotsHaveIncreasingSequence(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	passStep(t, s)

	seqs := h.store.seqs[s.ID()]
	require.NotEmpty(t, seqs)
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1])
	}
}

func TestSession_PersisterFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	h.store.err = errors.New("disk full")

	res := passStep(t, s)
	assert.True(t, res.Passed)
	assert.Equal(t, 1, s.CurrentStep())
}

func TestSession_ConversationRecordsTurns(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	s := h.start(t)
	passStep(t, s)

	var kinds []string
	for _, turn := range s.Conversation() {
		kinds = append(kinds, turn.Kind)
	}
	assert.Equal(t, []string{"goal", "content", "mini_quiz", "answers", "result"}, kinds)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name     string
		statuses []StepStatus
		want     GoalProgress
	}{
		{"empty", nil, GoalProgress{}},
		{"none done", []StepStatus{StatusNotStarted, StatusInProgress}, GoalProgress{Total: 2}},
		{"mixed", []StepStatus{StatusMastered, StatusRemediated, StatusInProgress, StatusNotStarted},
			GoalProgress{Mastered: 1, Remediated: 1, Total: 4, Fraction: 0.5}},
		{"all", []StepStatus{StatusMastered, StatusMastered}, GoalProgress{Mastered: 2, Total: 2, Fraction: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := make([]StepState, len(tt.statuses))
			for i, st := range tt.statuses {
				steps[i].Status = st
			}
			got := Progress(steps)
			if got != tt.want {
				t.Fatalf("Progress() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{PassThreshold: 0, RemediationLimit: 2}.Validate())
	assert.Error(t, Config{PassThreshold: 1.5, RemediationLimit: 2}.Validate())
	assert.Error(t, Config{PassThreshold: 1, RemediationLimit: 0}.Validate())
	assert.Error(t, Config{PassThreshold: 1, RemediationLimit: 2, QuestionHistory: -1}.Validate())
}

func assertSameJSON(t *testing.T, want, got any) {
	t.Helper()
	w, err := json.Marshal(want)
	require.NoError(t, err)
	g, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(w), string(g))
}

var (
	_ QuizEngine = (*quiz.Engine)(nil)
	_ Planner    = (*lesson.Planner)(nil)
)
