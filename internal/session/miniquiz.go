package session

import (
	"context"
	"fmt"

	"github.com/abhisek/tutorly/internal/quiz"
)

var miniQuizPhases = []Phase{PhaseInStep, PhaseAwaitingMiniQuiz, PhaseRemediatingStep}

// MiniResult is the outcome of one mini-quiz submission.
type MiniResult struct {
	StepIndex    int            `json:"step_index"`
	Attempts     []quiz.Attempt `json:"attempts"`
	Correct      int            `json:"correct"`
	Total        int            `json:"total"`
	Passed       bool           `json:"passed"`
	Status       StepStatus     `json:"status"`
	Remediations int            `json:"remediations"`
	Phase        Phase          `json:"phase"`
	Progress     GoalProgress   `json:"progress"`
}

// MiniQuiz returns the mini-quiz for the current step, generating it when
// none is pending or regenerate is set. The step content must have been
// delivered first.
func (s *Session) MiniQuiz(ctx context.Context, regenerate bool) (*quiz.Quiz, error) {
	s.mu.Lock()
	if err := s.checkLocked("mini_quiz", miniQuizPhases); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	i := s.st.Current
	step := s.st.Steps[i]
	if !step.ContentGenerated {
		s.mu.Unlock()
		return nil, &InvalidTransitionError{Op: "mini_quiz", Phase: s.st.Phase, Reason: "step content not delivered yet"}
	}

	if pending := s.st.quiz(s.st.MiniQuizID); pending != nil && !regenerate {
		out := cloneQuiz(pending)
		if s.st.Phase == PhaseAwaitingMiniQuiz {
			s.mu.Unlock()
			return out, nil
		}
		from := s.st.Phase
		s.st.Phase = PhaseAwaitingMiniQuiz
		s.turnLocked("tutor", "mini_quiz", describeQuiz(pending))
		c := s.commitLocked("mini_quiz", from)
		s.mu.Unlock()

		s.publish(ctx, c)
		return out, nil
	}

	input := quiz.MiniInput{
		Topic:   s.st.Topic,
		Step:    step.Step,
		Content: step.Content,
		Level:   s.st.Level,
	}
	s.busy = true
	s.mu.Unlock()

	q, err := s.deps.Quizzes.GenerateMini(s.traced(ctx), input)
	if err != nil {
		s.release()
		return nil, err
	}

	s.mu.Lock()
	s.busy = false
	from := s.st.Phase
	s.st.Quizzes = append(s.st.Quizzes, q)
	s.st.MiniQuizID = q.ID
	s.st.Partial = nil
	s.st.Phase = PhaseAwaitingMiniQuiz
	s.turnLocked("tutor", "mini_quiz", describeQuiz(q))
	out := cloneQuiz(q)
	c := s.commitLocked("mini_quiz", from)
	s.mu.Unlock()

	s.publish(ctx, c)
	return out, nil
}

// SubmitMiniQuiz grades answers to the pending mini-quiz, keyed by
// question ID. A pass masters the step and advances. A fail sends the
// learner back to the step until the remediation limit is reached, after
// which the step is marked Remediated and the session advances anyway.
func (s *Session) SubmitMiniQuiz(ctx context.Context, answers map[string]string) (*MiniResult, error) {
	s.mu.Lock()
	if err := s.checkLocked("submit_mini_quiz", []Phase{PhaseAwaitingMiniQuiz}); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	pending := s.st.quiz(s.st.MiniQuizID)
	if pending == nil {
		s.mu.Unlock()
		return nil, &InvalidTransitionError{Op: "submit_mini_quiz", Phase: s.st.Phase, Reason: "no pending mini-quiz"}
	}

	call := s.newGradingCallLocked(pending, answers)
	s.busy = true
	s.grading = PhaseGradingMiniQuiz
	s.mu.Unlock()

	graded, err := s.grade(ctx, call)

	s.mu.Lock()
	s.busy = false
	s.grading = ""
	if err != nil {
		c, ok := s.keepPartialLocked("submit_mini_quiz", graded)
		s.mu.Unlock()
		if ok {
			s.publish(ctx, c)
		}
		return nil, fmt.Errorf("grading mini-quiz: %w", err)
	}

	from := s.st.Phase
	i := s.st.Current
	s.st.Attempts = append(s.st.Attempts, graded...)
	submission := s.submissionLocked(call.quiz, graded)
	correct := countCorrect(submission)
	total := len(call.quiz.Questions)
	passed := total > 0 && float64(correct)/float64(total) >= s.cfg.PassThreshold

	s.turnLocked("learner", "answers", describeAnswers(call.quiz, answers))

	step := &s.st.Steps[i]
	switch {
	case passed:
		step.Status = StatusMastered
		s.turnLocked("tutor", "result", fmt.Sprintf("%d/%d correct. Step mastered.", correct, total))
		s.advanceLocked()
	default:
		step.Remediations++
		if step.Remediations >= s.cfg.RemediationLimit {
			step.Status = StatusRemediated
			s.turnLocked("tutor", "result", fmt.Sprintf("%d/%d correct. Moving on after %d attempts.", correct, total, step.Remediations))
			s.advanceLocked()
		} else {
			s.st.Partial = nil
			s.st.Phase = PhaseRemediatingStep
			s.turnLocked("tutor", "result", fmt.Sprintf("%d/%d correct. Review the step and try again.", correct, total))
		}
	}

	res := &MiniResult{
		StepIndex:    i,
		Attempts:     submission,
		Correct:      correct,
		Total:        total,
		Passed:       passed,
		Status:       step.Status,
		Remediations: step.Remediations,
		Phase:        s.st.Phase,
		Progress:     Progress(s.st.Steps),
	}
	c := s.commitLocked("submit_mini_quiz", from)
	s.mu.Unlock()

	s.publish(ctx, c)
	return res, nil
}

// advanceLocked moves past the current step.
func (s *Session) advanceLocked() {
	s.st.MiniQuizID = ""
	s.st.Partial = nil
	s.st.Current++
	if s.st.Current >= len(s.st.Steps) {
		s.st.Current = len(s.st.Steps)
		s.st.Phase = PhaseAwaitingFinalQuiz
		return
	}
	s.st.Phase = PhaseInStep
}
