package session

import (
	"context"
	"fmt"

	"github.com/abhisek/tutorly/internal/quiz"
)

// FinalResult is the outcome of the comprehensive quiz.
type FinalResult struct {
	Attempts []quiz.Attempt `json:"attempts"`
	Correct  int            `json:"correct"`
	Total    int            `json:"total"`
	Progress GoalProgress   `json:"progress"`
}

// FinalQuiz returns the comprehensive quiz, generating it on first call.
func (s *Session) FinalQuiz(ctx context.Context) (*quiz.Quiz, error) {
	s.mu.Lock()
	if err := s.checkLocked("final_quiz", []Phase{PhaseAwaitingFinalQuiz}); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if q := s.st.quiz(s.st.FinalQuizID); q != nil {
		out := cloneQuiz(q)
		s.mu.Unlock()
		return out, nil
	}

	input := quiz.FinalInput{
		Topic: s.st.Topic,
		Goal:  s.st.Goal,
		Steps: s.planStepsLocked(),
		Level: s.st.Level,
	}
	s.busy = true
	s.mu.Unlock()

	q, err := s.deps.Quizzes.GenerateFinal(s.traced(ctx), input)
	if err != nil {
		s.release()
		return nil, err
	}

	s.mu.Lock()
	s.busy = false
	from := s.st.Phase
	s.st.Quizzes = append(s.st.Quizzes, q)
	s.st.FinalQuizID = q.ID
	s.st.Partial = nil
	s.turnLocked("tutor", "final_quiz", describeQuiz(q))
	out := cloneQuiz(q)
	c := s.commitLocked("final_quiz", from)
	s.mu.Unlock()

	s.publish(ctx, c)
	return out, nil
}

// SubmitFinalQuiz grades every question of the comprehensive quiz and
// completes the session.
func (s *Session) SubmitFinalQuiz(ctx context.Context, answers map[string]string) (*FinalResult, error) {
	s.mu.Lock()
	if err := s.checkLocked("submit_final_quiz", []Phase{PhaseAwaitingFinalQuiz}); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	pending := s.st.quiz(s.st.FinalQuizID)
	if pending == nil {
		s.mu.Unlock()
		return nil, &InvalidTransitionError{Op: "submit_final_quiz", Phase: s.st.Phase, Reason: "final quiz not generated yet"}
	}

	call := s.newGradingCallLocked(pending, answers)
	s.busy = true
	s.grading = PhaseGradingFinalQuiz
	s.mu.Unlock()

	graded, err := s.grade(ctx, call)

	s.mu.Lock()
	s.busy = false
	s.grading = ""
	if err != nil {
		c, ok := s.keepPartialLocked("submit_final_quiz", graded)
		s.mu.Unlock()
		if ok {
			s.publish(ctx, c)
		}
		return nil, fmt.Errorf("grading final quiz: %w", err)
	}

	from := s.st.Phase
	s.st.Attempts = append(s.st.Attempts, graded...)
	submission := s.submissionLocked(call.quiz, graded)
	correct := countCorrect(submission)
	total := len(call.quiz.Questions)

	s.turnLocked("learner", "answers", describeAnswers(call.quiz, answers))
	s.turnLocked("tutor", "result", fmt.Sprintf("Final quiz: %d/%d correct.", correct, total))

	s.st.Partial = nil
	s.st.Phase = PhaseComplete

	res := &FinalResult{
		Attempts: submission,
		Correct:  correct,
		Total:    total,
		Progress: Progress(s.st.Steps),
	}
	c := s.commitLocked("submit_final_quiz", from)
	s.mu.Unlock()

	s.publish(ctx, c)
	return res, nil
}
