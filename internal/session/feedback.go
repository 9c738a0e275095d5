package session

import (
	"context"
	"fmt"

	"github.com/abhisek/tutorly/internal/quiz"
)

// Feedback returns the explanation for an attempt. Correct attempts have
// none. For an incorrect attempt the explanation is generated on first
// request and cached on the attempt; it is also available after the
// session is complete.
func (s *Session) Feedback(ctx context.Context, attemptID string) (string, error) {
	s.mu.Lock()
	idx := -1
	for i, a := range s.st.Attempts {
		if a.ID == attemptID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("feedback for %q: %w", attemptID, ErrAttemptNotFound)
	}

	attempt := s.st.Attempts[idx]
	if attempt.Correct || attempt.FeedbackGenerated {
		s.mu.Unlock()
		return attempt.Feedback, nil
	}
	if s.busy {
		s.mu.Unlock()
		return "", ErrSessionBusy
	}

	q := s.st.quiz(attempt.QuizID)
	if q == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("feedback for %q: quiz %s missing from session", attemptID, attempt.QuizID)
	}
	question, ok := q.Question(attempt.QuestionID)
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("feedback for %q: question %s missing from quiz", attemptID, attempt.QuestionID)
	}

	input := quiz.ExplainInput{
		Topic:    s.st.Topic,
		Question: question,
		Attempt:  attempt,
		Level:    s.st.Level,
	}
	s.busy = true
	s.mu.Unlock()

	feedback, err := s.deps.Quizzes.Explain(s.traced(ctx), input)
	if err != nil {
		s.release()
		return "", err
	}

	s.mu.Lock()
	s.busy = false
	a := &s.st.Attempts[idx]
	a.Feedback = feedback
	a.FeedbackGenerated = true
	s.turnLocked("tutor", "feedback", feedback)
	c := s.commitLocked("feedback", s.st.Phase)
	s.mu.Unlock()

	s.publish(ctx, c)
	return feedback, nil
}
