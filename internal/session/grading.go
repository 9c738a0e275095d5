package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/tutorly/internal/quiz"
)

// gradingCall is everything a grading call needs, captured under the lock.
type gradingCall struct {
	quiz  *quiz.Quiz
	input quiz.GradeInput
}

func (s *Session) newGradingCallLocked(q *quiz.Quiz, answers map[string]string) gradingCall {
	skip := make(map[string]bool, len(s.st.Partial))
	for id := range s.st.Partial {
		skip[id] = true
	}
	submitted := make(map[string]string, len(answers))
	for id, a := range answers {
		submitted[id] = a
	}
	return gradingCall{
		quiz: cloneQuiz(q),
		input: quiz.GradeInput{
			Topic:   s.st.Topic,
			Level:   s.st.Level,
			Answers: submitted,
			Skip:    skip,
		},
	}
}

// grade runs the grading call without holding the lock. When instant
// feedback is on, misses are explained right away; explanation failures
// are logged and left for Feedback to retry.
func (s *Session) grade(ctx context.Context, call gradingCall) ([]quiz.Attempt, error) {
	ctx = s.traced(ctx)
	attempts, err := s.deps.Quizzes.Grade(ctx, call.quiz, call.input)
	if err != nil || !s.cfg.InstantFeedback {
		return attempts, err
	}

	for i := range attempts {
		a := &attempts[i]
		if a.Correct || a.FeedbackGenerated {
			continue
		}
		question, ok := call.quiz.Question(a.QuestionID)
		if !ok {
			continue
		}
		feedback, ferr := s.deps.Quizzes.Explain(ctx, quiz.ExplainInput{
			Topic:    call.input.Topic,
			Question: question,
			Attempt:  *a,
			Level:    call.input.Level,
		})
		if ferr != nil {
			s.logger.Warn("instant feedback failed", "attempt", a.ID, "error", ferr)
			continue
		}
		a.Feedback = feedback
		a.FeedbackGenerated = true
	}
	return attempts, nil
}

// keepPartialLocked records the attempts a failed grading call did
// produce. The phase does not change; a retry skips those questions.
func (s *Session) keepPartialLocked(op string, attempts []quiz.Attempt) (commit, bool) {
	if len(attempts) == 0 {
		return commit{}, false
	}
	if s.st.Partial == nil {
		s.st.Partial = make(map[string]bool)
	}
	for _, a := range attempts {
		s.st.Partial[a.QuestionID] = true
	}
	s.st.Attempts = append(s.st.Attempts, attempts...)
	return s.commitLocked(op+"_partial", s.st.Phase), true
}

// submissionLocked returns the attempts that make up the current
// submission of q in question order: those kept from an interrupted call
// plus the ones just graded.
func (s *Session) submissionLocked(q *quiz.Quiz, graded []quiz.Attempt) []quiz.Attempt {
	byQuestion := make(map[string]quiz.Attempt, len(q.Questions))
	for id := range s.st.Partial {
		for j := len(s.st.Attempts) - 1; j >= 0; j-- {
			a := s.st.Attempts[j]
			if a.QuizID == q.ID && a.QuestionID == id {
				byQuestion[id] = a
				break
			}
		}
	}
	for _, a := range graded {
		byQuestion[a.QuestionID] = a
	}

	out := make([]quiz.Attempt, 0, len(q.Questions))
	for _, qq := range q.Questions {
		if a, ok := byQuestion[qq.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

func countCorrect(attempts []quiz.Attempt) int {
	n := 0
	for _, a := range attempts {
		if a.Correct {
			n++
		}
	}
	return n
}

func describeAnswers(q *quiz.Quiz, answers map[string]string) string {
	var b strings.Builder
	for i, qq := range q.Questions {
		if i > 0 {
			b.WriteString("\n")
		}
		a, ok := answers[qq.ID]
		if !ok {
			a = "(no answer)"
		}
		fmt.Fprintf(&b, "%d. %s", i+1, a)
	}
	return b.String()
}

func describeQuiz(q *quiz.Quiz) string {
	var b strings.Builder
	for i, qq := range q.Questions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, qq.Prompt)
		for j, opt := range qq.Options {
			fmt.Fprintf(&b, "\n   %c) %s", 'A'+j, opt)
		}
	}
	return b.String()
}
