package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/abhisek/tutorly/internal/lesson"
)

var askPhases = []Phase{PhaseInStep, PhaseRemediatingStep}

// Ask answers a free-form question about the current step. The answer is
// grounded on the step's content, the source digest and recent questions,
// and is pitched at the current level. Both turns are recorded; the phase
// does not change.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("ask: %w: question is empty", lesson.ErrInvalidInput)
	}

	s.mu.Lock()
	if err := s.checkLocked("ask", askPhases); err != nil {
		s.mu.Unlock()
		return "", err
	}

	step := s.st.Steps[s.st.Current]
	input := lesson.QuestionInput{
		Topic:        s.st.Topic,
		Goal:         s.st.Goal,
		Step:         step.Step,
		Content:      step.Content,
		SourceDigest: s.st.SourceDigest,
		History:      s.questionHistoryLocked(),
		Question:     question,
		Level:        s.st.Level,
	}
	s.busy = true
	s.mu.Unlock()

	answer, err := s.deps.Writer.Answer(s.traced(ctx), input)
	if err != nil {
		s.release()
		return "", err
	}

	s.mu.Lock()
	s.busy = false
	s.turnLocked("learner", "question", question)
	s.turnLocked("tutor", "answer", answer)
	c := s.commitLocked("ask", s.st.Phase)
	s.mu.Unlock()

	s.publish(ctx, c)
	return answer, nil
}

// questionHistoryLocked returns the most recent question and answer turns,
// oldest first.
func (s *Session) questionHistoryLocked() []lesson.Exchange {
	limit := s.cfg.QuestionHistory
	if limit <= 0 {
		return nil
	}
	var out []lesson.Exchange
	for i := len(s.st.Conversation) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.st.Conversation[i]
		if t.Kind != "question" && t.Kind != "answer" {
			continue
		}
		out = append(out, lesson.Exchange{Role: t.Role, Text: t.Text})
	}
	slices.Reverse(out)
	return out
}
