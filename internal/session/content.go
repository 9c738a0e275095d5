package session

import (
	"context"
	"fmt"

	"github.com/abhisek/tutorly/internal/lesson"
)

var contentPhases = []Phase{PhaseCreated, PhaseInStep, PhaseAwaitingMiniQuiz, PhaseRemediatingStep}

// StepContent delivers the current step. The content is generated the
// first time the step is requested, at the level current at that moment,
// and returned unchanged by every later call.
func (s *Session) StepContent(ctx context.Context) (StepView, error) {
	s.mu.Lock()
	if err := s.checkLocked("step_content", contentPhases); err != nil {
		s.mu.Unlock()
		return StepView{}, err
	}

	i := s.st.Current
	if s.st.Steps[i].ContentGenerated {
		view := s.st.Steps[i].view()
		s.mu.Unlock()
		return view, nil
	}

	input := lesson.StepInput{
		Topic:        s.st.Topic,
		Goal:         s.st.Goal,
		Step:         s.st.Steps[i].Step,
		Prior:        s.planStepsLocked()[:i],
		Level:        s.st.Level,
		SourceDigest: s.st.SourceDigest,
	}
	s.busy = true
	s.mu.Unlock()

	content, err := s.deps.Writer.WriteStep(s.traced(ctx), input)
	if err != nil {
		s.release()
		return StepView{}, err
	}

	s.mu.Lock()
	s.busy = false
	from := s.st.Phase

	step := &s.st.Steps[i]
	step.Content = content
	step.ContentGenerated = true
	step.ContentLevel = input.Level
	if step.Status == StatusNotStarted {
		step.Status = StatusInProgress
	}
	if from == PhaseCreated {
		s.st.Phase = PhaseInStep
	}
	s.turnLocked("tutor", "content", content)

	view := step.view()
	c := s.commitLocked("step_content", from)
	s.mu.Unlock()

	s.publish(ctx, c)
	return view, nil
}

// RevisitStep returns a step the learner has already reached. It never
// changes the session and also works after completion.
func (s *Session) RevisitStep(index int) (StepView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index > s.st.Current || index >= len(s.st.Steps) {
		return StepView{}, fmt.Errorf("revisit step %d: %w", index, ErrStepOutOfRange)
	}
	return s.st.Steps[index].view(), nil
}

func (s *Session) planStepsLocked() []lesson.Step {
	steps := make([]lesson.Step, len(s.st.Steps))
	for i, st := range s.st.Steps {
		steps[i] = st.Step
	}
	return steps
}
