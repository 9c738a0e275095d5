package session

import (
	"time"

	"github.com/abhisek/tutorly/internal/level"
)

// Summary is a read-only overview of a session.
type Summary struct {
	ID        string       `json:"id"`
	LearnerID string       `json:"learner_id"`
	Topic     string       `json:"topic"`
	Goal      string       `json:"goal"`
	Level     level.Level  `json:"level"`
	Phase     Phase        `json:"phase"`
	Current   int          `json:"current"`
	Steps     []StepView   `json:"steps"`
	Progress  GoalProgress `json:"progress"`
	Attempts  int          `json:"attempts"`

	// Final is set once the comprehensive quiz has been graded.
	Final *Score `json:"final,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Score is a correct/total pair.
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Summary returns an overview of the session.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		ID:        s.st.ID,
		LearnerID: s.st.LearnerID,
		Topic:     s.st.Topic,
		Goal:      s.st.Goal,
		Level:     s.st.Level,
		Phase:     s.st.Phase,
		Current:   s.st.Current,
		Steps:     make([]StepView, len(s.st.Steps)),
		Progress:  Progress(s.st.Steps),
		Attempts:  len(s.st.Attempts),
		CreatedAt: s.st.CreatedAt,
		UpdatedAt: s.st.UpdatedAt,
	}
	if s.grading != "" {
		sum.Phase = s.grading
	}
	for i, st := range s.st.Steps {
		sum.Steps[i] = st.view()
	}

	if s.st.Phase == PhaseComplete && s.st.FinalQuizID != "" {
		score := &Score{}
		for _, a := range s.st.Attempts {
			if a.QuizID != s.st.FinalQuizID {
				continue
			}
			score.Total++
			if a.Correct {
				score.Correct++
			}
		}
		sum.Final = score
	}
	return sum
}
