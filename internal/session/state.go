package session

import (
	"time"

	"github.com/abhisek/tutorly/internal/lesson"
	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/quiz"
)

// Phase is the lifecycle state of a session.
type Phase string

const (
	PhaseCreated           Phase = "created"
	PhaseInStep            Phase = "in_step"
	PhaseAwaitingMiniQuiz  Phase = "awaiting_mini_quiz"
	PhaseGradingMiniQuiz   Phase = "grading_mini_quiz"
	PhaseRemediatingStep   Phase = "remediating_step"
	PhaseAwaitingFinalQuiz Phase = "awaiting_final_quiz"
	PhaseGradingFinalQuiz  Phase = "grading_final_quiz"
	PhaseComplete          Phase = "complete"
)

// StepStatus is the mastery status of one lesson step.
type StepStatus string

const (
	StatusNotStarted StepStatus = "not_started"
	StatusInProgress StepStatus = "in_progress"
	StatusMastered   StepStatus = "mastered"

	// StatusRemediated marks a step passed after the remediation limit was
	// exhausted. It counts toward progress but is reported apart from
	// Mastered.
	StatusRemediated StepStatus = "remediated"
)

// Done reports whether the step counts as completed.
func (s StepStatus) Done() bool {
	return s == StatusMastered || s == StatusRemediated
}

// StepState is a plan step plus everything the session learned about it.
type StepState struct {
	lesson.Step

	// Content is generated the first time the step is delivered and never
	// changes afterwards.
	Content          string `json:"content,omitempty"`
	ContentGenerated bool   `json:"content_generated,omitempty"`

	// ContentLevel is the knowledge level the content was written for.
	ContentLevel level.Level `json:"content_level,omitempty"`

	Status       StepStatus `json:"status"`
	Remediations int        `json:"remediations"`
}

// StepView is a read-only view of one step.
type StepView struct {
	Index        int        `json:"index"`
	Title        string     `json:"title"`
	Objective    string     `json:"objective"`
	Content      string     `json:"content,omitempty"`
	Status       StepStatus `json:"status"`
	Remediations int        `json:"remediations"`
}

func (s StepState) view() StepView {
	return StepView{
		Index:        s.Index,
		Title:        s.Title,
		Objective:    s.Objective,
		Content:      s.Content,
		Status:       s.Status,
		Remediations: s.Remediations,
	}
}

// Turn is one entry in the session's conversation history.
type Turn struct {
	Role      string    `json:"role"` // "tutor" or "learner"
	Kind      string    `json:"kind"`
	StepIndex int       `json:"step_index"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// snapshotVersion is bumped when Snapshot changes incompatibly.
const snapshotVersion = 1

// Snapshot is the complete persisted state of a session. Restoring a
// snapshot rebuilds the session exactly.
type Snapshot struct {
	Version      int         `json:"version"`
	ID           string      `json:"id"`
	LearnerID    string      `json:"learner_id"`
	Topic        string      `json:"topic"`
	Goal         string      `json:"goal"`
	Level        level.Level `json:"level"`
	SourceDigest string      `json:"source_digest,omitempty"`

	Phase   Phase       `json:"phase"`
	Current int         `json:"current"`
	Steps   []StepState `json:"steps"`

	// Quizzes holds every quiz generated in the session, so feedback can
	// still be produced for attempts on quizzes no longer pending.
	Quizzes []*quiz.Quiz `json:"quizzes"`

	// MiniQuizID and FinalQuizID name the pending quizzes, if any.
	MiniQuizID  string `json:"mini_quiz_id,omitempty"`
	FinalQuizID string `json:"final_quiz_id,omitempty"`

	// Partial holds question IDs of the pending quiz already graded by a
	// grading call that failed part-way. A retry skips them.
	Partial map[string]bool `json:"partial,omitempty"`

	Attempts     []quiz.Attempt `json:"attempts"`
	Conversation []Turn         `json:"conversation"`

	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// quiz returns the quiz with the given ID, or nil.
func (s *Snapshot) quiz(id string) *quiz.Quiz {
	if id == "" {
		return nil
	}
	for _, q := range s.Quizzes {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// cloneQuiz returns a copy callers may keep without sharing state.
func cloneQuiz(q *quiz.Quiz) *quiz.Quiz {
	if q == nil {
		return nil
	}
	cp := *q
	cp.Questions = make([]quiz.Question, len(q.Questions))
	for i, qq := range q.Questions {
		qq.Options = append([]string(nil), qq.Options...)
		qq.Answers = append([]string(nil), qq.Answers...)
		cp.Questions[i] = qq
	}
	return &cp
}
