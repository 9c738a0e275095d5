package quiz

import (
	"fmt"
	"time"

	"github.com/abhisek/tutorly/internal/lesson"
	"github.com/abhisek/tutorly/internal/level"
)

// Kind describes how a question is answered.
type Kind string

const (
	// KindMultipleChoice means the learner picks one option.
	KindMultipleChoice Kind = "multiple_choice"

	// KindMultiSelect means the learner picks every correct option.
	KindMultiSelect Kind = "multi_select"

	// KindOpenEnded means the learner writes a free-text answer, judged by
	// the generation provider.
	KindOpenEnded Kind = "open_ended"
)

// FinalScope is the Quiz.Scope of a comprehensive end-of-session quiz.
const FinalScope = -1

// Question is a single quiz question with its answer key.
type Question struct {
	ID        string   `json:"id"`
	StepIndex int      `json:"step_index"`
	Prompt    string   `json:"prompt"`
	Kind      Kind     `json:"kind"`
	Options   []string `json:"options,omitempty"`

	// Answer is the correct option text for multiple choice, or the
	// reference answer for open-ended questions.
	Answer string `json:"answer,omitempty"`

	// Answers holds the correct option texts for multi-select.
	Answers []string `json:"answers,omitempty"`
}

// Quiz is an ordered set of questions for one step or the whole plan.
type Quiz struct {
	ID        string     `json:"id"`
	Scope     int        `json:"scope"`
	Questions []Question `json:"questions"`
}

// Final reports whether q is a comprehensive quiz.
func (q *Quiz) Final() bool { return q.Scope == FinalScope }

// Question returns the question with the given ID.
func (q *Quiz) Question(id string) (Question, bool) {
	for _, qq := range q.Questions {
		if qq.ID == id {
			return qq, true
		}
	}
	return Question{}, false
}

// Attempt records one graded answer. Attempts are append-only history;
// only the feedback fields are filled in later, once.
type Attempt struct {
	ID         string    `json:"id"`
	QuizID     string    `json:"quiz_id"`
	QuestionID string    `json:"question_id"`
	StepIndex  int       `json:"step_index"`
	Final      bool      `json:"final"`
	Submitted  string    `json:"submitted"`
	Correct    bool      `json:"correct"`
	At         time.Time `json:"at"`

	// Feedback explains the misconception behind an incorrect answer.
	// FeedbackGenerated is set once it has been produced.
	Feedback          string `json:"feedback,omitempty"`
	FeedbackGenerated bool   `json:"feedback_generated,omitempty"`
}

// MiniInput holds the context for a single-step quiz.
type MiniInput struct {
	Topic   string
	Step    lesson.Step
	Content string
	Level   level.Level
}

// FinalInput holds the context for a comprehensive quiz.
type FinalInput struct {
	Topic string
	Goal  string
	Steps []lesson.Step
	Level level.Level
}

// GradeInput holds the submitted answers for one quiz.
type GradeInput struct {
	Topic string
	Level level.Level

	// Answers maps question ID to the learner's answer.
	Answers map[string]string

	// Skip lists question IDs already graded by an earlier, interrupted
	// call. They produce no new attempts.
	Skip map[string]bool
}

// ExplainInput holds the context for feedback on one incorrect attempt.
type ExplainInput struct {
	Topic    string
	Question Question
	Attempt  Attempt
	Level    level.Level
}

// QuizGenerationError is returned when the generator produces a quiz that
// cannot be used. Regenerating may fix it.
type QuizGenerationError struct {
	Reason string
	Err    error
}

func (e *QuizGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quiz generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("quiz generation failed: %s", e.Reason)
}

func (e *QuizGenerationError) Unwrap() error { return e.Err }

// AnswersByPosition maps positional answers onto the quiz's question IDs.
// Missing trailing answers are left out and grade as incorrect.
func AnswersByPosition(q *Quiz, answers []string) map[string]string {
	out := make(map[string]string, len(answers))
	for i, a := range answers {
		if i >= len(q.Questions) {
			break
		}
		out[q.Questions[i].ID] = a
	}
	return out
}
