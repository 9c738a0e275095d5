package lesson

import (
	"errors"
	"fmt"

	"github.com/abhisek/tutorly/internal/level"
)

// Step is one entry of a lesson plan. Content is generated separately,
// the first time the learner reaches the step.
type Step struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Objective string `json:"objective"`
}

// Plan is an ordered curriculum for one topic and goal. Each step builds
// only on the steps before it.
type Plan struct {
	Topic string `json:"topic"`
	Goal  string `json:"goal"`
	Steps []Step `json:"steps"`
}

// Grounding is a web search snippet used as secondary grounding.
type Grounding struct {
	Snippet string
	URL     string
}

// PlanInput holds everything needed to plan a lesson.
type PlanInput struct {
	Topic string
	Goal  string
	Level level.Level

	// SourceDigest is text distilled from a learner-supplied document or
	// transcript. It takes precedence over open-domain knowledge.
	SourceDigest string

	// Grounding holds optional web search results.
	Grounding []Grounding
}

// StepInput holds everything needed to write one step's content.
type StepInput struct {
	Topic        string
	Goal         string
	Step         Step
	Prior        []Step
	Level        level.Level
	SourceDigest string
}

// Exchange is one earlier turn of a learner's question-and-answer thread.
type Exchange struct {
	Role string // "learner" or "tutor"
	Text string
}

// QuestionInput holds a learner's free-form question about the step they
// are on, with what is needed to answer it in context.
type QuestionInput struct {
	Topic        string
	Goal         string
	Step         Step
	Content      string // the step's explanation, if written yet
	SourceDigest string
	History      []Exchange
	Question     string
	Level        level.Level
}

// ErrInvalidInput is returned when the topic or goal is empty.
var ErrInvalidInput = errors.New("invalid lesson input")

// PlanGenerationError is returned when the generator fails or produces
// an empty, malformed or unusable plan. No session may be created from it.
type PlanGenerationError struct {
	Reason string
	Err    error
}

func (e *PlanGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plan generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("plan generation failed: %s", e.Reason)
}

func (e *PlanGenerationError) Unwrap() error { return e.Err }

// ContentGenerationError is returned when step content cannot be produced.
type ContentGenerationError struct {
	StepIndex int
	Err       error
}

func (e *ContentGenerationError) Error() string {
	return fmt.Sprintf("content generation for step %d failed: %v", e.StepIndex, e.Err)
}

func (e *ContentGenerationError) Unwrap() error { return e.Err }

// AnswerGenerationError is returned when a learner's question cannot be
// answered.
type AnswerGenerationError struct {
	StepIndex int
	Err       error
}

func (e *AnswerGenerationError) Error() string {
	return fmt.Sprintf("answering question on step %d failed: %v", e.StepIndex, e.Err)
}

func (e *AnswerGenerationError) Unwrap() error { return e.Err }
