// Package lesson plans curricula and writes step content through the
// generation provider.
package lesson

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/llm"
)

// Planner turns a topic and goal into a lesson plan and writes the
// content of individual steps. It performs no retries of its own.
type Planner struct {
	provider llm.Provider
	cfg      Config
}

// NewPlanner creates a lesson planner.
func NewPlanner(provider llm.Provider, cfg Config) *Planner {
	if cfg.MaxSteps < 1 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	return &Planner{provider: provider, cfg: cfg}
}

type planOutput struct {
	Steps []struct {
		Title     string `json:"title"`
		Objective string `json:"objective"`
	} `json:"steps"`
}

// Plan generates an ordered lesson plan. It returns ErrInvalidInput for an
// empty topic or goal and *PlanGenerationError for every generation
// failure, wrapping the provider error where there is one.
func (p *Planner) Plan(ctx context.Context, input PlanInput) (*Plan, error) {
	input.Topic = strings.TrimSpace(input.Topic)
	input.Goal = strings.TrimSpace(input.Goal)
	if input.Topic == "" {
		return nil, fmt.Errorf("%w: topic is empty", ErrInvalidInput)
	}
	if input.Goal == "" {
		return nil, fmt.Errorf("%w: goal is empty", ErrInvalidInput)
	}

	params, err := level.ParametersFor(input.Level)
	if err != nil {
		return nil, err
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeLessonPlan)

	req := llm.Request{
		System: planSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildPlanUserMessage(input, params, p.cfg.MaxSteps)},
		},
		Schema:      PlanSchema,
		MaxTokens:   p.cfg.PlanMaxTokens,
		Temperature: params.Temperature,
	}

	resp, err := p.provider.Generate(ctx, req)
	if err != nil {
		return nil, &PlanGenerationError{Reason: "generator call failed", Err: err}
	}

	var out planOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, &PlanGenerationError{Reason: "unparseable plan", Err: err}
	}
	if len(out.Steps) == 0 {
		return nil, &PlanGenerationError{Reason: "plan has no steps"}
	}
	if len(out.Steps) > p.cfg.MaxSteps {
		// Steps depend only on earlier ones, so the prefix is still coherent.
		out.Steps = out.Steps[:p.cfg.MaxSteps]
	}

	plan := &Plan{Topic: input.Topic, Goal: input.Goal}
	for i, s := range out.Steps {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			return nil, &PlanGenerationError{Reason: fmt.Sprintf("step %d has no title", i+1)}
		}
		plan.Steps = append(plan.Steps, Step{
			Index:     i,
			Title:     title,
			Objective: strings.TrimSpace(s.Objective),
		})
	}
	return plan, nil
}

type stepOutput struct {
	Content string `json:"content"`
}

// WriteStep generates the explanatory content of one step using the
// parameters of input.Level.
func (p *Planner) WriteStep(ctx context.Context, input StepInput) (string, error) {
	params, err := level.ParametersFor(input.Level)
	if err != nil {
		return "", err
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeStepContent)

	req := llm.Request{
		System: stepSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildStepUserMessage(input, params)},
		},
		Schema:      StepContentSchema,
		MaxTokens:   p.cfg.StepMaxTokens,
		Temperature: params.Temperature,
	}

	resp, err := p.provider.Generate(ctx, req)
	if err != nil {
		return "", &ContentGenerationError{StepIndex: input.Step.Index, Err: err}
	}

	var out stepOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", &ContentGenerationError{StepIndex: input.Step.Index, Err: fmt.Errorf("parse step content: %w", err)}
	}
	content := strings.TrimSpace(out.Content)
	if content == "" {
		return "", &ContentGenerationError{StepIndex: input.Step.Index, Err: fmt.Errorf("empty content")}
	}
	return content, nil
}

type answerOutput struct {
	Answer string `json:"answer"`
}

// Answer replies to a learner's free-form question about the current step
// using the parameters of input.Level.
func (p *Planner) Answer(ctx context.Context, input QuestionInput) (string, error) {
	input.Question = strings.TrimSpace(input.Question)
	if input.Question == "" {
		return "", fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	params, err := level.ParametersFor(input.Level)
	if err != nil {
		return "", err
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeTutorAnswer)

	req := llm.Request{
		System: answerSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildAnswerUserMessage(input, params)},
		},
		Schema:      TutorAnswerSchema,
		MaxTokens:   p.cfg.AnswerMaxTokens,
		Temperature: params.Temperature,
	}

	resp, err := p.provider.Generate(ctx, req)
	if err != nil {
		return "", &AnswerGenerationError{StepIndex: input.Step.Index, Err: err}
	}

	var out answerOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", &AnswerGenerationError{StepIndex: input.Step.Index, Err: fmt.Errorf("parse answer: %w", err)}
	}
	answer := strings.TrimSpace(out.Answer)
	if answer == "" {
		return "", &AnswerGenerationError{StepIndex: input.Step.Index, Err: fmt.Errorf("empty answer")}
	}
	return answer, nil
}
