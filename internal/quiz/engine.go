// Package quiz generates and grades mini-quizzes and comprehensive quizzes.
package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/llm"
)

// Engine generates quizzes, grades answers and explains misses.
type Engine struct {
	provider llm.Provider
	cfg      Config

	// now and newID are replaceable in tests.
	now   func() time.Time
	newID func() string
}

// NewEngine creates a quiz engine.
func NewEngine(provider llm.Provider, cfg Config) *Engine {
	if cfg.MiniMaxQuestions < 1 || cfg.MiniMaxQuestions > MaxMiniQuestions {
		cfg.MiniMaxQuestions = MaxMiniQuestions
	}
	return &Engine{
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type quizOutput struct {
	Questions []questionOutput `json:"questions"`
}

type questionOutput struct {
	Prompt  string   `json:"prompt"`
	Kind    string   `json:"kind"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
	Answers []string `json:"answers"`
	Step    int      `json:"step"`
}

// GenerateMini creates a quiz of 1 to MiniMaxQuestions questions scoped to
// one step.
func (e *Engine) GenerateMini(ctx context.Context, input MiniInput) (*Quiz, error) {
	params, err := level.ParametersFor(input.Level)
	if err != nil {
		return nil, err
	}

	msg, err := buildMiniMessage(input, params.Directive(), e.cfg.MiniMaxQuestions)
	if err != nil {
		return nil, fmt.Errorf("build mini-quiz prompt: %w", err)
	}

	out, err := e.generate(llm.WithPurpose(ctx, llm.PurposeMiniQuiz), msg, params.Temperature)
	if err != nil {
		return nil, err
	}
	if len(out.Questions) > e.cfg.MiniMaxQuestions {
		return nil, &QuizGenerationError{
			Reason: fmt.Sprintf("%d questions exceeds the limit of %d", len(out.Questions), e.cfg.MiniMaxQuestions),
		}
	}

	q := &Quiz{ID: e.newID(), Scope: input.Step.Index}
	for i, raw := range out.Questions {
		question, err := e.buildQuestion(raw, input.Step.Index)
		if err != nil {
			return nil, &QuizGenerationError{Reason: fmt.Sprintf("question %d", i+1), Err: err}
		}
		q.Questions = append(q.Questions, question)
	}
	return q, nil
}

// GenerateFinal creates a comprehensive quiz with at least one question for
// every step. The per-step count comes from the level parameters.
func (e *Engine) GenerateFinal(ctx context.Context, input FinalInput) (*Quiz, error) {
	if len(input.Steps) == 0 {
		return nil, &QuizGenerationError{Reason: "no steps to cover"}
	}

	params, err := level.ParametersFor(input.Level)
	if err != nil {
		return nil, err
	}

	msg, err := buildFinalMessage(input, params.Directive(), params.FinalQuestionsPerStep)
	if err != nil {
		return nil, fmt.Errorf("build final quiz prompt: %w", err)
	}

	out, err := e.generate(llm.WithPurpose(ctx, llm.PurposeFinalQuiz), msg, params.Temperature)
	if err != nil {
		return nil, err
	}

	q := &Quiz{ID: e.newID(), Scope: FinalScope}
	covered := make([]bool, len(input.Steps))
	for i, raw := range out.Questions {
		idx := raw.Step - 1
		if idx < 0 || idx >= len(input.Steps) {
			return nil, &QuizGenerationError{Reason: fmt.Sprintf("question %d refers to unknown step %d", i+1, raw.Step)}
		}
		question, err := e.buildQuestion(raw, idx)
		if err != nil {
			return nil, &QuizGenerationError{Reason: fmt.Sprintf("question %d", i+1), Err: err}
		}
		covered[idx] = true
		q.Questions = append(q.Questions, question)
	}

	titles := stepTitles(input.Steps)
	for i, ok := range covered {
		if !ok {
			return nil, &QuizGenerationError{Reason: fmt.Sprintf("step %d (%s) has no questions", i+1, titles[i])}
		}
	}
	return q, nil
}

func (e *Engine) generate(ctx context.Context, msg string, temperature float64) (*quizOutput, error) {
	req := llm.Request{
		System: generateSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: msg},
		},
		Schema:      QuizSchema,
		MaxTokens:   e.cfg.GenerateMaxTokens,
		Temperature: temperature,
	}

	resp, err := e.provider.Generate(ctx, req)
	if err != nil {
		return nil, &QuizGenerationError{Reason: "generator call failed", Err: err}
	}

	var out quizOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, &QuizGenerationError{Reason: "unparseable quiz", Err: err}
	}
	if len(out.Questions) == 0 {
		return nil, &QuizGenerationError{Reason: "quiz has no questions"}
	}
	return &out, nil
}

// buildQuestion validates a generated question and converts it.
func (e *Engine) buildQuestion(raw questionOutput, stepIndex int) (Question, error) {
	q := Question{
		ID:        e.newID(),
		StepIndex: stepIndex,
		Prompt:    strings.TrimSpace(raw.Prompt),
		Kind:      Kind(raw.Kind),
	}
	if q.Prompt == "" {
		return Question{}, fmt.Errorf("empty prompt")
	}

	switch q.Kind {
	case KindMultipleChoice:
		opts, err := cleanOptions(raw.Options)
		if err != nil {
			return Question{}, err
		}
		key, ok := matchOption(raw.Answer, opts)
		if !ok {
			return Question{}, fmt.Errorf("answer %q is not among the options", raw.Answer)
		}
		q.Options = opts
		q.Answer = key

	case KindMultiSelect:
		opts, err := cleanOptions(raw.Options)
		if err != nil {
			return Question{}, err
		}
		if len(raw.Answers) == 0 {
			return Question{}, fmt.Errorf("multi-select question has no answers")
		}
		seen := map[string]bool{}
		for _, a := range raw.Answers {
			key, ok := matchOption(a, opts)
			if !ok {
				return Question{}, fmt.Errorf("answer %q is not among the options", a)
			}
			if !seen[key] {
				seen[key] = true
				q.Answers = append(q.Answers, key)
			}
		}
		q.Options = opts

	case KindOpenEnded:
		q.Answer = strings.TrimSpace(raw.Answer)
		if q.Answer == "" {
			return Question{}, fmt.Errorf("open-ended question has no model answer")
		}

	default:
		return Question{}, fmt.Errorf("unknown question kind %q", raw.Kind)
	}
	return q, nil
}

// cleanOptions trims options and drops blanks. Options that only differ
// in case or spacing are rejected, since answers match on that form.
func cleanOptions(options []string) ([]string, error) {
	var out []string
	seen := make(map[string]string, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o == "" {
			continue
		}
		if prev, dup := seen[normalize(o)]; dup {
			return nil, fmt.Errorf("options %q and %q are the same", prev, o)
		}
		seen[normalize(o)] = o
		out = append(out, o)
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("need at least 2 options, got %d", len(out))
	}
	return out, nil
}
