package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/llm"
)

// Grade grades every question of q that is not in input.Skip, in quiz
// order, producing one attempt per question. A question with no answer is
// graded incorrect with an empty submission.
//
// Multiple choice and multi-select are graded deterministically against the
// key. Open-ended answers are judged by the generation provider. If a
// judgement fails, Grade returns the attempts graded so far together with
// the error; those attempts stay valid.
func (e *Engine) Grade(ctx context.Context, q *Quiz, input GradeInput) ([]Attempt, error) {
	var attempts []Attempt
	for _, question := range q.Questions {
		if input.Skip[question.ID] {
			continue
		}

		submitted := strings.TrimSpace(input.Answers[question.ID])
		attempt := Attempt{
			ID:         e.newID(),
			QuizID:     q.ID,
			QuestionID: question.ID,
			StepIndex:  question.StepIndex,
			Final:      q.Final(),
			Submitted:  submitted,
		}

		switch question.Kind {
		case KindMultipleChoice:
			attempt.Correct = CheckMultipleChoice(submitted, question)
		case KindMultiSelect:
			attempt.Correct = CheckMultiSelect(submitted, question)
		case KindOpenEnded:
			if submitted != "" {
				correct, feedback, err := e.judge(ctx, input, question, submitted)
				if err != nil {
					return attempts, fmt.Errorf("grade question %s: %w", question.ID, err)
				}
				attempt.Correct = correct
				if !correct && feedback != "" {
					attempt.Feedback = feedback
					attempt.FeedbackGenerated = true
				}
			}
		default:
			return attempts, fmt.Errorf("grade question %s: unknown kind %q", question.ID, question.Kind)
		}

		attempt.At = e.now()
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

type judgementOutput struct {
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
}

func (e *Engine) judge(ctx context.Context, input GradeInput, question Question, submitted string) (bool, string, error) {
	params, err := level.ParametersFor(input.Level)
	if err != nil {
		return false, "", err
	}

	msg, err := buildJudgeMessage(judgeData{
		Topic:     input.Topic,
		Directive: params.Directive(),
		Question:  question,
		Submitted: submitted,
	})
	if err != nil {
		return false, "", fmt.Errorf("build judge prompt: %w", err)
	}

	resp, err := e.provider.Generate(llm.WithPurpose(ctx, llm.PurposeAnswerJudge), llm.Request{
		System: judgeSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: msg},
		},
		Schema:      JudgementSchema,
		MaxTokens:   e.cfg.JudgeMaxTokens,
		Temperature: e.cfg.JudgeTemperature,
	})
	if err != nil {
		return false, "", err
	}

	var out judgementOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return false, "", fmt.Errorf("parse judgement: %w", err)
	}
	return out.Correct, strings.TrimSpace(out.Feedback), nil
}

type feedbackOutput struct {
	Feedback string `json:"feedback"`
}

// Explain generates feedback on the misconception behind an incorrect
// attempt. Callers cache the result on the attempt.
func (e *Engine) Explain(ctx context.Context, input ExplainInput) (string, error) {
	params, err := level.ParametersFor(input.Level)
	if err != nil {
		return "", err
	}

	correct := input.Question.Answer
	if input.Question.Kind == KindMultiSelect {
		correct = strings.Join(input.Question.Answers, "; ")
	}

	msg, err := buildFeedbackMessage(feedbackData{
		Topic:     input.Topic,
		Directive: params.Directive(),
		Question:  input.Question,
		Correct:   correct,
		Submitted: input.Attempt.Submitted,
	})
	if err != nil {
		return "", fmt.Errorf("build feedback prompt: %w", err)
	}

	resp, err := e.provider.Generate(llm.WithPurpose(ctx, llm.PurposeAnswerFeedback), llm.Request{
		System: feedbackSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: msg},
		},
		Schema:      FeedbackSchema,
		MaxTokens:   e.cfg.FeedbackMaxTokens,
		Temperature: params.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("feedback generation: %w", err)
	}

	var out feedbackOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse feedback: %w", err)
	}
	feedback := strings.TrimSpace(out.Feedback)
	if feedback == "" {
		return "", fmt.Errorf("feedback generation: empty feedback")
	}
	return feedback, nil
}

// CheckMultipleChoice reports whether submitted selects the keyed option.
// The learner may answer with the option text, its 1-based number or its
// letter. Text comparison ignores case and extra whitespace.
func CheckMultipleChoice(submitted string, q Question) bool {
	choice, ok := resolveOption(submitted, q.Options)
	if !ok {
		return false
	}
	return normalize(choice) == normalize(q.Answer)
}

// CheckMultiSelect reports whether submitted selects exactly the keyed
// options. Selections are separated by commas, semicolons or newlines and
// each may be given as text, number or letter.
func CheckMultiSelect(submitted string, q Question) bool {
	if strings.TrimSpace(submitted) == "" {
		return false
	}

	got := map[string]bool{}
	if choice, ok := matchOption(submitted, q.Options); ok {
		// The whole submission is one option, even if it contains commas.
		got[normalize(choice)] = true
	} else {
		parts := strings.FieldsFunc(submitted, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n'
		})
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				continue
			}
			choice, ok := resolveOption(p, q.Options)
			if !ok {
				return false
			}
			got[normalize(choice)] = true
		}
	}

	want := map[string]bool{}
	for _, a := range q.Answers {
		want[normalize(a)] = true
	}
	if len(got) != len(want) {
		return false
	}
	for k := range want {
		if !got[k] {
			return false
		}
	}
	return true
}

// resolveOption maps a submission to an option by text, number or letter.
func resolveOption(submitted string, options []string) (string, bool) {
	s := strings.TrimSpace(submitted)
	if s == "" {
		return "", false
	}
	if choice, ok := matchOption(s, options); ok {
		return choice, true
	}

	// "2", "2." and "2)" select the second option.
	trimmed := strings.TrimRight(s, ".)")
	if idx, err := strconv.Atoi(trimmed); err == nil {
		if idx >= 1 && idx <= len(options) {
			return options[idx-1], true
		}
		return "", false
	}

	// "b", "B." and "(b)" select the second option.
	letter := strings.ToLower(strings.Trim(s, "().) "))
	if len(letter) == 1 && letter[0] >= 'a' && letter[0] <= 'z' {
		idx := int(letter[0] - 'a')
		if idx < len(options) {
			return options[idx], true
		}
	}
	return "", false
}

// matchOption finds the option whose normalized text equals s.
func matchOption(s string, options []string) (string, bool) {
	n := normalize(s)
	if n == "" {
		return "", false
	}
	for _, o := range options {
		if normalize(o) == n {
			return o, true
		}
	}
	return "", false
}

// normalize lowercases s and collapses runs of whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
