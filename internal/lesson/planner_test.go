package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/llm"
)

func photosynthesisPlanJSON() json.RawMessage {
	return json.RawMessage(`{
		"steps": [
			{"title": "What Light Does", "objective": "Explain how chlorophyll absorbs light."},
			{"title": "Splitting Water", "objective": "Describe photolysis and where oxygen comes from."},
			{"title": "Making ATP and NADPH", "objective": "Trace how the electron transport chain stores energy."}
		]
	}`)
}

func TestPlanner_Plan(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: photosynthesisPlanJSON()})
	p := NewPlanner(mock, DefaultConfig())

	plan, err := p.Plan(context.Background(), PlanInput{
		Topic: " Photosynthesis ",
		Goal:  "understand light-dependent reactions",
		Level: level.Beginner,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Topic != "Photosynthesis" {
		t.Errorf("topic = %q, want trimmed", plan.Topic)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(plan.Steps))
	}
	for i, s := range plan.Steps {
		if s.Index != i {
			t.Errorf("step %d has index %d", i, s.Index)
		}
	}

	req, _ := mock.LastCall()
	if req.Schema == nil || req.Schema.Name != "lesson-plan" {
		t.Fatal("expected lesson-plan schema")
	}
	if mock.Purposes[0] != "lesson-plan" {
		t.Errorf("purpose = %q", mock.Purposes[0])
	}
	if req.Temperature != 0.7 {
		t.Errorf("temperature = %v, want beginner temperature", req.Temperature)
	}
}

func TestPlanner_SourceDigestAndGroundingInPrompt(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: photosynthesisPlanJSON()})
	p := NewPlanner(mock, DefaultConfig())

	_, err := p.Plan(context.Background(), PlanInput{
		Topic:        "Photosynthesis",
		Goal:         "pass the exam",
		Level:        level.Expert,
		SourceDigest: "Chapter 4 notes: thylakoid membranes",
		Grounding:    []Grounding{{Snippet: "Light reactions occur in thylakoids", URL: "https://example.org/light"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := mock.Calls[0].Messages[0].Content
	for _, want := range []string{"Chapter 4 notes", "authoritative", "https://example.org/light", "expert"} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestPlanner_InvalidInput(t *testing.T) {
	mock := llm.NewMockProvider()
	p := NewPlanner(mock, DefaultConfig())

	for _, in := range []PlanInput{
		{Topic: "", Goal: "g", Level: level.Beginner},
		{Topic: "t", Goal: "  ", Level: level.Beginner},
	} {
		_, err := p.Plan(context.Background(), in)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Plan(%+v) err = %v, want ErrInvalidInput", in, err)
		}
	}
	if mock.CallCount() != 0 {
		t.Errorf("expected no generator calls, got %d", mock.CallCount())
	}
}

func TestPlanner_UnknownLevel(t *testing.T) {
	p := NewPlanner(llm.NewMockProvider(), DefaultConfig())
	_, err := p.Plan(context.Background(), PlanInput{Topic: "t", Goal: "g", Level: "wizard"})
	if !errors.Is(err, level.ErrUnknownLevel) {
		t.Fatalf("err = %v, want ErrUnknownLevel", err)
	}
}

func TestPlanner_GenerationErrors(t *testing.T) {
	tests := []struct {
		name string
		resp llm.MockResponse
	}{
		{"zero steps", llm.MockResponse{Content: json.RawMessage(`{"steps":[]}`)}},
		{"malformed", llm.MockResponse{Content: json.RawMessage(`{"steps":"nope"}`)}},
		{"blank title", llm.MockResponse{Content: json.RawMessage(`{"steps":[{"title":" ","objective":"x"}]}`)}},
		{"provider failure", llm.MockResponse{Err: &llm.ErrInvalidResponse{Err: errors.New("bad json")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(llm.NewMockProvider(tt.resp), DefaultConfig())
			plan, err := p.Plan(context.Background(), PlanInput{Topic: "t", Goal: "g", Level: level.Beginner})
			if plan != nil {
				t.Fatal("expected no plan")
			}
			var pge *PlanGenerationError
			if !errors.As(err, &pge) {
				t.Fatalf("err = %v, want *PlanGenerationError", err)
			}
		})
	}
}

func TestPlanner_TransientErrorStaysDetectable(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{}})
	p := NewPlanner(mock, DefaultConfig())

	_, err := p.Plan(context.Background(), PlanInput{Topic: "t", Goal: "g", Level: level.Beginner})
	if !llm.IsTransient(err) {
		t.Fatalf("expected transient error through the wrapper, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("planner must not retry, got %d calls", mock.CallCount())
	}
}

func TestPlanner_TruncatesToMaxSteps(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: photosynthesisPlanJSON()})
	p := NewPlanner(mock, Config{MaxSteps: 2})

	plan, err := p.Plan(context.Background(), PlanInput{Topic: "t", Goal: "g", Level: level.Beginner})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(plan.Steps))
	}
}

func TestPlanner_WriteStep(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"content":"Plants catch light with chlorophyll."}`),
	})
	p := NewPlanner(mock, DefaultConfig())

	steps := []Step{{Index: 0, Title: "What Light Does"}, {Index: 1, Title: "Splitting Water", Objective: "Describe photolysis."}}
	content, err := p.WriteStep(context.Background(), StepInput{
		Topic: "Photosynthesis",
		Goal:  "understand",
		Step:  steps[1],
		Prior: steps[:1],
		Level: level.Intermediate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "Plants catch light with chlorophyll." {
		t.Errorf("content = %q", content)
	}

	req := mock.Calls[0]
	if req.Schema.Name != "step-content" {
		t.Errorf("schema = %q", req.Schema.Name)
	}
	if req.Temperature != 0.5 {
		t.Errorf("temperature = %v, want intermediate temperature", req.Temperature)
	}
	msg := req.Messages[0].Content
	if !strings.Contains(msg, "1. What Light Does") || !strings.Contains(msg, "Current step 2: Splitting Water") {
		t.Errorf("prompt missing step context:\n%s", msg)
	}
}

func TestPlanner_WriteStepEmpty(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"content":"  "}`)})
	p := NewPlanner(mock, DefaultConfig())

	_, err := p.WriteStep(context.Background(), StepInput{Step: Step{Index: 3}, Level: level.Beginner})
	var cge *ContentGenerationError
	if !errors.As(err, &cge) || cge.StepIndex != 3 {
		t.Fatalf("err = %v, want ContentGenerationError for step 3", err)
	}
}

func TestPlanner_Answer(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"answer":" Chlorophyll reflects green light, so leaves look green. "}`),
	})
	p := NewPlanner(mock, DefaultConfig())

	answer, err := p.Answer(context.Background(), QuestionInput{
		Topic:        "Photosynthesis",
		Goal:         "understand light-dependent reactions",
		Step:         Step{Index: 0, Title: "What Light Does", Objective: "Explain how chlorophyll absorbs light."},
		Content:      "Chlorophyll absorbs red and blue light.",
		SourceDigest: "Chloroplasts contain thylakoid membranes.",
		History: []Exchange{
			{Role: "learner", Text: "Is chlorophyll a protein?"},
			{Role: "tutor", Text: "No, it is a pigment."},
		},
		Question: "  Why are leaves green?  ",
		Level:    level.Expert,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Chlorophyll reflects green light, so leaves look green." {
		t.Errorf("answer = %q", answer)
	}

	req := mock.Calls[0]
	if req.Schema.Name != "tutor-answer" {
		t.Errorf("schema = %q", req.Schema.Name)
	}
	if req.Temperature != 0.3 {
		t.Errorf("temperature = %v, want expert temperature", req.Temperature)
	}
	if mock.Purposes[0] != llm.PurposeTutorAnswer {
		t.Errorf("purpose = %q", mock.Purposes[0])
	}

	msg := req.Messages[0].Content
	for _, want := range []string{
		"Learner knowledge level: expert.",
		"Current step 1: What Light Does",
		"Chlorophyll absorbs red and blue light.",
		"Chloroplasts contain thylakoid membranes.",
		"tutor: No, it is a pigment.",
		"Learner question: Why are leaves green?",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q:\n%s", want, msg)
		}
	}
}

func TestPlanner_AnswerErrors(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		mock := llm.NewMockProvider()
		_, err := NewPlanner(mock, DefaultConfig()).Answer(context.Background(), QuestionInput{Question: " ", Level: level.Beginner})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
		if mock.CallCount() != 0 {
			t.Errorf("expected no generator calls, got %d", mock.CallCount())
		}
	})

	tests := []struct {
		name string
		resp llm.MockResponse
	}{
		{"empty answer", llm.MockResponse{Content: json.RawMessage(`{"answer":""}`)}},
		{"unparseable", llm.MockResponse{Content: json.RawMessage(`nope`)}},
		{"provider failure", llm.MockResponse{Err: &llm.ErrProviderUnavailable{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(llm.NewMockProvider(tt.resp), DefaultConfig())
			_, err := p.Answer(context.Background(), QuestionInput{
				Step: Step{Index: 2}, Question: "What is NADPH?", Level: level.Beginner,
			})
			var age *AnswerGenerationError
			if !errors.As(err, &age) || age.StepIndex != 2 {
				t.Fatalf("err = %v, want AnswerGenerationError for step 2", err)
			}
		})
	}
}
