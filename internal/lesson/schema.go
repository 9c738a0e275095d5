package lesson

import "github.com/abhisek/tutorly/internal/llm"

// PlanSchema defines the JSON schema for lesson plan generation.
var PlanSchema = &llm.Schema{
	Name:        "lesson-plan",
	Description: "An ordered curriculum of lesson steps",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"steps": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title": map[string]any{
							"type":        "string",
							"description": "Short title for the step (3-8 words)",
						},
						"objective": map[string]any{
							"type":        "string",
							"description": "One sentence: what the learner can do after this step",
						},
					},
					"required":             []any{"title", "objective"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"steps"},
		"additionalProperties": false,
	},
}

// StepContentSchema defines the JSON schema for step content generation.
var StepContentSchema = &llm.Schema{
	Name:        "step-content",
	Description: "The explanatory content of one lesson step",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "Explanation of the step in plain text, with one short example",
			},
		},
		"required":             []any{"content"},
		"additionalProperties": false,
	},
}

// TutorAnswerSchema defines the JSON schema for answers to learner questions.
var TutorAnswerSchema = &llm.Schema{
	Name:        "tutor-answer",
	Description: "The tutor's reply to a learner question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{
				"type":        "string",
				"description": "A direct answer in plain text",
			},
		},
		"required":             []any{"answer"},
		"additionalProperties": false,
	},
}
