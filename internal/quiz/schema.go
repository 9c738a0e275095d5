package quiz

import "github.com/abhisek/tutorly/internal/llm"

var questionProperties = map[string]any{
	"prompt": map[string]any{
		"type":        "string",
		"description": "The question shown to the learner",
	},
	"kind": map[string]any{
		"type": "string",
		"enum": []any{string(KindMultipleChoice), string(KindMultiSelect), string(KindOpenEnded)},
	},
	"options": map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Exactly 4 options for multiple_choice and multi_select. Empty for open_ended.",
	},
	"answer": map[string]any{
		"type":        "string",
		"description": "multiple_choice: text of the correct option. open_ended: a model answer. multi_select: empty.",
	},
	"answers": map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "multi_select: texts of every correct option. Empty otherwise.",
	},
	"step": map[string]any{
		"type":        "integer",
		"description": "1-based number of the lesson step this question covers",
	},
}

// QuizSchema defines the JSON schema for quiz generation.
var QuizSchema = &llm.Schema{
	Name:        "quiz",
	Description: "A set of quiz questions with answer keys",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"properties":           questionProperties,
					"required":             []any{"prompt", "kind", "options", "answer", "answers", "step"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

// JudgementSchema defines the JSON schema for open-ended answer grading.
var JudgementSchema = &llm.Schema{
	Name:        "answer-judgement",
	Description: "Whether a free-text answer is correct, with feedback",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"correct": map[string]any{
				"type":        "boolean",
				"description": "True if the answer demonstrates the required understanding",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "For an incorrect answer, 1-3 sentences on the specific misconception. Empty if correct.",
			},
		},
		"required":             []any{"correct", "feedback"},
		"additionalProperties": false,
	},
}

// FeedbackSchema defines the JSON schema for feedback on a missed answer.
var FeedbackSchema = &llm.Schema{
	Name:        "answer-feedback",
	Description: "Explanation of the misconception behind an incorrect answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"feedback": map[string]any{
				"type":        "string",
				"description": "1-3 sentences naming the misconception and the correct idea",
			},
		},
		"required":             []any{"feedback"},
		"additionalProperties": false,
	},
}
