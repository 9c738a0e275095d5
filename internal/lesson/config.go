package lesson

// Config holds lesson generation settings.
type Config struct {
	// MaxSteps caps the number of steps kept from a generated plan.
	MaxSteps int `yaml:"max_steps"`

	PlanMaxTokens   int `yaml:"plan_max_tokens"`
	StepMaxTokens   int `yaml:"step_max_tokens"`
	AnswerMaxTokens int `yaml:"answer_max_tokens"`
}

// DefaultConfig returns sensible defaults for lesson generation.
func DefaultConfig() Config {
	return Config{
		MaxSteps:        8,
		PlanMaxTokens:   1024,
		StepMaxTokens:   1536,
		AnswerMaxTokens: 768,
	}
}
