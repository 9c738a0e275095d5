package quiz

// MaxMiniQuestions is the most questions a single-step quiz may ask.
const MaxMiniQuestions = 3

// Config holds quiz generation settings.
type Config struct {
	// MiniMaxQuestions caps the size of a single-step quiz. Values above
	// MaxMiniQuestions are clamped.
	MiniMaxQuestions int `yaml:"mini_max_questions"`

	GenerateMaxTokens int     `yaml:"generate_max_tokens"`
	JudgeMaxTokens    int     `yaml:"judge_max_tokens"`
	FeedbackMaxTokens int     `yaml:"feedback_max_tokens"`
	JudgeTemperature  float64 `yaml:"judge_temperature"`
}

// DefaultConfig returns sensible defaults for quiz generation.
func DefaultConfig() Config {
	return Config{
		MiniMaxQuestions:  MaxMiniQuestions,
		GenerateMaxTokens: 2048,
		JudgeMaxTokens:    256,
		FeedbackMaxTokens: 384,
		JudgeTemperature:  0.1,
	}
}
