package session

import "fmt"

// Config holds session policy.
type Config struct {
	// PassThreshold is the fraction of mini-quiz questions that must be
	// answered correctly to master a step. Must be in (0, 1].
	PassThreshold float64 `yaml:"pass_threshold"`

	// RemediationLimit is the number of failed mini-quizzes after which a
	// step is marked Remediated and the session moves on. Must be >= 1.
	RemediationLimit int `yaml:"remediation_limit"`

	// InstantFeedback generates feedback for every miss during grading.
	// When false, feedback is generated on first request.
	InstantFeedback bool `yaml:"instant_feedback"`

	// QuestionHistory is how many earlier question and answer turns are
	// passed along when the learner asks a question. Zero sends none.
	QuestionHistory int `yaml:"question_history"`
}

// DefaultConfig returns the default session policy.
func DefaultConfig() Config {
	return Config{
		PassThreshold:    1.0,
		RemediationLimit: 2,
		InstantFeedback:  true,
		QuestionHistory:  6,
	}
}

// Validate checks the policy values.
func (c Config) Validate() error {
	if c.PassThreshold <= 0 || c.PassThreshold > 1 {
		return fmt.Errorf("pass threshold %v must be in (0, 1]", c.PassThreshold)
	}
	if c.RemediationLimit < 1 {
		return fmt.Errorf("remediation limit %d must be at least 1", c.RemediationLimit)
	}
	if c.QuestionHistory < 0 {
		return fmt.Errorf("question history %d must not be negative", c.QuestionHistory)
	}
	return nil
}
