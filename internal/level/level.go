// Package level maps a learner's knowledge level to the generation
// parameters used by every content-producing call.
package level

import (
	"errors"
	"fmt"
	"strings"
)

// Level is a learner's knowledge level for one topic.
type Level string

const (
	Beginner     Level = "beginner"
	Intermediate Level = "intermediate"
	Expert       Level = "expert"
)

// All lists the levels from least to most advanced.
var All = []Level{Beginner, Intermediate, Expert}

// ErrUnknownLevel is returned for a value outside the three levels.
var ErrUnknownLevel = errors.New("unknown knowledge level")

// Parse converts user input into a Level. Matching ignores case and
// surrounding whitespace.
func Parse(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return l, nil
}

// Valid reports whether l is one of the three levels.
func (l Level) Valid() bool {
	switch l {
	case Beginner, Intermediate, Expert:
		return true
	}
	return false
}

func (l Level) String() string { return string(l) }

// Parameters is the bundle handed to lesson and quiz generation.
type Parameters struct {
	Level Level

	// Vocabulary describes how technical the wording may be.
	Vocabulary string

	// Prerequisites describes what the learner can be assumed to know.
	Prerequisites string

	// AnalogyDensity describes how often to reach for analogies.
	AnalogyDensity string

	// FinalQuestionsPerStep is how many final-quiz questions cover each step.
	FinalQuestionsPerStep int

	// Temperature is the sampling temperature for content generation.
	Temperature float64
}

var parameters = map[Level]Parameters{
	Beginner: {
		Level:                 Beginner,
		Vocabulary:            "plain everyday words; define every technical term the first time it appears",
		Prerequisites:         "assume no prior knowledge of the subject",
		AnalogyDensity:        "use a concrete everyday analogy for every new idea",
		FinalQuestionsPerStep: 1,
		Temperature:           0.7,
	},
	Intermediate: {
		Level:                 Intermediate,
		Vocabulary:            "standard terminology of the field, briefly defining uncommon terms",
		Prerequisites:         "assume familiarity with the basics and common terminology",
		AnalogyDensity:        "use analogies only where an idea is genuinely counterintuitive",
		FinalQuestionsPerStep: 1,
		Temperature:           0.5,
	},
	Expert: {
		Level:                 Expert,
		Vocabulary:            "precise technical vocabulary without simplification",
		Prerequisites:         "assume solid working knowledge; focus on nuance, edge cases and tradeoffs",
		AnalogyDensity:        "avoid analogies; prefer formal statements and examples",
		FinalQuestionsPerStep: 2,
		Temperature:           0.3,
	},
}

// ParametersFor returns the generation parameters for l. It is a pure
// function of the level.
func ParametersFor(l Level) (Parameters, error) {
	p, ok := parameters[l]
	if !ok {
		return Parameters{}, fmt.Errorf("%w: %q", ErrUnknownLevel, string(l))
	}
	return p, nil
}

// Directive renders the parameters as prompt instructions.
func (p Parameters) Directive() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Learner knowledge level: %s.\n", p.Level)
	fmt.Fprintf(&b, "- Vocabulary: %s.\n", p.Vocabulary)
	fmt.Fprintf(&b, "- Prerequisites: %s.\n", p.Prerequisites)
	fmt.Fprintf(&b, "- Analogies: %s.\n", p.AnalogyDensity)
	return b.String()
}
