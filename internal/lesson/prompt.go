package lesson

import (
	"fmt"
	"strings"

	"github.com/abhisek/tutorly/internal/level"
)

const planSystemPrompt = `You are an expert tutor who designs short, focused curricula. You break a topic into an ordered sequence of steps that leads a learner to their stated goal.`

func buildPlanUserMessage(input PlanInput, params level.Parameters, maxSteps int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Topic: %s\n", input.Topic))
	b.WriteString(fmt.Sprintf("Learner goal: %s\n\n", input.Goal))
	b.WriteString(params.Directive())

	if input.SourceDigest != "" {
		b.WriteString("\nSource material (authoritative; prefer it over general knowledge where they differ):\n")
		b.WriteString(input.SourceDigest)
		b.WriteString("\n")
	}

	if len(input.Grounding) > 0 {
		b.WriteString("\nWeb references (secondary; use only where consistent with the source material):\n")
		for _, g := range input.Grounding {
			b.WriteString(fmt.Sprintf("- %s (%s)\n", g.Snippet, g.URL))
		}
	}

	b.WriteString(fmt.Sprintf(`
Instructions:
1. Produce between 1 and %d steps, ordered so each step depends only on concepts introduced in earlier steps.
2. Every step must move the learner toward the goal. Do not pad with unrelated material.
3. Give each step a short title and a one-sentence learning objective.
4. Pitch the curriculum at the learner's knowledge level described above.`, maxSteps))

	return b.String()
}

const stepSystemPrompt = `You are a patient, encouraging tutor. You explain one lesson step at a time, clearly and accurately, building on what the learner has already covered.`

func buildStepUserMessage(input StepInput, params level.Parameters) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Topic: %s\n", input.Topic))
	b.WriteString(fmt.Sprintf("Learner goal: %s\n\n", input.Goal))
	b.WriteString(params.Directive())

	if len(input.Prior) > 0 {
		b.WriteString("\nAlready covered:\n")
		for _, s := range input.Prior {
			b.WriteString(fmt.Sprintf("%d. %s\n", s.Index+1, s.Title))
		}
	}

	b.WriteString(fmt.Sprintf("\nCurrent step %d: %s\n", input.Step.Index+1, input.Step.Title))
	b.WriteString(fmt.Sprintf("Objective: %s\n", input.Step.Objective))

	if input.SourceDigest != "" {
		b.WriteString("\nSource material (authoritative):\n")
		b.WriteString(input.SourceDigest)
		b.WriteString("\n")
	}

	b.WriteString(`
Instructions:
1. Explain only this step's objective in 2-4 short paragraphs.
2. Include one concrete example.
3. Do not introduce concepts from later steps.
4. Use plain text. No markdown headings.`)

	return b.String()
}

const answerSystemPrompt = `You are a patient tutor answering a learner's question in the middle of a lesson. You stay on the current step and answer what was asked.`

func buildAnswerUserMessage(input QuestionInput, params level.Parameters) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Topic: %s\n", input.Topic))
	if input.Goal != "" {
		b.WriteString(fmt.Sprintf("Learner goal: %s\n", input.Goal))
	}
	b.WriteString("\n")
	b.WriteString(params.Directive())

	b.WriteString(fmt.Sprintf("\nCurrent step %d: %s\n", input.Step.Index+1, input.Step.Title))
	b.WriteString(fmt.Sprintf("Objective: %s\n", input.Step.Objective))

	if input.Content != "" {
		b.WriteString("\nWhat the learner was shown:\n")
		b.WriteString(input.Content)
		b.WriteString("\n")
	}

	if input.SourceDigest != "" {
		b.WriteString("\nSource material (authoritative):\n")
		b.WriteString(input.SourceDigest)
		b.WriteString("\n")
	}

	if len(input.History) > 0 {
		b.WriteString("\nEarlier in this conversation:\n")
		for _, e := range input.History {
			b.WriteString(fmt.Sprintf("%s: %s\n", e.Role, e.Text))
		}
	}

	b.WriteString(fmt.Sprintf("\nLearner question: %s\n", input.Question))

	b.WriteString(`
Instructions:
1. Answer the question directly in 1-3 short paragraphs.
2. Prefer the source material and the step explanation over general knowledge.
3. If the question belongs to a later step, give a brief answer and say it will be covered later.
4. Use plain text. No markdown headings.`)

	return b.String()
}
