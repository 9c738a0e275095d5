package quiz

import (
	"bytes"
	"text/template"

	"github.com/abhisek/tutorly/internal/lesson"
)

const generateSystemPrompt = `You are an experienced tutor who writes short, fair quizzes. Every question tests understanding of the stated material, has exactly one defensible answer key, and avoids trick wording.`

var miniTemplate = template.Must(template.New("mini").Parse(`Topic: {{.Topic}}
{{.Directive}}
Lesson step {{.StepNumber}}: {{.Step.Title}}
Objective: {{.Step.Objective}}
{{if .Content}}
Step content:
{{.Content}}
{{end}}
Instructions:
1. Write between 1 and {{.Max}} questions that test only this step's objective.
2. Prefer multiple_choice with exactly 4 options. Use multi_select only when several options are genuinely correct. Use open_ended sparingly.
3. Set "step" to {{.StepNumber}} for every question.
4. For multiple_choice, "answer" must be copied exactly from "options".`))

type miniData struct {
	MiniInput
	Directive  string
	StepNumber int
	Max        int
}

func buildMiniMessage(input MiniInput, directive string, max int) (string, error) {
	var buf bytes.Buffer
	err := miniTemplate.Execute(&buf, miniData{
		MiniInput:  input,
		Directive:  directive,
		StepNumber: input.Step.Index + 1,
		Max:        max,
	})
	return buf.String(), err
}

var finalTemplate = template.Must(template.New("final").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Topic: {{.Topic}}
Learner goal: {{.Goal}}
{{.Directive}}
Lesson steps:
{{range .Steps}}{{inc .Index}}. {{.Title}}: {{.Objective}}
{{end}}
Instructions:
1. Write a comprehensive quiz with exactly {{.PerStep}} question(s) for each step above.
2. Set "step" to the number of the step each question covers.
3. Shape difficulty and phrasing to the learner's knowledge level.
4. Mix multiple_choice (exactly 4 options), multi_select and at most one open_ended question.
5. For multiple_choice, "answer" must be copied exactly from "options".`))

type finalData struct {
	FinalInput
	Directive string
	PerStep   int
}

func buildFinalMessage(input FinalInput, directive string, perStep int) (string, error) {
	var buf bytes.Buffer
	err := finalTemplate.Execute(&buf, finalData{FinalInput: input, Directive: directive, PerStep: perStep})
	return buf.String(), err
}

const judgeSystemPrompt = `You grade a learner's free-text quiz answer. Judge whether it demonstrates the understanding the model answer shows; wording may differ. Be fair but do not accept answers that miss the key idea.`

var judgeTemplate = template.Must(template.New("judge").Parse(`Topic: {{.Topic}}
{{.Directive}}
Question: {{.Question.Prompt}}
Model answer: {{.Question.Answer}}
Learner's answer: {{.Submitted}}`))

type judgeData struct {
	Topic     string
	Directive string
	Question  Question
	Submitted string
}

func buildJudgeMessage(data judgeData) (string, error) {
	var buf bytes.Buffer
	err := judgeTemplate.Execute(&buf, data)
	return buf.String(), err
}

const feedbackSystemPrompt = `You are a patient tutor. A learner answered a quiz question incorrectly. Explain the specific misconception their answer suggests and the correct idea, in 1-3 sentences, without scolding.`

var feedbackTemplate = template.Must(template.New("feedback").Parse(`Topic: {{.Topic}}
{{.Directive}}
Question: {{.Question.Prompt}}
{{if .Question.Options}}Options:
{{range .Question.Options}}- {{.}}
{{end}}{{end}}Correct answer: {{.Correct}}
Learner's answer: {{if .Submitted}}{{.Submitted}}{{else}}(no answer){{end}}`))

type feedbackData struct {
	Topic     string
	Directive string
	Question  Question
	Correct   string
	Submitted string
}

func buildFeedbackMessage(data feedbackData) (string, error) {
	var buf bytes.Buffer
	err := feedbackTemplate.Execute(&buf, data)
	return buf.String(), err
}

// stepTitles is used in error messages about coverage.
func stepTitles(steps []lesson.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Title
	}
	return out
}
