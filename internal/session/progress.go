package session

// GoalProgress summarizes how far the learner is through the plan.
type GoalProgress struct {
	Mastered   int     `json:"mastered"`
	Remediated int     `json:"remediated"`
	Total      int     `json:"total"`
	Fraction   float64 `json:"fraction"`
}

// Completed returns the number of steps that count toward the goal.
func (p GoalProgress) Completed() int { return p.Mastered + p.Remediated }

// Progress computes goal progress from step states. Remediated steps count
// fully toward the fraction but are reported separately.
func Progress(steps []StepState) GoalProgress {
	p := GoalProgress{Total: len(steps)}
	for _, st := range steps {
		switch st.Status {
		case StatusMastered:
			p.Mastered++
		case StatusRemediated:
			p.Remediated++
		}
	}
	if p.Total > 0 {
		p.Fraction = float64(p.Completed()) / float64(p.Total)
	}
	return p
}
