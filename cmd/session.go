package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/quiz"
	"github.com/abhisek/tutorly/internal/session"
	"github.com/abhisek/tutorly/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Plan a lesson and start a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		goal, _ := cmd.Flags().GetString("goal")
		lvlFlag, _ := cmd.Flags().GetString("level")
		learner, _ := cmd.Flags().GetString("learner")
		pdfPath, _ := cmd.Flags().GetString("pdf")
		videoURL, _ := cmd.Flags().GetString("video")
		web, _ := cmd.Flags().GetBool("web")

		var lvl level.Level
		if lvlFlag != "" {
			parsed, err := level.Parse(lvlFlag)
			if err != nil {
				return err
			}
			lvl = parsed
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		var digest string
		switch {
		case pdfPath != "":
			fmt.Println("Reading", pdfPath, "...")
			digest, err = a.sources.FromPDFFile(ctx, pdfPath)
		case videoURL != "":
			fmt.Println("Fetching transcript ...")
			digest, err = a.sources.FromVideo(ctx, videoURL)
		}
		if err != nil {
			return fmt.Errorf("ingest source: %w", err)
		}

		fmt.Println("Planning your lesson ...")
		s, err := a.manager.Start(ctx, session.StartInput{
			LearnerID:    learner,
			Topic:        topic,
			Goal:         goal,
			Level:        lvl,
			SourceDigest: digest,
			WebSearch:    web,
		})
		if err != nil {
			return err
		}

		printSummary(s.Summary())
		fmt.Println()
		fmt.Println("Run `tutorly content` to begin the first step.")
		return nil
	},
}

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Show the current step's explanation",
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		view, err := s.StepContent(cmd.Context())
		if err != nil {
			return err
		}
		printStep(view, len(s.Steps()))
		return nil
	}),
}

var stepCmd = &cobra.Command{
	Use:   "step <number>",
	Short: "Revisit an earlier step",
	Args:  cobra.ExactArgs(1),
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		var n int
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
			return fmt.Errorf("invalid step number %q: %w", args[0], err)
		}
		view, err := s.RevisitStep(n - 1)
		if err != nil {
			return err
		}
		printStep(view, len(s.Steps()))
		return nil
	}),
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Take the current step's mini-quiz",
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		regenerate, _ := cmd.Flags().GetBool("regenerate")
		q, err := s.MiniQuiz(cmd.Context(), regenerate)
		if err != nil {
			return err
		}
		printQuiz(q)
		fmt.Println()
		fmt.Println("Answer with `tutorly answer <answer> ...`, one argument per question.")
		return nil
	}),
}

var answerCmd = &cobra.Command{
	Use:   "answer <answer>...",
	Short: "Submit answers to the mini-quiz",
	Args:  cobra.MinimumNArgs(1),
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		ctx := cmd.Context()
		q, err := s.MiniQuiz(ctx, false)
		if err != nil {
			return err
		}
		res, err := s.SubmitMiniQuiz(ctx, quiz.AnswersByPosition(q, args))
		if err != nil {
			return err
		}

		printAttempts(res.Attempts)
		fmt.Printf("\nScore: %d/%d\n", res.Correct, res.Total)
		switch {
		case res.Passed:
			fmt.Println("Step mastered.")
		case res.Status == session.StatusRemediated:
			fmt.Println("Moving on. This step is marked for review.")
		default:
			fmt.Printf("Not yet. Review the step and try again (attempt %d).\n", res.Remediations+1)
		}
		printProgress(res.Progress)
		printNext(res.Phase)
		return nil
	}),
}

var finalCmd = &cobra.Command{
	Use:   "final",
	Short: "Take the comprehensive final quiz",
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		q, err := s.FinalQuiz(cmd.Context())
		if err != nil {
			return err
		}
		printQuiz(q)
		fmt.Println()
		fmt.Println("Answer with `tutorly final-answer <answer> ...`, one argument per question.")
		return nil
	}),
}

var finalAnswerCmd = &cobra.Command{
	Use:   "final-answer <answer>...",
	Short: "Submit answers to the final quiz",
	Args:  cobra.MinimumNArgs(1),
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		ctx := cmd.Context()
		q, err := s.FinalQuiz(ctx)
		if err != nil {
			return err
		}
		res, err := s.SubmitFinalQuiz(ctx, quiz.AnswersByPosition(q, args))
		if err != nil {
			return err
		}

		printAttempts(res.Attempts)
		fmt.Printf("\nFinal score: %d/%d\n", res.Correct, res.Total)
		printProgress(res.Progress)
		fmt.Println("Session complete.")
		return nil
	}),
}

var levelCmd = &cobra.Command{
	Use:   "level <beginner|intermediate|expert>",
	Short: "Change the session's knowledge level",
	Args:  cobra.ExactArgs(1),
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		lvl, err := level.Parse(args[0])
		if err != nil {
			return err
		}
		if err := a.manager.SetLevel(cmd.Context(), s.ID(), lvl); err != nil {
			return err
		}
		fmt.Printf("Level set to %s. New steps will be explained at this level.\n", lvl)
		return nil
	}),
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show progress toward the learning goal",
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		printSummary(s.Summary())
		return nil
	}),
}

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "List every quiz attempt in the session",
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		attempts := s.Attempts()
		if len(attempts) == 0 {
			fmt.Println("No attempts yet.")
			return nil
		}
		printAttempts(attempts)
		return nil
	}),
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <attempt-id>",
	Short: "Explain why an answer was wrong",
	Args:  cobra.ExactArgs(1),
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		fb, err := s.Feedback(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if fb == "" {
			fmt.Println("That answer was correct.")
			return nil
		}
		fmt.Println(fb)
		return nil
	}),
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the tutor a question about the current step",
	Args:  cobra.MinimumNArgs(1),
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		answer, err := s.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}),
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the session's conversation and transitions",
	RunE: sessionCommand(func(cmd *cobra.Command, args []string, a *app, s *session.Session) error {
		transitions, _ := cmd.Flags().GetBool("transitions")
		if transitions {
			records, err := a.store.EventRepo().QueryTransitions(cmd.Context(), s.ID(), store.QueryOpts{})
			if err != nil {
				return fmt.Errorf("query transitions: %w", err)
			}
			fmt.Printf("%-5s  %-19s  %-22s  %-20s  %-20s  %5s  %s\n",
				"Seq", "Timestamp", "Op", "From", "To", "Step", "Progress")
			fmt.Println(strings.Repeat("─", 110))
			for _, r := range records {
				fmt.Printf("%-5d  %-19s  %-22s  %-20s  %-20s  %5d  %.0f%%\n",
					r.Sequence,
					r.Timestamp.Local().Format("2006-01-02 15:04:05"),
					r.Op, r.From, r.To, r.StepIndex+1, r.Progress*100)
			}
			return nil
		}

		for _, t := range s.Conversation() {
			fmt.Printf("[%s] %s (%s)\n", t.At.Local().Format("15:04:05"), t.Role, t.Kind)
			fmt.Println(t.Text)
			fmt.Println()
		}
		return nil
	}),
}

func printSummary(sum session.Summary) {
	fmt.Printf("Session:  %s\n", sum.ID)
	fmt.Printf("Topic:    %s\n", sum.Topic)
	fmt.Printf("Goal:     %s\n", sum.Goal)
	fmt.Printf("Level:    %s\n", sum.Level)
	fmt.Printf("Phase:    %s\n", sum.Phase)
	fmt.Println()
	for _, st := range sum.Steps {
		marker := " "
		if st.Index == sum.Current && sum.Phase != session.PhaseComplete {
			marker = "▶"
		}
		fmt.Printf("%s %d. %-40s  %s\n", marker, st.Index+1, st.Title, st.Status)
	}
	fmt.Println()
	printProgress(sum.Progress)
	if sum.Final != nil {
		fmt.Printf("Final quiz: %d/%d\n", sum.Final.Correct, sum.Final.Total)
	}
}

func printStep(v session.StepView, total int) {
	sep := strings.Repeat("─", 60)
	fmt.Printf("Step %d of %d: %s\n", v.Index+1, total, v.Title)
	fmt.Println(v.Objective)
	fmt.Println(sep)
	fmt.Println(v.Content)
	fmt.Println(sep)
}

func printQuiz(q *quiz.Quiz) {
	for i, qq := range q.Questions {
		fmt.Printf("%d. %s\n", i+1, qq.Prompt)
		for j, opt := range qq.Options {
			fmt.Printf("   %c) %s\n", 'A'+j, opt)
		}
		if qq.Kind == quiz.KindMultiSelect {
			fmt.Println("   (select all that apply, comma separated)")
		}
	}
}

func printAttempts(attempts []quiz.Attempt) {
	for _, at := range attempts {
		mark := "✓"
		if !at.Correct {
			mark = "✗"
		}
		fmt.Printf("%s %-36s  %s\n", mark, at.ID, at.Submitted)
		if !at.Correct && at.FeedbackGenerated {
			fmt.Printf("  %s\n", at.Feedback)
		}
	}
}

func printProgress(p session.GoalProgress) {
	fmt.Printf("Progress: %d/%d steps (%.0f%%)", p.Mastered+p.Remediated, p.Total, p.Fraction*100)
	if p.Remediated > 0 {
		fmt.Printf(", %d marked for review", p.Remediated)
	}
	fmt.Println()
}

func printNext(phase session.Phase) {
	switch phase {
	case session.PhaseInStep:
		fmt.Println("Run `tutorly content` for the next step.")
	case session.PhaseRemediatingStep:
		fmt.Println("Run `tutorly content` to review, then `tutorly quiz` to retry.")
	case session.PhaseAwaitingFinalQuiz:
		fmt.Println("All steps done. Run `tutorly final` for the final quiz.")
	}
}

func init() {
	startCmd.Flags().StringP("topic", "t", "", "Subject to learn")
	startCmd.Flags().StringP("goal", "g", "", "What you want to be able to do")
	startCmd.Flags().StringP("level", "l", "", "Knowledge level: beginner, intermediate or expert")
	startCmd.Flags().String("learner", session.DefaultLearnerID, "Learner identity")
	startCmd.Flags().String("pdf", "", "Ground the lesson on a PDF document")
	startCmd.Flags().String("video", "", "Ground the lesson on a YouTube video transcript")
	startCmd.Flags().Bool("web", false, "Ground the plan with web search snippets")
	_ = startCmd.MarkFlagRequired("topic")
	_ = startCmd.MarkFlagRequired("goal")
	startCmd.MarkFlagsMutuallyExclusive("pdf", "video")

	quizCmd.Flags().Bool("regenerate", false, "Ask for fresh questions")
	historyCmd.Flags().Bool("transitions", false, "Show recorded state transitions instead of the conversation")

	for _, c := range []*cobra.Command{
		contentCmd, stepCmd, quizCmd, answerCmd, finalCmd, finalAnswerCmd,
		levelCmd, progressCmd, attemptsCmd, feedbackCmd, askCmd, historyCmd,
	} {
		c.Flags().StringP("session", "s", "", "Session ID (default: most recent)")
	}
}
