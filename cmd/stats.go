package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutorly/internal/session"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		repo := s.SnapshotRepo()
		infos, err := repo.ListSessions(ctx, 0)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(infos) == 0 {
			fmt.Println("No sessions yet.")
			return nil
		}

		fmt.Printf("%-24s  %-12s  %-20s  %9s  %6s\n", "Topic", "Level", "Phase", "Progress", "Final")
		fmt.Println(strings.Repeat("─", 80))

		var completed, mastered, remediated, steps, finalCorrect, finalTotal int
		for _, info := range infos {
			data, err := repo.LoadSnapshot(ctx, info.SessionID)
			if err != nil {
				return fmt.Errorf("load session %s: %w", info.SessionID, err)
			}
			sess, err := session.Restore(data, session.Deps{}, cfg.Session)
			if err != nil {
				return err
			}
			sum := sess.Summary()

			final := "-"
			if sum.Final != nil {
				final = fmt.Sprintf("%d/%d", sum.Final.Correct, sum.Final.Total)
				finalCorrect += sum.Final.Correct
				finalTotal += sum.Final.Total
			}
			if sum.Phase == session.PhaseComplete {
				completed++
			}
			mastered += sum.Progress.Mastered
			remediated += sum.Progress.Remediated
			steps += sum.Progress.Total

			fmt.Printf("%-24s  %-12s  %-20s  %8.0f%%  %6s\n",
				truncate(sum.Topic, 24), sum.Level, sum.Phase, sum.Progress.Fraction*100, final)
		}

		fmt.Println(strings.Repeat("─", 80))
		fmt.Printf("Sessions:   %d (%d complete)\n", len(infos), completed)
		fmt.Printf("Steps:      %d mastered, %d marked for review, %d total\n", mastered, remediated, steps)
		if finalTotal > 0 {
			fmt.Printf("Final quiz: %d/%d correct (%.0f%%)\n",
				finalCorrect, finalTotal, float64(finalCorrect)/float64(finalTotal)*100)
		}
		return nil
	},
}
