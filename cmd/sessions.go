package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and maintain stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		infos, err := s.SnapshotRepo().ListSessions(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(infos) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		fmt.Printf("%-36s  %-19s  %6s  %9s\n", "Session", "Updated", "Seq", "Snapshots")
		fmt.Println(strings.Repeat("─", 76))
		for _, info := range infos {
			fmt.Printf("%-36s  %-19s  %6d  %9d\n",
				info.SessionID,
				info.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
				info.Sequence,
				info.Snapshots,
			)
		}
		return nil
	},
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old snapshots, keeping the most recent per session",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")
		if keep < 1 {
			return fmt.Errorf("--keep must be at least 1, got %d", keep)
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
		pruned := 0
		for _, info := range infos {
			if info.Snapshots <= keep {
				continue
			}
			if err := repo.Prune(ctx, info.SessionID, keep); err != nil {
				return err
			}
			pruned++
		}
		fmt.Printf("Pruned snapshots of %d session(s).\n", pruned)
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().IntP("limit", "n", 20, "Number of sessions to show")
	sessionsPruneCmd.Flags().Int("keep", 10, "Snapshots to keep per session")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsPruneCmd)
}
