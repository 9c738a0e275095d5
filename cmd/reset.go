package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset learner data",
	Long:  "Deletes the database: every session, recorded knowledge level and LLM event.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dbPath, err := resolveDBPath(cmd, cfg)
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			fmt.Printf("This deletes all learner data in %s.\nRe-run with --yes to confirm.\n", dbPath)
			return nil
		}

		removed := false
		for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
			err := os.Remove(p)
			switch {
			case err == nil:
				removed = true
			case !errors.Is(err, fs.ErrNotExist):
				return fmt.Errorf("remove %s: %w", p, err)
			}
		}
		if !removed {
			fmt.Println("Nothing to reset.")
			return nil
		}
		fmt.Println("Learner data deleted.")
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "Confirm deletion")
}
