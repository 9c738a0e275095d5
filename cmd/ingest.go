package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Distill a document or video into a source digest",
}

var ingestPDFCmd = &cobra.Command{
	Use:   "pdf <path>",
	Short: "Digest a PDF document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		digest, err := a.sources.FromPDFFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(digest)
		return nil
	},
}

var ingestVideoCmd = &cobra.Command{
	Use:   "video <url>",
	Short: "Digest a YouTube video transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		digest, err := a.sources.FromVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(digest)
		return nil
	},
}

func init() {
	ingestCmd.AddCommand(ingestPDFCmd)
	ingestCmd.AddCommand(ingestVideoCmd)
}
