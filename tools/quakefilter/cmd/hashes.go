package cmd

import (
	"github.com/spf13/cobra"
)

var hashesCmd = &cobra.Command{
	Use:   "hashes",
	Short: "Show the image hashes remembered from earlier runs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		total, err := database.CountHashes()
		if err != nil {
			return err
		}
		console.Info("%s: %s image hashes", cfg.HashStorePath, console.Bold.Sprint(total))

		counts, err := database.CountBySource()
		if err != nil {
			return err
		}
		for _, c := range counts {
			console.Info("  %-40s %d", c.Source, c.Count)
		}
		return nil
	},
}
