package cmd

import (
	"github.com/perpetuallyhorni/quakefilter/pkg/extract"
	"github.com/perpetuallyhorni/quakefilter/tools/quakefilter/internal/cli"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <raw-folder> <save-folder>",
	Short: "Flatten raw tweet JSON lines into filter input records.",
	Long: `Flatten raw tweet JSON lines into filter input records.

Every file of <raw-folder> holds one raw tweet per line. Each tweet is flattened into a
record with user, place, coordinate, image, retweet (rt_*) and quote (qt_*) fields and
written as JSON lines to a file of the same name in <save-folder>.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := "extract"
		console.AddTask(taskID, "Listing raw files...", cli.OpFilter)
		results, err := extract.ExtractFolder(cmd.Context(), args[0], args[1], fileLogger, console.Progress(taskID))
		console.RemoveTask(taskID)
		console.StopRenderer()

		records, skipped := 0, 0
		for _, res := range results {
			records += res.Records
			skipped += res.Skipped
			console.Success("%s: %d records, %d lines skipped", res.File, res.Records, res.Skipped)
		}
		if err != nil {
			return err
		}
		console.Info("Extracted %d records from %d files into %s (%d lines skipped)", records, len(results), args[1], skipped)
		return nil
	},
}
