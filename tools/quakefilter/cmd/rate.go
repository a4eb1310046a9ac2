package cmd

import (
	"errors"
	"strings"

	"github.com/perpetuallyhorni/quakefilter/pkg/mmi"
	"github.com/perpetuallyhorni/quakefilter/tools/quakefilter/internal/cli"
	"github.com/spf13/cobra"
)

var rateCmd = &cobra.Command{
	Use:   "rate <text|image> <file>",
	Short: "Rate the records of a filtered file with a multimodal model.",
	Long: `Rate the records of a filtered file with a multimodal model.

'text' asks the model for a Modified Mercalli Intensity estimate of each record's text,
given the epicenter. 'image' downloads each unique image of the record and asks for an
estimate from the picture. Results are written as JSON lines to <stem>_mmi_<model>.json
next to the input.

API keys are read from OPENAI_API_KEY and ANTHROPIC_API_KEY, or from the configured env file.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		modality, err := mmi.ParseModality(args[0])
		if err != nil {
			return err
		}
		modelName, _ := cmd.Flags().GetString("model")
		model, err := mmi.ParseModel(modelName)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("epicenter") {
			cfg.Models.Epicenter, _ = cmd.Flags().GetString("epicenter")
		}
		if cmd.Flags().Changed("concurrency") {
			if val, _ := cmd.Flags().GetInt("concurrency"); val > 0 {
				cfg.Models.Concurrency = val
			}
		}
		if modality == mmi.Text && strings.TrimSpace(cfg.Models.Epicenter) == "" {
			return errors.New("text rating needs an epicenter: set models.epicenter or pass --epicenter")
		}

		caller := mmi.NewCaller(cfg.Models, apiKeys())
		rater := mmi.NewRater(caller, cfg.Models.Epicenter, cfg.Models.Concurrency, cfg.ImageCacheDir, fileLogger)

		taskID := string(model)
		console.AddTask(taskID, "Loading records...", cli.OpRate)
		out, results, err := rater.RateFile(cmd.Context(), args[1], model, modality, console.Progress(taskID))
		console.RemoveTask(taskID)
		console.StopRenderer()
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			if res.Error != "" {
				failed++
			}
		}
		if failed > 0 {
			console.Warn("%d of %d ratings failed, see the log for details", failed, len(results))
		}
		console.Success("Wrote %d ratings to %s", len(results)-failed, out)
		return nil
	},
}

func init() {
	rateCmd.Flags().StringP("model", "m", string(mmi.GPT), `Model to rate with ("gpt", "claude")`)
	rateCmd.Flags().String("epicenter", "", "Epicenter named in the text prompt (overrides config)")
	rateCmd.Flags().Int("concurrency", 0, "Records rated in parallel (overrides config)")
}
