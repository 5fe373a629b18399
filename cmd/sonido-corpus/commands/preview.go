package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-corpus/corpus"
	"github.com/RyanBlaney/sonido-corpus/export"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

var (
	previewCount int
	previewBatch uint64
	previewOut   string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render examples to WAV files with timeline logs",
	Long: `Render the first examples of a batch and write each as test<i>.wav
plus test<i>.txt listing its notes and noise layers. The examples match the
ones "generate" puts into the same batch index.

Examples:
  sonido-corpus preview --count 3 --out trash
  sonido-corpus preview --batch 12 --count 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if previewCount <= 0 || previewCount > cfg.Batch.Size {
			return fmt.Errorf("--count must be in [1, %d]", cfg.Batch.Size)
		}

		set, catalog, err := loadInputs(context.Background(), cfg)
		if err != nil {
			return err
		}

		logger := logging.GetGlobalLogger()
		gen, err := corpus.NewGenerator(cfg, set, catalog, logger)
		if err != nil {
			return err
		}

		for i := range previewCount {
			ex, err := gen.GenerateExample(gen.ExampleRand(previewBatch, i))
			if err != nil {
				return err
			}
			wavPath, logPath, err := export.DumpExample(previewOut, fmt.Sprintf("test%d", i), ex, cfg)
			if err != nil {
				return err
			}
			logger.Info("Example written", logging.Fields{
				"wav":      wavPath,
				"timeline": logPath,
				"notes":    len(ex.Timeline.Notes),
				"labelled": ex.Render.LabelledNotes,
			})
		}
		return nil
	},
}

func init() {
	previewCmd.Flags().IntVarP(&previewCount, "count", "n", 1, "number of examples to render")
	previewCmd.Flags().Uint64Var(&previewBatch, "batch", 0, "batch index the examples are drawn from")
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "trash", "output directory")
}
