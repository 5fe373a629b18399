package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-corpus/corpus"
	"github.com/RyanBlaney/sonido-corpus/export"
	"github.com/RyanBlaney/sonido-corpus/logging"
	"github.com/RyanBlaney/sonido-corpus/pipeline"
)

var (
	genBatches int
	genStart   uint64
	genOut     string
	genSeed    uint64
	genFloat16 bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write training batches as msgpack shards",
	Long: `Generate training batches in the background and write each one to
<out>/<uuid>.msgpack. Batch i is fully determined by the seed and i, so a run
can be resumed with --start.

Examples:
  sonido-corpus generate --batches 100 --out data/train
  sonido-corpus -c corpus.toml generate --batches 10 --seed 42 --float16`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("seed") {
			cfg.Batch.Seed = genSeed
		}
		if cmd.Flags().Changed("out") {
			cfg.Export.Dir = genOut
		}
		if cmd.Flags().Changed("float16") {
			cfg.Export.Float16 = genFloat16
		}
		if genBatches <= 0 {
			return fmt.Errorf("--batches must be positive, got %d", genBatches)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		set, catalog, err := loadInputs(ctx, cfg)
		if err != nil {
			return err
		}

		logger := logging.GetGlobalLogger()
		gen, err := corpus.NewGenerator(cfg, set, catalog, logger)
		if err != nil {
			return err
		}
		gen.Seek(genStart)

		writer, err := export.NewShardWriter(cfg, logger)
		if err != nil {
			return err
		}

		p := pipeline.New(gen, logger)
		p.Start()
		defer p.Shutdown()

		frames, filters, classes := gen.Shape()
		logger.Info("Generating batches", logging.Fields{
			"batches": genBatches,
			"start":   genStart,
			"size":    cfg.Batch.Size,
			"frames":  frames,
			"filters": filters,
			"classes": classes,
			"seed":    cfg.Batch.Seed,
			"out":     cfg.Export.Dir,
		})

		started := time.Now()
		failed, err := writeBatches(ctx, p, writer, genBatches, logger)
		if err != nil {
			return err
		}

		logger.Info("Generation completed", logging.Fields{
			"written":  writer.Written(),
			"failed":   failed,
			"duration": time.Since(started).Round(time.Millisecond).String(),
		})
		return nil
	},
}

// maxConsecutiveFailures stops a run whose batches keep failing
const maxConsecutiveFailures = 3

type batchSource interface {
	NextBatch(ctx context.Context) (*corpus.Batch, error)
}

type batchSink interface {
	Write(b *corpus.Batch) (string, error)
}

// writeBatches pulls n batches from src into dst. A failed batch is skipped
// and logged; maxConsecutiveFailures failures in a row end the run with the
// last error. Cancellation ends it cleanly.
func writeBatches(ctx context.Context, src batchSource, dst batchSink, n int, logger logging.Logger) (int, error) {
	failed, streak := 0, 0
	for written := 0; written < n; {
		b, err := src.NextBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, pipeline.ErrClosed) {
				logger.Warn("Generation interrupted", logging.Fields{"written": written})
				return failed, nil
			}
			failed++
			streak++
			if streak >= maxConsecutiveFailures {
				return failed, fmt.Errorf("%d batches failed in a row: %w", streak, err)
			}
			logger.Error(err, "Skipping failed batch")
			continue
		}
		streak = 0

		path, err := dst.Write(b)
		if err != nil {
			return failed, err
		}
		written++
		logger.Info("Batch written", logging.Fields{
			"batch":          b.Index,
			"path":           path,
			"notes":          b.Composition.Notes,
			"dropped_labels": b.Render.DroppedLabels,
			"silent_notes":   b.Render.SilentNotes,
		})
	}
	return failed, nil
}

func init() {
	generateCmd.Flags().IntVarP(&genBatches, "batches", "n", 1, "number of batches to write")
	generateCmd.Flags().Uint64Var(&genStart, "start", 0, "index of the first batch")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "shard output directory (overrides export.dir)")
	generateCmd.Flags().Uint64Var(&genSeed, "seed", 0, "batch seed (overrides batch.seed)")
	generateCmd.Flags().BoolVar(&genFloat16, "float16", false, "store features as half precision")
}
