package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-corpus/library"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

var chordsCmd = &cobra.Command{
	Use:   "chords",
	Short: "List the chord catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(context.Background(), cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, c := range catalog.AllChords() {
			fmt.Fprintln(out, c)
		}
		triads, fretted := catalog.Counts()
		fmt.Fprintf(out, "%d chords (%d triads, %d fretted)\n", catalog.Len(), triads, fretted)
		return nil
	},
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "List the loaded sample libraries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		set, err := library.LoadSet(cfg, logging.GetGlobalLogger())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		full := library.FullRange(cfg)
		for _, lib := range []*library.Library{set.Melodic, set.Noise, set.Percussive} {
			if lib == nil {
				continue
			}
			fmt.Fprintf(out, "%s: %d samples, rms %.1f\n", lib.Name(), lib.Len(), lib.AverageRMS())
			for _, s := range lib.Samples() {
				fmt.Fprintf(out, "  %-40s plays %s\n", s.Name, s.RangeOr(full))
			}
		}
		return nil
	},
}
