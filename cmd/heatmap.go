package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/store"
	"github.com/sells-group/places-cli/internal/viewer"
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Write a standalone heatmap of every stored place",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("heatmap"); err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		base, err := cfg.Places.Base()
		if err != nil {
			return err
		}
		all, err := st.ListPlaces(ctx, store.PlaceFilter{})
		if err != nil {
			return eris.Wrap(err, "heatmap: list places")
		}

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "heatmap: create output")
		}
		if err := viewer.WriteHeatmap(f, base, all); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "heatmap: close output")
		}

		zap.L().Info("heatmap written", zap.String("path", out), zap.Int("places", len(all)))
		fmt.Fprintf(os.Stderr, "Saved heatmap of %d places to %s\n", len(all), out)
		return nil
	},
}

func init() {
	heatmapCmd.Flags().StringP("out", "o", "heatmap.html", "output HTML file")
	rootCmd.AddCommand(heatmapCmd)
}
