package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/collector"
	"github.com/sells-group/places-cli/internal/config"
	"github.com/sells-group/places-cli/pkg/places"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Sweep the tile grid and store every place found",
	Long: `Queries the Places nearby search for every tile within --iterations blocks
of LOCATION, for each configured type, and upserts the distinct places into
the database. Hidden flags and visit dates of known places are kept.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyCollectFlags(cmd)
		if err := cfg.Validate("collect"); err != nil {
			return err
		}
		if cfg.Places.LanguageFromLocale {
			zap.L().Warn("response language taken from the shell LANG; set PLACES_LANG or --lang to choose another",
				zap.String("lang", cfg.Places.Language))
		}

		result, err := runCollect(ctx)
		if result != nil {
			asJSON, _ := cmd.Flags().GetBool("json")
			writeRunResult(os.Stdout, result, asJSON)
		}
		return err
	},
}

// applyCollectFlags copies explicitly set flags over the loaded config.
func applyCollectFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("location") {
		cfg.Places.Location, _ = f.GetString("location")
	}
	if f.Changed("radius") {
		cfg.Places.Radius, _ = f.GetInt("radius")
	}
	if f.Changed("types") {
		cfg.Places.Types, _ = f.GetString("types")
	}
	if f.Changed("iterations") {
		cfg.Places.Iterations, _ = f.GetInt("iterations")
	}
	if f.Changed("drive-time") {
		cfg.Places.DriveTime, _ = f.GetBool("drive-time")
	}
	if f.Changed("lang") {
		cfg.Places.Language, _ = f.GetString("lang")
		cfg.Places.LanguageFromLocale = false
	}
}

// collectSettings converts the validated config into sweep settings.
func collectSettings() (collector.Settings, error) {
	base, err := cfg.Places.Base()
	if err != nil {
		return collector.Settings{}, err
	}
	lang, err := config.NormalizeLanguage(cfg.Places.Language)
	if err != nil {
		return collector.Settings{}, err
	}
	return collector.Settings{
		Base:       base,
		Radius:     cfg.Places.Radius,
		Categories: cfg.Places.Categories(),
		Language:   lang,
		Iterations: cfg.Places.Iterations,
	}, nil
}

// runCollect opens the store and performs one sweep. Fetcher options let
// tests remove the retry and pagination delays.
func runCollect(ctx context.Context, fetcherOpts ...collector.FetcherOption) (*collector.RunResult, error) {
	settings, err := collectSettings()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	client := places.NewClient(cfg.Places.APIKey, places.WithBaseURL(cfg.Places.BaseURL))

	var opts []collector.Option
	if cfg.Places.DriveTime {
		opts = append(opts, collector.WithTravelTime(
			collector.NewTravelTimeResolver(client, collector.WithTravelLanguage(settings.Language)),
		))
	}

	c := collector.New(st, collector.NewFetcher(client, fetcherOpts...), opts...)
	return c.Run(ctx, settings)
}

func writeRunResult(w io.Writer, r *collector.RunResult, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(r)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Tiles:\t%d\n", r.Tiles)
	fmt.Fprintf(tw, "Requests:\t%d\n", r.Requests)
	fmt.Fprintf(tw, "Results:\t%d\n", r.RawResults)
	fmt.Fprintf(tw, "Unique:\t%d\n", r.Unique)
	fmt.Fprintf(tw, "Upserted:\t%d\n", r.Upserted)
	fmt.Fprintf(tw, "Skipped:\t%d\n", r.Skipped)
	fmt.Fprintf(tw, "Duration:\t%s\n", r.Duration.Round(time.Millisecond))
	tw.Flush() //nolint:errcheck
}

func init() {
	f := collectCmd.Flags()
	f.String("location", "", "base location as lat,lng (default from LOCATION)")
	f.Int("radius", 0, "search radius per tile in meters (default from RADIUS)")
	f.String("types", "", "comma or semicolon separated place types (default from TYPE)")
	f.Int("iterations", 0, "grid depth in blocks around the base (default from ITERATIONS)")
	f.Bool("drive-time", false, "look up driving time from the base for new places")
	f.String("lang", "", "response language (default from PLACES_LANG, then the shell's LANG, then ja)")
	f.Bool("json", false, "print the run summary as JSON")
	rootCmd.AddCommand(collectCmd)
}
