package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/store"
)

var placesCmd = &cobra.Command{
	Use:   "places",
	Short: "Inspect and curate stored places",
}

// -- places list --

var placesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored places",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hidden, _ := cmd.Flags().GetString("hidden")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		filter := store.PlaceFilter{Limit: limit}
		switch hidden {
		case "no":
			filter.Hidden = store.Bool(false)
		case "yes":
			filter.Hidden = store.Bool(true)
		case "all":
		default:
			return eris.Errorf("places list: --hidden must be yes, no or all, got %q", hidden)
		}

		list, err := st.ListPlaces(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "places list")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No places found.")
			return nil
		}
		formatPlacesList(os.Stdout, list)
		return nil
	},
}

// -- places hide / unhide --

func visibilityCmd(use, short string, hidden bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <place-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := cfg.Validate("store"); err != nil {
				return err
			}

			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			return eris.Wrapf(st.SetHidden(ctx, args[0], hidden), "places %s", use)
		},
	}
}

func formatPlacesList(w io.Writer, list []model.Place) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLACE ID\tNAME\tRATING\tTYPE\tDRIVE\tHIDDEN\tLAST VISITED")
	for _, p := range list {
		rating := "-"
		if p.Rating != nil {
			rating = strconv.FormatFloat(*p.Rating, 'f', 1, 64)
		}
		drive := "-"
		if p.DriveTime != nil {
			drive = fmt.Sprintf("%dm", (*p.DriveTime+30)/60)
		}
		visited := "-"
		if p.LastVisited != nil {
			visited = *p.LastVisited
		}
		hidden := ""
		if p.Hidden {
			hidden = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.PlaceID, truncate(p.Name, 40), rating, p.Category, drive, hidden, visited)
	}
	tw.Flush() //nolint:errcheck
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	placesListCmd.Flags().String("hidden", "all", "filter by hidden flag (yes, no, all)")
	placesListCmd.Flags().Int("limit", 0, "max number of places (0 lists all)")
	placesListCmd.Flags().Bool("json", false, "print places as JSON")

	placesCmd.AddCommand(placesListCmd)
	placesCmd.AddCommand(visibilityCmd("hide", "Hide a place from the viewer lists", true))
	placesCmd.AddCommand(visibilityCmd("unhide", "Show a hidden place again", false))
	rootCmd.AddCommand(placesCmd)
}
