package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/audiosolutions/radiowatch/internal/station"
)

var (
	historyStation string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show locally recorded plays",
	RunE:  historyAction,
}

func init() {
	historyCmd.Flags().StringVar(&historyStation, "station", "", "station name (all stations when omitted)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max plays to show")
	rootCmd.AddCommand(historyCmd)
}

func historyAction(cmd *cobra.Command, _ []string) error {
	logger := newLogger(stderr)

	comps, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer comps.close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if historyStation != "" {
		key := station.Key(historyStation)
		plays, err := comps.store.RecentPlays(ctx, key, historyLimit)
		if err != nil {
			return err
		}
		if len(plays) == 0 {
			fmt.Fprintf(out, "No plays recorded for %s.\n", historyStation)
			return nil
		}
		for _, p := range plays {
			fmt.Fprintf(out, "%s  %s - %s\n",
				p.ObservedAt.Local().Format("2006-01-02 15:04"), p.Song.Title, p.Song.Artist)
		}
		return nil
	}

	snaps, err := comps.store.Snapshots(ctx)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(out, "No stations recorded yet.")
		return nil
	}
	for _, snap := range snaps {
		n, err := comps.store.PlayCount(ctx, snap.StationKey)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-24s %4d plays  last capture %s\n",
			snap.StationName, n, snap.CapturedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
