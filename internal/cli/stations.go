package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List the stations that would be monitored",
	RunE:  stationsAction,
}

func init() {
	rootCmd.AddCommand(stationsCmd)
}

func stationsAction(cmd *cobra.Command, _ []string) error {
	logger := newLogger(stderr)

	comps, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer comps.close()

	stations, err := comps.registry.LoadActive(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, st := range stations {
		origin := "local"
		if st.RemoteID != "" {
			origin = "remote"
		}
		fmt.Fprintf(out, "%-24s %-8s %-7s %s\n", st.Name, st.Kind, origin, st.URL)
	}
	fmt.Fprintf(out, "\n%d stations\n", len(stations))
	return nil
}
