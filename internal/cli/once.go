package cli

import (
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single monitoring cycle and exit",
	RunE:  onceAction,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func onceAction(cmd *cobra.Command, _ []string) error {
	logger := newLogger(stderr)

	comps, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer comps.close()

	return comps.scheduler.RunCycle(cmd.Context())
}
