package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor stations continuously",
	RunE:  runAction,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	logger := newLogger(stderr)

	comps, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer comps.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("monitor starting",
		"interval", comps.cfg.Monitor.Interval(),
		"storage", comps.cfg.Storage.Path,
		"remote", comps.remote != nil)

	return comps.scheduler.Run(ctx)
}
