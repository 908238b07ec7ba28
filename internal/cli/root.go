// Package cli provides the command-line interface for radiowatch.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	noColor   bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "radiowatch",
	Short: "Monitor radio station pages and sync played songs",
	Long:  "radiowatch watches the web pages of configured radio stations, extracts now-playing and recently-played songs, records them in a local history, and syncs new observations to a remote service.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("radiowatch %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".radiowatch", "config directory")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

func newLogger(w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// stderr keeps log output off the terminal report stream.
var stderr io.Writer = os.Stderr
