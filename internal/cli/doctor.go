package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/audiosolutions/radiowatch/internal/config"
	"github.com/audiosolutions/radiowatch/internal/history"
	"github.com/audiosolutions/radiowatch/internal/monitor"
	"github.com/audiosolutions/radiowatch/internal/remote"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, storage, and connectivity",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		ok = false
	} else {
		remoteNote := "no remote"
		if cfg.Remote.URL != "" {
			remoteNote = "remote configured"
		}
		printCheck(true, "config.yaml (%d fallback stations, %s)", len(cfg.Stations), remoteNote)
	}

	// Database
	if cfg != nil {
		db, err := history.Open(cfg.Storage.Path)
		if err != nil {
			printCheck(false, "database: %v", err)
			ok = false
		} else {
			last, _ := db.LastCycle(cmd.Context())
			if last.IsZero() {
				printCheck(true, "database %s (no cycles yet)", cfg.Storage.Path)
			} else {
				printCheck(true, "database %s (last cycle %s)", cfg.Storage.Path, last.Local().Format(time.RFC822))
			}
			_ = db.Close()
		}
	}

	// Connectivity
	if cfg != nil {
		probe := monitor.NewDialProbe(cfg.Probe.Address, cfg.Probe.Timeout())
		if probe.Reachable() {
			printCheck(true, "internet connectivity (%s)", cfg.Probe.Address)
		} else {
			printCheck(false, "internet connectivity (%s)", cfg.Probe.Address)
			ok = false
		}
	}

	// Remote service
	if cfg != nil && cfg.Remote.URL != "" {
		if cfg.Remote.APIKey == "" {
			printCheck(false, "remote api key (%s is empty)", cfg.Remote.APIKeyEnv)
			ok = false
		}
		client, err := remote.New(remote.Config{BaseURL: cfg.Remote.URL, APIKey: cfg.Remote.APIKey}, log.New(io.Discard))
		if err != nil {
			printCheck(false, "remote client: %v", err)
			ok = false
		} else {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			if client.Reachable(ctx) {
				printCheck(true, "remote service %s", cfg.Remote.URL)
			} else {
				printCheck(false, "remote service %s", cfg.Remote.URL)
				ok = false
			}
			cancel()
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}
