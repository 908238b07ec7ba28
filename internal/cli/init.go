package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/audiosolutions/radiowatch/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s.\n", configDir)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# radiowatch configuration

monitor:
  interval_minutes: 5
  reconnect_seconds: 30
  settle_ms: 3000
  show_browser: false

storage:
  path: .radiowatch/radiowatch.db
  # report_path: .radiowatch/report.txt

remote:
  # Supabase project URL; leave empty for local-only monitoring.
  # url: "https://your-project.supabase.co"
  api_key_env: RADIOWATCH_API_KEY

probe:
  address: "8.8.8.8:53"
  timeout_seconds: 3

normalizer:
  extra_markers: []
  # - "^ao vivo$"

# Fallback stations, used when the remote registry is empty or unreachable.
stations:
  - name: "Example FM"
    url: "https://mytuner-radio.com/radio/example-fm"
    active: true
`
