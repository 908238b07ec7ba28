package cli

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/audiosolutions/radiowatch/internal/config"
	"github.com/audiosolutions/radiowatch/internal/extract"
	"github.com/audiosolutions/radiowatch/internal/history"
	"github.com/audiosolutions/radiowatch/internal/monitor"
	"github.com/audiosolutions/radiowatch/internal/page"
	"github.com/audiosolutions/radiowatch/internal/remote"
	"github.com/audiosolutions/radiowatch/internal/report"
	"github.com/audiosolutions/radiowatch/internal/song"
	"github.com/audiosolutions/radiowatch/internal/station"
)

// components holds everything a monitoring command needs, built from config.
type components struct {
	cfg       *config.Config
	store     *history.Store
	browser   page.Browser
	registry  *station.Registry
	scheduler *monitor.Scheduler
	remote    *remote.Client
}

func (c *components) close() {
	_ = c.browser.Close()
	_ = c.store.Close()
}

func buildComponents(logger *log.Logger) (*components, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := history.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	browser := page.NewHTTP(page.Config{Settle: cfg.Monitor.Settle()})

	normalizer, err := song.NewNormalizer(cfg.Normalizer.ExtraMarkers...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build normalizer: %w", err)
	}

	client, err := newRemoteClient(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var lister station.Lister
	var syncer monitor.Syncer
	if client != nil {
		lister = client
		syncer = client
	}
	registry := station.NewRegistry(lister, fallbackStations(cfg), logger)

	probe := monitor.NewDialProbe(cfg.Probe.Address, cfg.Probe.Timeout())

	sched := monitor.New(
		monitor.Config{
			Interval:   cfg.Monitor.Interval(),
			Reconnect:  cfg.Monitor.Reconnect(),
			ReportPath: cfg.Storage.ReportPath,
		},
		probe,
		registry,
		extract.New(browser),
		normalizer,
		store,
		syncer,
		report.NewTerminal(!noColor),
		rootCmd.OutOrStdout(),
		logger,
	)

	return &components{
		cfg:       cfg,
		store:     store,
		browser:   browser,
		registry:  registry,
		scheduler: sched,
		remote:    client,
	}, nil
}

// newRemoteClient returns nil when no remote URL is configured; the monitor
// then runs in local-only mode.
func newRemoteClient(cfg *config.Config, logger *log.Logger) (*remote.Client, error) {
	if cfg.Remote.URL == "" {
		return nil, nil
	}
	client, err := remote.New(remote.Config{
		BaseURL: cfg.Remote.URL,
		APIKey:  cfg.Remote.APIKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build remote client: %w", err)
	}
	return client, nil
}

func fallbackStations(cfg *config.Config) []station.Fallback {
	out := make([]station.Fallback, 0, len(cfg.Stations))
	for _, st := range cfg.Stations {
		out = append(out, station.Fallback{Name: st.Name, URL: st.URL, Active: st.Active})
	}
	return out
}
