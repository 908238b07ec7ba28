package station

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
)

// Remote is a station record as served by the remote registry.
type Remote struct {
	ID        string
	Name      string
	ScrapeURL string
	Enabled   bool
}

// Lister reads enabled station records from the remote registry.
type Lister interface {
	EnabledStations(ctx context.Context) ([]Remote, error)
}

// Fallback is a locally configured station used when the remote registry is
// unavailable.
type Fallback struct {
	Name   string
	URL    string
	Active bool
}

// Registry resolves the active station set, remote first with local
// fallback. It is safe to call every cycle; nothing is cached.
type Registry struct {
	lister   Lister
	fallback []Fallback
	logger   *log.Logger
}

// NewRegistry creates a registry. lister may be nil when no remote is
// configured.
func NewRegistry(lister Lister, fallback []Fallback, logger *log.Logger) *Registry {
	return &Registry{lister: lister, fallback: fallback, logger: logger}
}

// LoadActive returns the stations to monitor this cycle, in registry order.
// Duplicate names keep the first occurrence so names stay unique within a
// cycle.
func (r *Registry) LoadActive(ctx context.Context) ([]Station, error) {
	if r.lister != nil {
		records, err := r.lister.EnabledStations(ctx)
		switch {
		case err != nil:
			r.logger.Warn("remote registry unavailable, using local station list", "err", err)
		case len(records) == 0:
			r.logger.Warn("remote registry is empty, using local station list")
		default:
			return dedupe(fromRemote(records)), nil
		}
	}

	stations := dedupe(fromFallback(r.fallback))
	if len(stations) == 0 {
		return nil, errors.New("no stations configured")
	}
	return stations, nil
}

func fromRemote(records []Remote) []Station {
	var stations []Station
	for _, rec := range records {
		if !rec.Enabled || rec.Name == "" {
			continue
		}
		stations = append(stations, Station{
			Name:     rec.Name,
			URL:      rec.ScrapeURL,
			Kind:     KindFromURL(rec.ScrapeURL),
			RemoteID: rec.ID,
		})
	}
	return stations
}

func fromFallback(fallback []Fallback) []Station {
	var stations []Station
	for _, fb := range fallback {
		if !fb.Active || fb.Name == "" {
			continue
		}
		stations = append(stations, Station{
			Name: fb.Name,
			URL:  fb.URL,
			Kind: KindFromURL(fb.URL),
		})
	}
	return stations
}

func dedupe(stations []Station) []Station {
	seen := make(map[string]bool, len(stations))
	var out []Station
	for _, st := range stations {
		if seen[st.Name] {
			continue
		}
		seen[st.Name] = true
		out = append(out, st)
	}
	return out
}
