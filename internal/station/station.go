// Package station models monitored radio stations and resolves the active
// set to monitor each cycle.
package station

import "strings"

// Kind selects the extraction strategy for a station's page family.
type Kind int

const (
	// KindTuner covers generic tuner-style pages with now-playing selectors
	// and a song-history block.
	KindTuner Kind = iota
	// KindClubFM covers the Club FM playlist layout.
	KindClubFM
)

func (k Kind) String() string {
	switch k {
	case KindClubFM:
		return "clubfm"
	default:
		return "tuner"
	}
}

// KindFromURL derives the extraction kind from the page URL. The mapping is
// deterministic and never user-set.
func KindFromURL(url string) Kind {
	if strings.Contains(strings.ToLower(url), "clubefm") {
		return KindClubFM
	}
	return KindTuner
}

// Station is one monitored source. Stations are rebuilt on every registry
// refresh and are not persisted themselves.
type Station struct {
	Name     string
	URL      string
	Kind     Kind
	RemoteID string // set when the station came from the remote registry
}

// Key returns the normalized lookup key used by the local history store.
func Key(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
