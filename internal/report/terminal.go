// Package report renders cycle results: a terminal view of each station and
// an optional plain-text report file.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/audiosolutions/radiowatch/internal/station"
)

// StationResult is one station's outcome within a cycle.
type StationResult struct {
	Station    station.Station
	NowPlaying string
	Recent     []string
	Accepted   int
	Pushed     int
	Err        string
}

// CycleSummary is everything a cycle produced, for display.
type CycleSummary struct {
	Online     bool
	RemoteOK   bool
	Stations   []StationResult
	Interval   time.Duration
	LastCycle  time.Time
	FinishedAt time.Time
}

const maxDisplayRecent = 5

// Terminal formats cycle summaries for terminal output.
type Terminal struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *Terminal {
	return &Terminal{color: color}
}

// Format writes the cycle summary to w.
func (f *Terminal) Format(w io.Writer, sum CycleSummary) error {
	online := f.red("OFFLINE")
	if sum.Online {
		online = f.green("ONLINE")
	}
	remoteStatus := f.red("unreachable")
	if sum.RemoteOK {
		remoteStatus = f.green("connected")
	}

	fmt.Fprintln(w, f.bold(fmt.Sprintf("radiowatch — %d stations, every %s", len(sum.Stations), formatInterval(sum.Interval))))
	fmt.Fprintf(w, "  internet: %s   remote: %s\n", online, remoteStatus)
	if !sum.LastCycle.IsZero() {
		fmt.Fprintf(w, "  last cycle: %s\n", f.dim(humanize.Time(sum.LastCycle)))
	}
	fmt.Fprintln(w)

	for _, res := range sum.Stations {
		f.writeStation(w, res)
	}
	return nil
}

func (f *Terminal) writeStation(w io.Writer, res StationResult) {
	fmt.Fprintf(w, "  %s %s\n", f.bold(res.Station.Name), f.dim("("+res.Station.URL+")"))

	if res.NowPlaying != "" {
		fmt.Fprintf(w, "    now playing: %s\n", f.green(res.NowPlaying))
	} else {
		fmt.Fprintf(w, "    now playing: %s\n", f.dim("(not available)"))
	}

	for i, entry := range res.Recent {
		if i >= maxDisplayRecent {
			break
		}
		fmt.Fprintf(w, "      %d. %s\n", i+1, entry)
	}

	if res.Accepted > 0 || res.Pushed > 0 {
		fmt.Fprintf(w, "    %s\n", f.dim(fmt.Sprintf("%d recorded, %d pushed", res.Accepted, res.Pushed)))
	}
	if res.Err != "" {
		fmt.Fprintf(w, "    %s\n", f.yellow("warning: "+res.Err))
	}
	fmt.Fprintln(w)
}

// Countdown writes the in-place cooldown line.
func (f *Terminal) Countdown(w io.Writer, remaining time.Duration) {
	m := int(remaining.Minutes())
	s := int(remaining.Seconds()) % 60
	fmt.Fprintf(w, "\r  next update in %02d:%02d  ", m, s)
}

func formatInterval(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return d.String()
}

// ANSI helpers — no-op when color=false.

func (f *Terminal) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *Terminal) green(s string) string {
	if !f.color {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func (f *Terminal) yellow(s string) string {
	if !f.color {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func (f *Terminal) red(s string) string {
	if !f.color {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}

func (f *Terminal) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}
