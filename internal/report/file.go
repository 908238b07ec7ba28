package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/audiosolutions/radiowatch/internal/history"
)

const maxReportPlays = 10

// StationReport pairs a station's last capture with its recent plays.
type StationReport struct {
	Snapshot history.Snapshot
	Plays    []history.Entry
}

// WriteFile renders the monitoring report to path, replacing any previous
// report.
func WriteFile(path string, generatedAt time.Time, reports []StationReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := write(f, generatedAt, reports); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}

func write(w io.Writer, generatedAt time.Time, reports []StationReport) error {
	rule := strings.Repeat("=", 72)
	thin := strings.Repeat("-", 72)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "radiowatch monitoring report")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "generated: %s\n", generatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "stations:  %d\n\n", len(reports))

	for _, rep := range reports {
		fmt.Fprintln(w, thin)
		fmt.Fprintf(w, "%s\n", rep.Snapshot.StationName)
		fmt.Fprintf(w, "url: %s\n", rep.Snapshot.URL)
		fmt.Fprintln(w, thin)

		if rep.Snapshot.NowPlaying != "" {
			fmt.Fprintf(w, "now playing: %s\n", rep.Snapshot.NowPlaying)
		}
		if rep.Snapshot.Error != "" {
			fmt.Fprintf(w, "last error:  %s\n", rep.Snapshot.Error)
		}

		if len(rep.Plays) > 0 {
			fmt.Fprintln(w, "recent plays:")
			for i, e := range rep.Plays {
				if i >= maxReportPlays {
					break
				}
				fmt.Fprintf(w, "  %2d. %s - %s (%s)\n", i+1, e.Song.Title, e.Song.Artist, e.ObservedAt.Format("15:04"))
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "end of report")
	return nil
}
