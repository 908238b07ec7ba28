// Package extract pulls now-playing and recently-played text out of station
// pages. Each station kind has its own strategy; failures stay inside the
// Capture so one bad station never affects the rest of a cycle.
package extract

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/audiosolutions/radiowatch/internal/page"
	"github.com/audiosolutions/radiowatch/internal/station"
)

const (
	maxTunerRecent  = 10
	maxClubFMRecent = 15
	minEntryRunes   = 5
	maxLineRunes    = 100
)

// Capture is one extraction attempt's raw result.
type Capture struct {
	Station    station.Station
	NowPlaying string
	Recent     []string
	CapturedAt time.Time
	Err        error
}

// nowPlayingSelectors are tried in order; the first non-empty match wins.
var nowPlayingSelectors = []string{".latest-song", ".current-song", ".now-playing"}

var clockRe = regexp.MustCompile(`\d{2}:\d{2}`)

// Extractor runs the per-kind extraction strategies over a shared browser.
type Extractor struct {
	browser page.Browser
	now     func() time.Time
}

// New creates an extractor using the given browser handle.
func New(browser page.Browser) *Extractor {
	return &Extractor{browser: browser, now: time.Now}
}

// Extract visits the station page and captures its raw song text. The
// returned Capture carries any failure in Err instead of an error return.
func (e *Extractor) Extract(ctx context.Context, st station.Station) Capture {
	c := Capture{Station: st, CapturedAt: e.now()}

	p, err := e.browser.Open(ctx, st.URL)
	if err != nil {
		c.Err = err
		return c
	}

	switch st.Kind {
	case station.KindClubFM:
		e.extractClubFM(p, &c)
	default:
		e.extractTuner(p, &c)
	}
	return c
}

// extractTuner handles generic tuner pages: a now-playing element plus
// song links or a history container.
func (e *Extractor) extractTuner(p *page.Page, c *Capture) {
	c.NowPlaying = p.First(nowPlayingSelectors...)
	if c.NowPlaying == "" {
		// Some layouts put the text in the element after the #now-playing
		// anchor.
		c.NowPlaying = p.First("#now-playing + *")
	}

	recent := collect(p, `a[href*="song"]`, maxTunerRecent)
	if len(recent) == 0 {
		recent = collect(p, "#song-history div, .song-history div", maxTunerRecent)
	}
	c.Recent = recent
}

// extractClubFM handles the Club FM playlist layout: structured track
// containers, with a timestamped line scan of the page text as fallback.
// The first collected item doubles as now playing.
func (e *Extractor) extractClubFM(p *page.Page, c *Capture) {
	var songs []string
	p.Each(".song-item, .track-item, article", func(s *goquery.Selection) {
		if len(songs) >= maxClubFMRecent {
			return
		}
		artist := strings.TrimSpace(s.Find("h3, .artist").First().Text())
		title := strings.TrimSpace(s.Find("h4, .song").First().Text())
		if artist == "" || title == "" {
			return
		}
		songs = append(songs, title+" - "+artist)
	})

	if len(songs) == 0 {
		for _, line := range strings.Split(p.Text(), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || !clockRe.MatchString(line) || utf8.RuneCountInString(line) >= maxLineRunes {
				continue
			}
			songs = append(songs, line)
			if len(songs) >= maxClubFMRecent {
				break
			}
		}
	}

	if len(songs) > 0 {
		c.NowPlaying = songs[0]
		c.Recent = songs
	}
}

// collect gathers distinct trimmed texts from elements matching selector,
// skipping entries too short to be song text.
func collect(p *page.Page, selector string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	p.Each(selector, func(s *goquery.Selection) {
		if len(out) >= limit {
			return
		}
		text := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(text) <= minEntryRunes || seen[text] {
			return
		}
		seen[text] = true
		out = append(out, text)
	})
	return out
}
