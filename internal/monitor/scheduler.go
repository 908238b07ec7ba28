// Package monitor drives the station monitoring loop: connectivity probe,
// registry refresh, per-station extraction, local recording, remote sync,
// and the cooldown between cycles.
package monitor

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/audiosolutions/radiowatch/internal/extract"
	"github.com/audiosolutions/radiowatch/internal/history"
	"github.com/audiosolutions/radiowatch/internal/remote"
	"github.com/audiosolutions/radiowatch/internal/report"
	"github.com/audiosolutions/radiowatch/internal/song"
	"github.com/audiosolutions/radiowatch/internal/station"
)

const (
	defaultTick       = time.Second
	defaultProbeTicks = 30
	defaultBackoff    = 30 * time.Second

	// maxRecentPush bounds how many recently-played items are synced per
	// station per cycle.
	maxRecentPush = 5
)

// Syncer pushes observations to the remote service. A nil Syncer runs the
// monitor in local-only mode.
type Syncer interface {
	PushObservation(ctx context.Context, obs remote.Observation) error
	Reachable(ctx context.Context) bool
}

// Config holds scheduler timing. Zero values get defaults.
type Config struct {
	Interval   time.Duration // cooldown between cycles
	Reconnect  time.Duration // offline re-probe interval
	Backoff    time.Duration // pause after an unexpected cycle failure
	Tick       time.Duration // countdown granularity
	ProbeTicks int           // connectivity re-check period during cooldown, in ticks
	ReportPath string        // optional plain-text report, written each cycle
}

// Scheduler owns the monitoring loop. All mutation of the history store
// happens on its single worker; stations are processed strictly in registry
// order over one shared browser handle.
type Scheduler struct {
	cfg        Config
	probe      Probe
	registry   *station.Registry
	extractor  *extract.Extractor
	normalizer *song.Normalizer
	store      *history.Store
	syncer     Syncer
	term       *report.Terminal
	out        io.Writer
	logger     *log.Logger
	now        func() time.Time
}

// New creates a scheduler. syncer may be nil when no remote is configured.
func New(cfg Config, probe Probe, registry *station.Registry, extractor *extract.Extractor,
	normalizer *song.Normalizer, store *history.Store, syncer Syncer,
	term *report.Terminal, out io.Writer, logger *log.Logger) *Scheduler {

	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Reconnect == 0 {
		cfg.Reconnect = 30 * time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Tick == 0 {
		cfg.Tick = defaultTick
	}
	if cfg.ProbeTicks == 0 {
		cfg.ProbeTicks = defaultProbeTicks
	}

	return &Scheduler{
		cfg:        cfg,
		probe:      probe,
		registry:   registry,
		extractor:  extractor,
		normalizer: normalizer,
		store:      store,
		syncer:     syncer,
		term:       term,
		out:        out,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes the monitoring loop until ctx is canceled. The only error
// paths out are programming-level; operational failures are absorbed and
// retried forever.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return s.drain()
		}

		if !s.probe.Reachable() {
			if !s.awaitReconnect(ctx) {
				return s.drain()
			}
			continue
		}

		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return s.drain()
			}
			s.logger.Error("cycle failed, backing off", "err", err, "backoff", s.cfg.Backoff)
			if !sleep(ctx, s.cfg.Backoff) {
				return s.drain()
			}
			continue
		}

		if !s.cooldown(ctx) {
			return s.drain()
		}
	}
}

// RunCycle performs one full pass over the active stations.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	started := s.now()

	remoteOK := s.syncer != nil && s.syncer.Reachable(ctx)
	if s.syncer != nil && !remoteOK {
		s.logger.Warn("remote service unreachable, recording locally only")
	}

	lastCycle, err := s.store.LastCycle(ctx)
	if err != nil {
		return err
	}

	stations, err := s.registry.LoadActive(ctx)
	if err != nil {
		return err
	}

	results := make([]report.StationResult, 0, len(stations))
	for _, st := range stations {
		// A cancel mid-cycle finishes the current station and stops before
		// the next one.
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.processStation(ctx, st, remoteOK))
	}

	if err := s.store.SetLastCycle(ctx, s.now()); err != nil {
		s.logger.Warn("persist last cycle", "err", err)
	}

	if s.cfg.ReportPath != "" {
		if err := s.writeReport(ctx); err != nil {
			s.logger.Warn("write report", "err", err)
		}
	}

	sum := report.CycleSummary{
		Online:     true,
		RemoteOK:   remoteOK,
		Stations:   results,
		Interval:   s.cfg.Interval,
		LastCycle:  lastCycle,
		FinishedAt: s.now(),
	}
	if err := s.term.Format(s.out, sum); err != nil {
		s.logger.Warn("render cycle", "err", err)
	}

	s.logger.Info("cycle complete", "stations", len(results), "took", s.now().Sub(started).Round(time.Millisecond))
	return nil
}

// processStation runs extract → normalize → record → push for one station.
// Every failure is contained here.
func (s *Scheduler) processStation(ctx context.Context, st station.Station, remoteOK bool) report.StationResult {
	res := report.StationResult{Station: st}

	c := s.extractor.Extract(ctx, st)
	res.NowPlaying = c.NowPlaying
	res.Recent = c.Recent

	key := station.Key(st.Name)
	snap := history.Snapshot{
		StationKey:  key,
		StationName: st.Name,
		URL:         st.URL,
		NowPlaying:  c.NowPlaying,
		CapturedAt:  c.CapturedAt,
	}

	if c.Err != nil {
		res.Err = c.Err.Error()
		snap.Error = c.Err.Error()
		s.logger.Warn("extraction failed", "station", st.Name, "err", c.Err)
	} else {
		s.recordAndPush(ctx, st, c, remoteOK, &res)
	}

	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Warn("save snapshot", "station", st.Name, "err", err)
	}

	return res
}

func (s *Scheduler) recordAndPush(ctx context.Context, st station.Station, c extract.Capture, remoteOK bool, res *report.StationResult) {
	key := station.Key(st.Name)

	if c.NowPlaying != "" {
		sg := s.normalizer.Normalize(c.NowPlaying)
		if song.Acceptable(sg) {
			added, err := s.store.RecordIfChanged(ctx, key, sg, c.CapturedAt)
			if err != nil {
				s.logger.Warn("record now playing", "station", st.Name, "err", err)
			} else if added {
				res.Accepted++
			}
			if remoteOK && s.push(ctx, st, sg, true) {
				res.Pushed++
			}
		}
	}

	pushed := 0
	for _, raw := range c.Recent {
		sg := s.normalizer.Normalize(raw)
		if !song.Acceptable(sg) {
			continue
		}

		added, err := s.store.RecordIfChanged(ctx, key, sg, c.CapturedAt)
		if err != nil {
			s.logger.Warn("record play", "station", st.Name, "err", err)
		} else if added {
			res.Accepted++
		}

		if remoteOK && pushed < maxRecentPush {
			if s.push(ctx, st, sg, false) {
				res.Pushed++
			}
			pushed++
		}
	}
}

// push sends one observation; failures are logged and absorbed so the rest
// of the station (and cycle) continues.
func (s *Scheduler) push(ctx context.Context, st station.Station, sg song.Song, nowPlaying bool) bool {
	obs := remote.Observation{
		StationName: st.Name,
		StationID:   st.RemoteID,
		Title:       sg.Title,
		Artist:      sg.Artist,
		NowPlaying:  nowPlaying,
	}
	if err := s.syncer.PushObservation(ctx, obs); err != nil {
		s.logger.Warn("push failed", "station", st.Name, "title", sg.Title, "err", err)
		return false
	}
	return true
}

func (s *Scheduler) writeReport(ctx context.Context) error {
	snaps, err := s.store.Snapshots(ctx)
	if err != nil {
		return err
	}

	reports := make([]report.StationReport, 0, len(snaps))
	for _, snap := range snaps {
		plays, err := s.store.RecentPlays(ctx, snap.StationKey, 10)
		if err != nil {
			return err
		}
		reports = append(reports, report.StationReport{Snapshot: snap, Plays: plays})
	}
	return report.WriteFile(s.cfg.ReportPath, s.now(), reports)
}

// cooldown counts down the interval in ticks, re-probing connectivity
// periodically. Returns false when ctx was canceled.
func (s *Scheduler) cooldown(ctx context.Context) bool {
	ticks := int(s.cfg.Interval / s.cfg.Tick)
	for i := ticks; i > 0; i-- {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.cfg.Tick):
		}

		s.term.Countdown(s.out, time.Duration(i-1)*s.cfg.Tick)

		if i%s.cfg.ProbeTicks == 0 && !s.probe.Reachable() {
			s.logger.Warn("connectivity lost during cooldown")
			return true // next loop iteration lands in awaitReconnect
		}
	}
	return true
}

// awaitReconnect polls connectivity until it returns or ctx is canceled.
// Returns false on cancel.
func (s *Scheduler) awaitReconnect(ctx context.Context) bool {
	attempt := 0
	for {
		attempt++
		s.logger.Warn("no connection, history is kept locally", "attempt", attempt, "retry_in", s.cfg.Reconnect)

		if !sleep(ctx, s.cfg.Reconnect) {
			return false
		}
		if s.probe.Reachable() {
			s.logger.Info("connection restored")
			return true
		}
	}
}

// drain finishes an interrupted run. Store writes are synchronous, so
// nothing buffered remains; the caller closes the store and browser.
func (s *Scheduler) drain() error {
	s.logger.Info("monitor stopped")
	return nil
}

// sleep waits d or until ctx is canceled; false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
