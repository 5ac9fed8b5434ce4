// Package pipeline drives one harvest run end to end: discover detail
// URLs, extract each one, persist records in batches, and report progress.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/harvest"
	"github.com/mozjobs/harvester/internal/progress"
	"github.com/mozjobs/harvester/internal/snapshot"
)

// State names the phase a run is in.
type State string

// Run phases.
const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateExtracting  State = "extracting"
	StatePersisting  State = "persisting"
)

// Discoverer yields detail URLs not yet in the store.
type Discoverer interface {
	Discover(ctx context.Context, known map[string]struct{}) ([]string, error)
}

// Extractor turns one detail URL into a Result.
type Extractor interface {
	Extract(ctx context.Context, url string, known harvest.Vocabulary) harvest.Result
}

// Store is the persistence slice the driver needs.
type Store interface {
	KnownURLs() map[string]struct{}
	Upsert(record harvest.JobRecord) (bool, error)
	Vocabulary() harvest.Vocabulary
	Save() error
	Count() int
}

// SnapshotSink archives pages that produced no record.
type SnapshotSink interface {
	Write(snap snapshot.Snapshot) error
}

// Config bounds a run.
type Config struct {
	// BatchSize is how many extracted records accumulate between saves.
	BatchSize int
	// Delay is the politeness pause between detail fetches.
	Delay time.Duration
	// MaxItems caps extracted pages per run; zero means no cap.
	MaxItems int
}

// Summary reports what one run did.
type Summary struct {
	Site       string
	Discovered int
	Extracted  int
	Skipped    map[harvest.SkipReason]int
	Failed     int
	Duration   time.Duration
}

// Driver owns one site's harvest run.
type Driver struct {
	site       string
	discoverer Discoverer
	extractor  Extractor
	store      Store
	snapshots  SnapshotSink
	emitter    progress.Emitter
	pauser     harvest.Pauser
	clock      harvest.Clock
	cfg        Config
	logger     *zap.Logger
	state      State
}

// New builds a Driver. snapshots and emitter may be nil.
func New(site string, discoverer Discoverer, extractor Extractor, st Store, snapshots SnapshotSink, emitter progress.Emitter, pauser harvest.Pauser, clock harvest.Clock, cfg Config, logger *zap.Logger) *Driver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Driver{
		site:       site,
		discoverer: discoverer,
		extractor:  extractor,
		store:      st,
		snapshots:  snapshots,
		emitter:    emitter,
		pauser:     pauser,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
		state:      StateIdle,
	}
}

// Run executes the full harvest. Running against an already-harvested site
// discovers nothing and writes nothing.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	runID := progress.NewRunID()
	start := d.clock.Now()
	summary := Summary{Site: d.site, Skipped: make(map[harvest.SkipReason]int)}

	d.emit(progress.Event{RunID: runID, TS: start, Stage: progress.StageRunStart, Site: d.site})

	d.setState(StateDiscovering)
	links, err := d.discoverer.Discover(ctx, d.store.KnownURLs())
	if err != nil {
		d.finish(runID, progress.StageRunError, start, err.Error())
		return summary, fmt.Errorf("pipeline: discovery for %s: %w", d.site, err)
	}
	summary.Discovered = len(links)
	if len(links) == 0 {
		d.logger.Info("nothing new to harvest", zap.String("site", d.site))
		d.setState(StateIdle)
		d.finish(runID, progress.StageRunDone, start, "no new links")
		summary.Duration = d.clock.Now().Sub(start)
		return summary, nil
	}
	if d.cfg.MaxItems > 0 && len(links) > d.cfg.MaxItems {
		d.logger.Info("capping run",
			zap.String("site", d.site),
			zap.Int("discovered", len(links)),
			zap.Int("max_items", d.cfg.MaxItems))
		links = links[:d.cfg.MaxItems]
	}

	d.setState(StateExtracting)
	vocab := d.store.Vocabulary()
	sinceSave := 0
	for i, url := range links {
		if err := ctx.Err(); err != nil {
			d.saveQuietly()
			d.finish(runID, progress.StageRunError, start, err.Error())
			summary.Duration = d.clock.Now().Sub(start)
			return summary, fmt.Errorf("pipeline: run canceled: %w", err)
		}

		itemStart := d.clock.Now()
		result := d.extractor.Extract(ctx, url, vocab)
		outcome := d.handleResult(url, result, &summary)
		d.emit(progress.Event{
			RunID:   runID,
			TS:      d.clock.Now(),
			Stage:   progress.StageItemDone,
			Site:    d.site,
			URL:     url,
			Outcome: outcome,
			Dur:     d.clock.Now().Sub(itemStart),
		})

		if outcome == progress.OutcomeExtracted {
			sinceSave++
			if sinceSave >= d.cfg.BatchSize {
				d.setState(StatePersisting)
				if err := d.store.Save(); err != nil {
					d.finish(runID, progress.StageRunError, start, err.Error())
					return summary, fmt.Errorf("pipeline: checkpoint save: %w", err)
				}
				vocab = d.store.Vocabulary()
				sinceSave = 0
				d.setState(StateExtracting)
			}
		}
		if i < len(links)-1 {
			d.pauser.Pause(ctx, d.cfg.Delay)
		}
	}

	d.setState(StatePersisting)
	if err := d.store.Save(); err != nil {
		d.finish(runID, progress.StageRunError, start, err.Error())
		return summary, fmt.Errorf("pipeline: final save: %w", err)
	}
	d.setState(StateIdle)

	summary.Duration = d.clock.Now().Sub(start)
	d.finish(runID, progress.StageRunDone, start, "")
	d.logger.Info("harvest run finished",
		zap.String("site", d.site),
		zap.Int("discovered", summary.Discovered),
		zap.Int("extracted", summary.Extracted),
		zap.Int("failed", summary.Failed),
		zap.Int("stored_total", d.store.Count()),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// handleResult persists or archives one extraction result and returns the
// outcome label for progress reporting.
func (d *Driver) handleResult(url string, result harvest.Result, summary *Summary) progress.Outcome {
	if result.Skipped() {
		summary.Skipped[result.Skip]++
		d.logger.Debug("detail page skipped",
			zap.String("site", d.site),
			zap.String("url", url),
			zap.String("reason", string(result.Skip)),
			zap.String("note", result.Note))
		if result.Skip == harvest.SkipEmpty {
			d.archive(url, result.RawHTML)
		}
		switch result.Skip {
		case harvest.SkipExpired:
			return progress.OutcomeSkipExpired
		case harvest.SkipFetchError:
			return progress.OutcomeSkipFetchError
		default:
			return progress.OutcomeSkipEmpty
		}
	}

	added, err := d.store.Upsert(result.Record)
	if err != nil {
		summary.Failed++
		d.logger.Warn("record rejected",
			zap.String("site", d.site), zap.String("url", url), zap.Error(err))
		return progress.OutcomeFailed
	}
	summary.Extracted++
	d.logger.Info("job harvested",
		zap.String("site", d.site),
		zap.String("url", url),
		zap.String("title", result.Record.Title),
		zap.Bool("new", added))
	return progress.OutcomeExtracted
}

func (d *Driver) archive(url string, rawHTML []byte) {
	if d.snapshots == nil || len(rawHTML) == 0 {
		return
	}
	err := d.snapshots.Write(snapshot.Snapshot{
		SourceURL: url,
		RawHTML:   string(rawHTML),
		FetchedAt: d.clock.Now(),
	})
	if err != nil {
		d.logger.Warn("snapshot write failed", zap.String("url", url), zap.Error(err))
	}
}

func (d *Driver) saveQuietly() {
	if err := d.store.Save(); err != nil {
		d.logger.Warn("save on cancellation failed", zap.Error(err))
	}
}

func (d *Driver) finish(runID [16]byte, stage progress.Stage, start time.Time, note string) {
	d.emit(progress.Event{
		RunID: runID,
		TS:    d.clock.Now(),
		Stage: stage,
		Site:  d.site,
		Dur:   d.clock.Now().Sub(start),
		Note:  note,
	})
}

func (d *Driver) emit(evt progress.Event) {
	if d.emitter != nil {
		d.emitter.Emit(evt)
	}
}

func (d *Driver) setState(next State) {
	if d.state == next {
		return
	}
	d.logger.Debug("pipeline state change",
		zap.String("site", d.site),
		zap.String("from", string(d.state)),
		zap.String("to", string(next)))
	d.state = next
}
