// Package updater runs the roster update: fetch the source calendar,
// archive it, classify and enrich every event and publish the result.
package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"dutycal/internal/airport"
	"dutycal/internal/ics"
	appLog "dutycal/internal/log"
	"dutycal/internal/model"
	"dutycal/internal/pipeline"
	"dutycal/internal/publish"
	"dutycal/internal/store"
)

// Fetcher downloads the source calendar.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (ics.FetchResult, error)
}

// DirectorySource provides the airport directory for one iteration.
type DirectorySource interface {
	Directory(ctx context.Context) (*airport.Directory, error)
}

// Options configures an Updater.
type Options struct {
	InputURL     string
	OutputPath   string
	CalendarName string
	// Location resolves floating source times.
	Location *time.Location
	// ArchiveAfter freezes events that ended longer ago than this.
	ArchiveAfter time.Duration
	// HorizonDays bounds recurrence expansion into the future.
	HorizonDays int
}

// Snapshot is the outcome of the last successful iteration.
type Snapshot struct {
	Calendar  []byte
	Events    []model.ComposedEvent
	Warnings  []model.Warning
	Changes   pipeline.Changes
	Archive   store.SyncStats
	FromCache bool
	UpdatedAt time.Time
}

// Updater performs update iterations. Iterations never overlap.
type Updater struct {
	opts      Options
	fetcher   Fetcher
	events    *store.EventStore
	airports  DirectorySource
	orch      *pipeline.Orchestrator
	sinks     []publish.Sink
	onSuccess func(Snapshot)
	now       func() time.Time

	mu sync.Mutex
}

// New creates an Updater. sinks should include the file sink for
// opts.OutputPath; the previous output is read back from that path.
func New(opts Options, fetcher Fetcher, events *store.EventStore, airports DirectorySource, orch *pipeline.Orchestrator, sinks []publish.Sink) *Updater {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CalendarName == "" {
		opts.CalendarName = ics.DefaultCalendarName
	}
	return &Updater{
		opts:     opts,
		fetcher:  fetcher,
		events:   events,
		airports: airports,
		orch:     orch,
		sinks:    sinks,
		now:      time.Now,
	}
}

// OnSuccess registers a callback receiving each successful snapshot.
func (u *Updater) OnSuccess(fn func(Snapshot)) {
	u.onSuccess = fn
}

// RunOnce performs one iteration. A fetch or parse failure returns an
// error and leaves the published output untouched. Publish failures are
// returned after every sink has been tried.
func (u *Updater) RunOnce(ctx context.Context) (Snapshot, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	started := u.now()
	url := ics.RedactURL(u.opts.InputURL)
	appLog.Info("update start", "url", url)

	fetched, err := u.fetcher.Fetch(ctx, u.opts.InputURL)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch roster: %w", err)
	}

	parsed, err := ics.Parse(fetched.Body, u.opts.Location)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse roster: %w", err)
	}

	horizon := started.Add(-u.opts.ArchiveAfter)
	expanded, err := ics.Expand(parsed, ics.ExpandConfig{
		RangeStart: horizon,
		RangeEnd:   started.AddDate(0, 0, u.opts.HorizonDays),
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("expand roster: %w", err)
	}

	raw, stats, err := u.events.Sync(ctx, expanded.Events, horizon)
	if err != nil {
		return Snapshot{}, fmt.Errorf("archive roster: %w", err)
	}

	dir, err := u.airports.Directory(ctx)
	if err != nil {
		// Legs stay unresolved and carry warnings.
		appLog.Error("airport directory unavailable", err)
	}

	existing := u.readExisting()
	result := u.orch.Run(raw, existing, dir)
	for _, w := range result.Warnings {
		appLog.Warn("event warning", "event_id", w.EventID, "kind", string(w.Kind), "message", w.Message)
	}

	body := ics.Encode(result.Events, u.opts.CalendarName)
	publishErrs := publish.All(ctx, u.sinks, body)

	snap := Snapshot{
		Calendar:  body,
		Events:    ics.Sorted(result.Events),
		Warnings:  result.Warnings,
		Changes:   result.Changes,
		Archive:   stats,
		FromCache: fetched.FromCache,
		UpdatedAt: started,
	}

	appLog.Info("update done",
		"events", len(snap.Events),
		"warnings", len(snap.Warnings),
		"inserted", result.Changes.Inserted,
		"updated", result.Changes.Updated,
		"unchanged", result.Changes.Unchanged,
		"dropped", result.Changes.Dropped,
		"archived", stats.Archived,
		"from_cache", fetched.FromCache,
		"elapsed", u.now().Sub(started).Round(time.Millisecond),
	)

	if u.onSuccess != nil {
		u.onSuccess(snap)
	}
	if len(publishErrs) > 0 {
		return snap, fmt.Errorf("publish: %w", errors.Join(publishErrs...))
	}
	return snap, nil
}

// readExisting loads the previously published calendar. A missing or
// unreadable file counts as empty.
func (u *Updater) readExisting() map[string]model.ComposedEvent {
	data, err := os.ReadFile(u.opts.OutputPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			appLog.Error("read previous output failed", err, "path", u.opts.OutputPath)
		}
		return nil
	}
	existing, err := ics.Read(data)
	if err != nil {
		appLog.Error("parse previous output failed", err, "path", u.opts.OutputPath)
		return nil
	}
	return existing
}
