// Package pipeline turns raw roster events into composed output events:
// classify, resolve legs, pick reminders, compose. Nothing here touches the
// network, the filesystem or the database.
package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"dutycal/internal/airport"
	"dutycal/internal/concurrency"
	"dutycal/internal/duty"
	"dutycal/internal/model"
)

// Changes counts identifiers of a run against the previous output.
type Changes struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Dropped   int `json:"dropped"`
}

// Result is the output of one orchestrator run.
type Result struct {
	// Events holds exactly one entry per distinct input identifier.
	Events   map[string]model.ComposedEvent
	Warnings []model.Warning
	Changes  Changes
}

// Orchestrator drives raw events through the pipeline stages. It holds only
// configuration and may be reused across runs.
type Orchestrator struct {
	policy   duty.Policy
	workers  int
	classify func(title string) duty.Result
}

// NewOrchestrator returns an orchestrator using policy for reminders and at
// most workers goroutines per run. workers <= 0 uses GOMAXPROCS.
func NewOrchestrator(policy duty.Policy, workers int) *Orchestrator {
	if policy == nil {
		policy = duty.DefaultPolicy()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Orchestrator{policy: policy, workers: workers, classify: duty.Classify}
}

type processed struct {
	event    model.ComposedEvent
	warnings []model.Warning
}

// Run processes raw against dir. existing is the previous output; entries
// absent from raw are dropped. One event's failure never affects another.
func (o *Orchestrator) Run(raw []model.RawEvent, existing map[string]model.ComposedEvent, dir *airport.Directory) Result {
	// Each event is independent and the directory is read-only, so the pool
	// needs no cancellation.
	outcomes, _ := concurrency.ProcessParallel(context.Background(), raw,
		concurrency.ParallelOptions{MaxWorkers: o.workers},
		func(_ context.Context, _ int, ev model.RawEvent) (processed, error) {
			return o.process(ev, dir), nil
		})

	res := Result{Events: make(map[string]model.ComposedEvent, len(raw))}
	for i, out := range outcomes {
		id := raw[i].ID
		if _, dup := res.Events[id]; dup {
			res.Warnings = append(res.Warnings, model.Warning{
				EventID: id,
				Kind:    model.WarningDuplicateID,
				Message: fmt.Sprintf("identifier occurs more than once in input, keeping entry %d", i),
			})
		}
		res.Events[id] = out.event
		res.Warnings = append(res.Warnings, out.warnings...)
	}

	res.Changes = diff(existing, res.Events)
	return res
}

// process runs one event through the stages. A panic in any stage is
// recovered and the event degrades to Unknown.
func (o *Orchestrator) process(ev model.RawEvent, dir *airport.Directory) (out processed) {
	defer func() {
		if r := recover(); r != nil {
			out = processed{
				event: Compose(ev, duty.Unknown{RawTitle: ev.Title}, nil, nil, nil),
				warnings: []model.Warning{{
					EventID: ev.ID,
					Kind:    model.WarningEventFailure,
					Message: fmt.Sprintf("processing failed: %v", r),
				}},
			}
		}
	}()

	cls := o.classify(ev.Title)
	legs, legWarnings := Resolve(cls.Kind, dir)
	reminders := o.policy.RemindersFor(cls.Kind)

	warnings := make([]model.Warning, 0, len(cls.Warnings)+len(legWarnings))
	warnings = append(warnings, cls.Warnings...)
	warnings = append(warnings, legWarnings...)
	for i := range warnings {
		warnings[i].EventID = ev.ID
	}

	return processed{
		event:    Compose(ev, cls.Kind, legs, reminders, warnings),
		warnings: warnings,
	}
}

func diff(existing, next map[string]model.ComposedEvent) Changes {
	var c Changes
	for id, ev := range next {
		prev, ok := existing[id]
		switch {
		case !ok:
			c.Inserted++
		case prev.Equal(ev):
			c.Unchanged++
		default:
			c.Updated++
		}
	}
	for id := range existing {
		if _, ok := next[id]; !ok {
			c.Dropped++
		}
	}
	return c
}
