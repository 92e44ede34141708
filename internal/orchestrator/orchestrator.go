package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/missionctl/internal/events"
	"github.com/mattjoyce/missionctl/internal/log"
	"github.com/mattjoyce/missionctl/internal/model"
	"github.com/mattjoyce/missionctl/internal/store"
)

// Options tune the sweep loop. Zero values fall back to the defaults below.
type Options struct {
	TickInterval time.Duration
	RetryAfter   time.Duration
	MaxAttempts  int
	StuckAfter   time.Duration
}

const (
	defaultTickInterval = 60 * time.Second
	defaultRetryAfter   = 30 * time.Minute
	defaultMaxAttempts  = 3
	defaultStuckAfter   = 2 * time.Hour
)

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.RetryAfter <= 0 {
		o.RetryAfter = defaultRetryAfter
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.StuckAfter <= 0 {
		o.StuckAfter = defaultStuckAfter
	}
	return o
}

// Orchestrator periodically sweeps the task table: it dispatches assigned
// tasks that never went out, re-dispatches stale ones, and flags tasks that
// sat in progress past the stuck threshold.
type Orchestrator struct {
	store      store.Store
	dispatcher TaskDispatcher
	hub        *events.Hub
	opts       Options
	logger     *slog.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup

	mu      sync.Mutex
	flagged map[string]bool
}

// New creates an orchestrator. The hub may be nil.
func New(st store.Store, d TaskDispatcher, hub *events.Hub, opts Options) *Orchestrator {
	return &Orchestrator{
		store:      st,
		dispatcher: d,
		hub:        hub,
		opts:       opts.withDefaults(),
		logger:     log.WithComponent("orchestrator"),
		stopCh:     make(chan struct{}),
		flagged:    make(map[string]bool),
	}
}

// Start begins the tick loop. The first sweep runs immediately.
func (o *Orchestrator) Start(ctx context.Context) {
	o.logger.Info("Starting orchestrator", "tick_interval", o.opts.TickInterval)
	o.wg.Add(1)
	go o.tickLoop(ctx)
}

// Stop gracefully stops the orchestrator.
func (o *Orchestrator) Stop() {
	o.logger.Info("Stopping orchestrator")
	close(o.stopCh)
	o.wg.Wait()
	o.logger.Info("Orchestrator stopped")
}

func (o *Orchestrator) tickLoop(ctx context.Context) {
	defer o.wg.Done()

	o.Tick(ctx)

	ticker := time.NewTicker(o.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.Tick(ctx)
		case <-o.stopCh:
			return
		case <-ctx.Done():
			o.logger.Warn("Orchestrator context cancelled, stopping tick loop")
			return
		}
	}
}

// Tick performs one sweep over the task table. Per-task errors are logged
// and never abort the pass.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.logger.Debug("Orchestrator tick")
	if o.hub != nil {
		o.hub.Publish("orchestrator.tick", map[string]any{
			"at": time.Now().UTC(),
		})
	}

	tasks, err := o.store.Tasks()
	if err != nil {
		o.logger.Error("Orchestrator sweep failed to read tasks", "error", err)
		return
	}

	now := model.NowMs()
	for _, task := range tasks {
		o.sweepTask(ctx, task, now)
	}
}

func (o *Orchestrator) sweepTask(ctx context.Context, task model.Task, nowMs int64) {
	switch task.Status {
	case "assigned":
		if len(task.AssigneeIDs) == 0 {
			return
		}
		// No dispatch timestamp means no attempt ever went out, or the
		// last one failed before delivery. Either way the task needs a
		// fresh dispatch, not a retry.
		if task.Dispatch == nil || task.Dispatch.LastDispatchAtMs == 0 {
			o.logger.Info("Dispatching assigned task with no dispatch timestamp", "task", task.ID)
			if _, err := o.dispatcher.DispatchTask(ctx, task); err != nil {
				o.logger.Error("Sweep dispatch failed", "task", task.ID, "error", err)
			}
			return
		}
		o.maybeRetry(ctx, task, nowMs)
	case "inbox":
		if task.Dispatch != nil && task.Dispatch.LastDispatchAtMs != 0 {
			o.maybeRetry(ctx, task, nowMs)
		}
	case "in_progress":
		o.maybeFlagStuck(task, nowMs)
	}
}

// maybeRetry re-dispatches a task whose last attempt went out long enough
// ago without the task moving forward, up to the attempt cap.
func (o *Orchestrator) maybeRetry(ctx context.Context, task model.Task, nowMs int64) {
	meta := task.Dispatch
	if meta == nil || meta.LastDispatchStatus != "dispatched" {
		return
	}
	if meta.DispatchCount >= o.opts.MaxAttempts {
		return
	}
	age := time.Duration(nowMs-meta.LastDispatchAtMs) * time.Millisecond
	if age < o.opts.RetryAfter {
		return
	}

	o.logger.Info("Re-dispatching stale task",
		"task", task.ID,
		"age", age.Truncate(time.Second),
		"attempt", meta.DispatchCount+1,
	)
	if _, err := o.dispatcher.RetryDispatch(ctx, task.ID, ""); err != nil {
		o.logger.Error("Sweep retry failed", "task", task.ID, "error", err)
	}
}

// maybeFlagStuck records a synthetic timeout once per task, keyed on the
// task id, when it has sat in progress past the stuck threshold since its
// last dispatch. Tasks with no dispatch timestamp are left alone.
func (o *Orchestrator) maybeFlagStuck(task model.Task, nowMs int64) {
	if task.Dispatch == nil || task.Dispatch.LastDispatchAtMs == 0 {
		return
	}
	age := time.Duration(nowMs-task.Dispatch.LastDispatchAtMs) * time.Millisecond
	if age < o.opts.StuckAfter {
		return
	}

	o.mu.Lock()
	already := o.flagged[task.ID]
	if !already {
		o.flagged[task.ID] = true
	}
	o.mu.Unlock()
	if already {
		return
	}

	reason := fmt.Sprintf("task in progress for %s since last dispatch", age.Truncate(time.Minute))
	o.logger.Warn("Task exceeded in-progress threshold", "task", task.ID, "age", age.Truncate(time.Minute))
	o.dispatcher.RecordTimeout(task.ID, reason)
}
