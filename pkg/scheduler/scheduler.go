// Package scheduler owns the lifetime of the agent's periodic workers:
// one goroutine per collector kind, each running {collect → dispatch →
// sleep} behind a context.Context, with heartbeats and per-worker
// failure isolation (spec.md §4.1).
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/clock"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// Collector is anything the scheduler can tick: one Collect call per
// interval, producing zero or more events.
type Collector interface {
	Collect(ctx context.Context) ([]model.Event, error)
}

// Dispatch is called once per produced event, in order.
type Dispatch func(model.Event)

// Worker pairs a named Collector with its tick interval.
type Worker struct {
	Name      string
	Collector Collector
	Interval  time.Duration
}

// Scheduler runs a fixed set of Workers until Stop is called.
type Scheduler struct {
	workers    []Worker
	dispatch   Dispatch
	clock      clock.Clock
	log        *zap.Logger
	heartbeats sync.Map // string -> time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler over workers, invoking dispatch for every event
// any worker's Collect call produces.
func New(workers []Worker, dispatch Dispatch, clk clock.Clock, log *zap.Logger) *Scheduler {
	return &Scheduler{workers: workers, dispatch: dispatch, clock: clk, log: log}
}

// Start launches every worker in its own goroutine. It returns
// immediately; call Stop (or cancel ctx) to shut down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, w := range s.workers {
		w := w
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx, w)
		}()
	}
}

// Stop signals every worker to exit and waits for them to drain. Each
// worker exits at its next cancellation check, within at most one
// interval plus one in-flight tick.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Heartbeat returns the last tick time recorded for name, and whether
// the worker has ever ticked.
func (s *Scheduler) Heartbeat(name string) (time.Time, bool) {
	v, ok := s.heartbeats.Load(name)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

// Unhealthy reports whether name's last heartbeat is older than
// 3*interval, per spec.md §4.1.
func (s *Scheduler) Unhealthy(name string, interval time.Duration) bool {
	ts, ok := s.Heartbeat(name)
	if !ok {
		return false
	}
	return s.clock.Now().Sub(ts) > 3*interval
}

func (s *Scheduler) run(ctx context.Context, w Worker) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, w)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, w Worker) {
	s.heartbeats.Store(w.Name, s.clock.Now())

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("worker tick panicked, continuing", zap.String("worker", w.Name), zap.Any("panic", r))
		}
	}()

	events, err := w.Collector.Collect(ctx)
	if err != nil {
		s.log.Error("worker tick failed, continuing", zap.String("worker", w.Name), zap.Error(err))
	}

	for _, e := range events {
		s.dispatch(e)
	}
}
