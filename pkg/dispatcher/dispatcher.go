// Package dispatcher routes every produced event to the writer's
// persistence queue and the rule engine, in that order, per spec.md
// §4.8. It never applies business logic beyond routing and ordering.
package dispatcher

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/rules"
)

// Sink receives every payload the dispatcher produces: raw events and
// synthesized ALERT events alike.
type Sink interface {
	Enqueue(model.Event) bool
}

// Dispatcher stamps, persists, and correlates every event the
// scheduler's collectors produce.
type Dispatcher struct {
	sink   Sink
	engine *rules.Engine
	clock  clockNow
	nextID int64
	log    *zap.Logger
}

type clockNow interface {
	Now() time.Time
}

// New builds a Dispatcher writing to sink and evaluating every event
// against engine.
func New(sink Sink, engine *rules.Engine, clk clockNow, log *zap.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, engine: engine, clock: clk, log: log}
}

// Dispatch tags ev with its canonical type/timestamp if unset, assigns
// it the next sequential event ID (so rules can cite a real id before
// the writer has persisted anything), enqueues it, then evaluates the
// rule engine and enqueues every produced alert as its own ALERT event.
// Events always precede their own derived alerts on the sink, since
// both happen on this single call stack before Dispatch returns.
func (d *Dispatcher) Dispatch(ev model.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.clock.Now()
	}
	if ev.Type == "" {
		ev.Type = inferType(ev)
	}
	ev.ID = atomic.AddInt64(&d.nextID, 1)

	if !d.sink.Enqueue(ev) {
		d.log.Warn("writer queue full, event dropped", zap.String("type", ev.Type), zap.Int64("id", ev.ID))
	}

	bundles := d.engine.Evaluate(ev)
	for _, b := range bundles {
		b := b
		if b.Alert.ExternalID == "" {
			b.Alert.ExternalID = uuid.NewString()
		}
		alertEvent := model.Event{
			ID:        atomic.AddInt64(&d.nextID, 1),
			Type:      "ALERT",
			Timestamp: b.Alert.Timestamp,
			Raw:       b.Alert.Message,
			Alert:     &b,
		}
		if !d.sink.Enqueue(alertEvent) {
			d.log.Warn("writer queue full, alert dropped", zap.String("rule", b.Alert.RuleName))
		}
	}
}

func inferType(ev model.Event) string {
	switch {
	case ev.Log != nil:
		return "LOG_EVENT"
	case ev.Process != nil:
		return ev.Process.EventType
	case ev.Network != nil:
		return ev.Network.EventType
	case ev.Metric != nil:
		return "METRIC_SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}
