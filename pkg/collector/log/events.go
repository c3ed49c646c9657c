package log

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/clock"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// ParserDispatcher decodes a raw line into a LogPayload, or reports no
// match. Satisfied by *parser.Dispatcher.
type ParserDispatcher interface {
	Dispatch(raw model.RawLogLine, now time.Time) (model.LogPayload, time.Time, bool)
}

// EventCollector adapts Collector's raw lines through a ParserDispatcher
// so the scheduler can drive log tailing the same way it drives the
// process/network/metrics collectors.
type EventCollector struct {
	tail   *Collector
	parser ParserDispatcher
	clock  clock.Clock
	log    *zap.Logger
}

// NewEventCollector builds an EventCollector over tail, decoding lines
// with parser.
func NewEventCollector(tail *Collector, parser ParserDispatcher, clk clock.Clock, log *zap.Logger) *EventCollector {
	return &EventCollector{tail: tail, parser: parser, clock: clk, log: log}
}

// Collect tails every configured source and parses each new line into a
// LOG_EVENT. Lines no parser recognizes are dropped, per spec.md §4.3/§7.
func (c *EventCollector) Collect(ctx context.Context) ([]model.Event, error) {
	lines, err := c.tail.Collect()
	if err != nil {
		c.log.Warn("log tail tick returned an error, continuing with partial lines", zap.Error(err))
	}

	now := c.clock.Now()
	events := make([]model.Event, 0, len(lines))
	for _, raw := range lines {
		payload, ts, ok := c.parser.Dispatch(raw, now)
		if !ok {
			continue
		}
		events = append(events, model.Event{
			Type:      "LOG_EVENT",
			Timestamp: ts,
			Log:       &payload,
		})
	}

	return events, err
}
