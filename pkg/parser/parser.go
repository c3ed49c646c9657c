// Package parser dispatches raw log lines to source-specific parsers,
// each of which emits a canonical LogPayload (spec.md §4.4).
package parser

import (
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// Parser recognizes and decodes lines from one log source.
type Parser interface {
	// Match reports whether line looks like it belongs to this source.
	Match(line string) bool
	// Parse decodes line into a LogPayload and its extracted timestamp
	// (falling back to now when none could be extracted). Only called
	// when Match returned true; a parser-internal failure is not an
	// error — it falls back to the generic *_EVENT type with
	// best-effort fields.
	Parse(line string, now time.Time) (model.LogPayload, time.Time)
}

// Dispatcher selects a Parser by source tag and hands it raw lines.
type Dispatcher struct {
	parsers map[model.SourceTag]Parser
}

// NewDispatcher wires up the canonical parser set.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{parsers: map[model.SourceTag]Parser{
		model.SourceAuth:   AuthParser{},
		model.SourceSyslog: SyslogParser{},
		model.SourceKernel: KernelParser{},
		model.SourceDpkg:   DpkgParser{},
		model.SourceUFW:    UFWParser{},
	}}
}

// Dispatch parses raw against the parser registered for its source tag.
// A non-matching line is silently dropped (spec.md §4.3's documented
// edge case, and §7's "Parser non-match: treat as not-an-error"). It
// returns the decoded payload and the timestamp to stamp the resulting
// Event with.
func (d *Dispatcher) Dispatch(raw model.RawLogLine, now time.Time) (model.LogPayload, time.Time, bool) {
	p, ok := d.parsers[raw.SourceTag]
	if !ok || !p.Match(raw.Text) {
		return model.LogPayload{}, time.Time{}, false
	}
	payload, ts := p.Parse(raw.Text, now)
	return payload, ts, true
}
