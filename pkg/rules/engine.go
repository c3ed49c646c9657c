package rules

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// StatelessRule fires on a single event satisfying a predicate; the
// engine invokes BuildAlert only when Match returns true.
type StatelessRule interface {
	Name() string
	EventPrefix() string
	Match(e model.Event) bool
	BuildAlert(e model.Event) model.Alert
	BuildEvidence(e model.Event) []model.EvidenceRef
}

// ThresholdRule encapsulates "the same event-kind against the same key
// occurs >= threshold times within window": a common stateful rule
// shape built on Context.
type ThresholdRule interface {
	Name() string
	EventPrefix() string
	IsRelevant(e model.Event) bool
	Key(e model.Event) string
	Threshold() int
	Window() time.Duration
	CreateAlert(key string, entries []Entry) model.Alert
}

// Engine evaluates every registered rule against each event, indexed by
// event_prefix so irrelevant rules are skipped cheaply.
type Engine struct {
	stateless []StatelessRule
	threshold []ThresholdRule
	ctx       *Context
	log       *zap.Logger
}

// NewEngine builds an Engine over the given rule sets, sharing one
// correlation Context across all threshold rules.
func NewEngine(stateless []StatelessRule, threshold []ThresholdRule, ctx *Context, log *zap.Logger) *Engine {
	return &Engine{stateless: stateless, threshold: threshold, ctx: ctx, log: log}
}

// Evaluate runs every applicable rule against ev and returns the alert
// bundles produced. A panic or error from one rule is caught and
// logged; it never prevents other rules from evaluating the same event.
func (e *Engine) Evaluate(ev model.Event) []model.AlertBundle {
	var bundles []model.AlertBundle

	for _, r := range e.stateless {
		if !hasPrefix(ev.Type, r.EventPrefix()) {
			continue
		}
		if bundle, ok := e.evalStateless(r, ev); ok {
			bundles = append(bundles, bundle)
		}
	}

	for _, r := range e.threshold {
		if !hasPrefix(ev.Type, r.EventPrefix()) {
			continue
		}
		if bundle, ok := e.evalThreshold(r, ev); ok {
			bundles = append(bundles, bundle)
		}
	}

	return bundles
}

func hasPrefix(eventType, prefix string) bool {
	return prefix == "" || strings.HasPrefix(eventType, prefix)
}

func (e *Engine) evalStateless(r StatelessRule, ev model.Event) (bundle model.AlertBundle, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("rule panicked, skipping", zap.String("rule", r.Name()), zap.Any("panic", rec))
			ok = false
		}
	}()

	if !r.Match(ev) {
		return model.AlertBundle{}, false
	}

	alert := r.BuildAlert(ev)
	evidence := r.BuildEvidence(ev)
	return model.AlertBundle{Alert: alert, Evidence: evidence}, true
}

func (e *Engine) evalThreshold(r ThresholdRule, ev model.Event) (bundle model.AlertBundle, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("rule panicked, skipping", zap.String("rule", r.Name()), zap.Any("panic", rec))
			ok = false
		}
	}()

	if !r.IsRelevant(ev) {
		return model.AlertBundle{}, false
	}

	key := r.Key(ev)
	entry := Entry{EventID: ev.ID, EventType: ev.Type, Timestamp: ev.Timestamp}
	e.ctx.Add(r.Name(), key, entry, r.Window())

	entries := e.ctx.Get(r.Name(), key, r.Window(), ev.Timestamp)
	if len(entries) < r.Threshold() {
		return model.AlertBundle{}, false
	}

	alert := r.CreateAlert(key, entries)
	e.ctx.ClearKey(r.Name(), key)

	// A rule that supplies its own evidence_resolve spec (the writer's
	// generic resolver, §4.9) relies on it exclusively; explicit TRIGGER
	// rows here would duplicate what the resolver writes as SUPPORT rows
	// for the same underlying events.
	var evidence []model.EvidenceRef
	if _, ok := alert.Extra["evidence_resolve"]; !ok {
		evidence = evidenceFromEntries(entries)
	}

	return model.AlertBundle{Alert: alert, Evidence: evidence}, true
}

func evidenceFromEntries(entries []Entry) []model.EvidenceRef {
	out := make([]model.EvidenceRef, len(entries))
	for i, en := range entries {
		out[i] = model.EvidenceRef{
			EventType: en.EventType,
			EventID:   en.EventID,
			Role:      model.RoleTrigger,
			Sequence:  i + 1,
		}
	}
	return out
}
