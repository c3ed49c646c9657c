package dispatcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/clock"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/rules"
)

type fakeSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (f *fakeSink) Enqueue(e model.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return true
}

func (f *fakeSink) All() []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Event, len(f.events))
	copy(out, f.events)
	return out
}

func TestDispatchAssignsSequentialIDs(t *testing.T) {
	sink := &fakeSink{}
	eng := rules.NewEngine(nil, nil, rules.NewContext(), zap.NewNop())
	d := New(sink, eng, clock.Real{}, zap.NewNop())

	d.Dispatch(model.Event{Type: "LOG_EVENT", Log: &model.LogPayload{}})
	d.Dispatch(model.Event{Type: "LOG_EVENT", Log: &model.LogPayload{}})

	events := sink.All()
	require.Len(t, events, 2)
	assert.Less(t, events[0].ID, events[1].ID)
}

func TestDispatchStampsTypeAndTimestampWhenUnset(t *testing.T) {
	sink := &fakeSink{}
	eng := rules.NewEngine(nil, nil, rules.NewContext(), zap.NewNop())
	d := New(sink, eng, clock.Real{}, zap.NewNop())

	d.Dispatch(model.Event{Process: &model.ProcessPayload{EventType: "PROCESS_NEW"}})

	events := sink.All()
	require.Len(t, events, 1)
	assert.Equal(t, "PROCESS_NEW", events[0].Type)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestDispatchEnqueuesEventBeforeDerivedAlert(t *testing.T) {
	sink := &fakeSink{}
	eng := rules.NewEngine([]rules.StatelessRule{procSuspicious{}}, nil, rules.NewContext(), zap.NewNop())
	d := New(sink, eng, clock.Real{}, zap.NewNop())

	d.Dispatch(model.Event{
		Type: "PROCESS_NEW",
		Process: &model.ProcessPayload{EventType: "PROCESS_NEW", Name: "nmap"},
	})

	events := sink.All()
	require.Len(t, events, 2)
	assert.Equal(t, "PROCESS_NEW", events[0].Type)
	assert.Equal(t, "ALERT", events[1].Type)
	assert.Less(t, events[0].ID, events[1].ID)
	require.NotNil(t, events[1].Alert)
	assert.Equal(t, "PROC_001", events[1].Alert.Alert.RuleName)
	assert.NotEmpty(t, events[1].Alert.Alert.ExternalID)
}

// procSuspicious mirrors rules.SuspiciousProcessRule without importing
// parser's hacking-tool set, keeping this test self-contained.
type procSuspicious struct{}

func (procSuspicious) Name() string        { return "PROC_001" }
func (procSuspicious) EventPrefix() string { return "PROCESS_" }
func (procSuspicious) Match(e model.Event) bool {
	return e.Process != nil && e.Process.Name == "nmap"
}
func (procSuspicious) BuildAlert(e model.Event) model.Alert {
	return model.Alert{Timestamp: time.Now(), RuleName: "PROC_001", Severity: model.SeverityHigh, Type: "ALERT"}
}
func (procSuspicious) BuildEvidence(e model.Event) []model.EvidenceRef {
	return []model.EvidenceRef{{EventType: e.Type, EventID: e.ID, Role: model.RoleTrigger, Sequence: 1}}
}
