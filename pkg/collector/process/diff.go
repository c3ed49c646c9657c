package process

import (
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// diff compares prior and current snapshots and returns the minimal set
// of PROCESS_* events implied by the transition, per spec.md §4.5. It
// never emits both PROCESS_NEW and PROCESS_TERMINATED for the same pid in
// the same tick, since a pid key is either only-in-current,
// only-in-prior, or common — never both.
func diff(prior, current Snapshot, now time.Time) []model.Event {
	var events []model.Event

	for key, rec := range current {
		if _, existed := prior[key]; !existed {
			events = append(events, newEvent("PROCESS_NEW", now, processPayloadFromRecord("PROCESS_NEW", rec)))
			continue
		}
	}

	for key, rec := range prior {
		if _, stillExists := current[key]; !stillExists {
			payload := processPayloadFromRecord("PROCESS_TERMINATED", rec)
			payload.RunTime = now.Sub(rec.CreateTime)
			events = append(events, newEvent("PROCESS_TERMINATED", now, payload))
			continue
		}

		cur := current[key]
		events = append(events, mutationEvents(rec, cur, now)...)
	}

	return events
}

func mutationEvents(old, cur Record, now time.Time) []model.Event {
	var events []model.Event

	if old.Exe != cur.Exe {
		payload := processPayloadFromRecord("PROCESS_EXEC_CHANGED", cur)
		payload.Old, payload.New = old.Exe, cur.Exe
		events = append(events, newEvent("PROCESS_EXEC_CHANGED", now, payload))
	}

	if old.Cmdline != cur.Cmdline {
		payload := processPayloadFromRecord("PROCESS_CMDLINE_CHANGED", cur)
		payload.Old, payload.New = old.Cmdline, cur.Cmdline
		events = append(events, newEvent("PROCESS_CMDLINE_CHANGED", now, payload))
	}

	if old.Username != cur.Username {
		payload := processPayloadFromRecord("PROCESS_PRIV_ESCALATION", cur)
		payload.Old, payload.New = old.Username, cur.Username
		events = append(events, newEvent("PROCESS_PRIV_ESCALATION", now, payload))
	}

	if old.Status != cur.Status {
		payload := processPayloadFromRecord("PROCESS_STATUS_CHANGED", cur)
		payload.Old, payload.New = old.Status, cur.Status
		events = append(events, newEvent("PROCESS_STATUS_CHANGED", now, payload))

		if cur.Status == "ZOMBIE" {
			events = append(events, newEvent("PROCESS_ZOMBIE_PROCESS", now, processPayloadFromRecord("PROCESS_ZOMBIE_PROCESS", cur)))
		}
	}

	if !old.ExeDeleted && cur.ExeDeleted {
		events = append(events, newEvent("PROCESS_EXEC_DELETED", now, processPayloadFromRecord("PROCESS_EXEC_DELETED", cur)))
	}

	if old.ExeHash != "" && cur.ExeHash != "" && old.ExeHash != cur.ExeHash {
		payload := processPayloadFromRecord("PROCESS_EXEC_HASH_CHANGED", cur)
		payload.Old, payload.New = old.ExeHash, cur.ExeHash
		events = append(events, newEvent("PROCESS_EXEC_HASH_CHANGED", now, payload))
	}

	return events
}

func processPayloadFromRecord(eventType string, rec Record) *model.ProcessPayload {
	return &model.ProcessPayload{
		EventType:  eventType,
		PID:        rec.PID,
		PPID:       rec.PPID,
		Name:       rec.Name,
		ParentName: rec.ParentName,
		Exe:        rec.Exe,
		Cmdline:    rec.Cmdline,
		Username:   rec.Username,
		CreateTime: rec.CreateTime,
		CPUPercent: rec.CPUPercent,
		MemoryRSS:  rec.MemoryRSS,
		MemoryVMS:  rec.MemoryVMS,
		ExeDeleted: rec.ExeDeleted,
		ExeHash:    rec.ExeHash,
	}
}

func newEvent(eventType string, ts time.Time, payload *model.ProcessPayload) model.Event {
	return model.Event{Type: eventType, Timestamp: ts, Process: payload}
}
