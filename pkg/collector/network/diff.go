package network

import (
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// diff compares prior and current connection snapshots and returns the
// NET_* lifecycle events implied by the transition, plus the stateless
// CONNECTION_SUSPICIOUS_REMOTE / CONNECTION_UNUSUAL_PORT enrichment
// events for newly observed remote connections, per spec.md §4.6.
func diff(prior, current Snapshot, now time.Time, opts Options) []model.Event {
	var events []model.Event

	for k, rec := range current {
		if _, existed := prior[k]; !existed {
			if rec.IsListen {
				events = append(events, newEvent("NET_NEW_LISTEN_PORT", now, payloadFromRecord("NET_NEW_LISTEN_PORT", rec)))
				continue
			}

			events = append(events, newEvent("NET_NEW_CONNECTION", now, payloadFromRecord("NET_NEW_CONNECTION", rec)))
			events = append(events, enrichmentEvents(rec, now, opts)...)
		}
	}

	for k, rec := range prior {
		if _, stillExists := current[k]; !stillExists {
			eventType := "NET_CLOSED_CONNECTION"
			if rec.IsListen {
				eventType = "NET_CLOSED_LISTEN_PORT"
			}
			events = append(events, newEvent(eventType, now, payloadFromRecord(eventType, rec)))
		}
	}

	return events
}

func enrichmentEvents(rec Record, now time.Time, opts Options) []model.Event {
	var events []model.Event

	if rec.RemoteIP != "" && opts.isBlacklisted(rec.RemoteIP) {
		payload := payloadFromRecord("CONNECTION_SUSPICIOUS_REMOTE", rec)
		payload.Reason = "blacklisted_ip"
		events = append(events, newEvent("CONNECTION_SUSPICIOUS_REMOTE", now, payload))
	}

	if rec.RemotePort != 0 && opts.UnusualRemotePorts[int(rec.RemotePort)] {
		payload := payloadFromRecord("CONNECTION_UNUSUAL_PORT", rec)
		payload.Reason = "unusual_remote_port"
		events = append(events, newEvent("CONNECTION_UNUSUAL_PORT", now, payload))
	}

	return events
}

func payloadFromRecord(eventType string, rec Record) *model.NetworkPayload {
	return &model.NetworkPayload{
		EventType:   eventType,
		PID:         rec.PID,
		ProcessName: rec.ProcessName,
		Protocol:    rec.Protocol,
		LocalIP:     rec.LocalIP,
		LocalPort:   rec.LocalPort,
		RemoteIP:    rec.RemoteIP,
		RemotePort:  rec.RemotePort,
		Status:      rec.Status,
		IsListen:    rec.IsListen,
	}
}

func newEvent(eventType string, ts time.Time, payload *model.NetworkPayload) model.Event {
	return model.Event{Type: eventType, Timestamp: ts, Network: payload}
}
