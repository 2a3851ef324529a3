package debugserver

import (
	"github.com/hyprtagd/hyprtagd/internal/health"
	"github.com/hyprtagd/hyprtagd/internal/monitorset"
)

// MessageType identifies the payload shape of a WebSocket frame.
type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgDelta    MessageType = "delta"
	MsgHealth   MessageType = "health"
)

// Message is the envelope for every frame sent to a connected client.
type Message struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// MonitorPayload is the JSON-facing projection of a monitorset.Monitor, with
// window addresses optionally redacted by the privacy filter.
type MonitorPayload struct {
	Index        int      `json:"index"`
	Name         string   `json:"name"`
	VisibleTags  uint32   `json:"visible_tags"`
	ActiveTag    int      `json:"active_tag"`
	ActiveWindow string   `json:"active_window,omitempty"`
	Windows      []string `json:"windows,omitempty"`
}

// SnapshotPayload is the full daemon state, sent to a WebSocket client once
// on connect and returned by /api/state; no periodic snapshots are sent.
type SnapshotPayload struct {
	ActiveMonitor int              `json:"active_monitor"`
	Monitors      []MonitorPayload `json:"monitors"`
	Health        *HealthPayload   `json:"health,omitempty"`
}

// DeltaPayload mirrors a monitorset.Changes as sent over the wire.
type DeltaPayload struct {
	MonitorIndex int      `json:"monitor_index"`
	Added        []string `json:"added,omitempty"`
	Removed      []string `json:"removed,omitempty"`
	Focus        string   `json:"focus,omitempty"`
}

// HealthPayload mirrors health.Status for JSON clients.
type HealthPayload struct {
	Healthy          bool    `json:"healthy"`
	ConsecutiveFails int     `json:"consecutive_fails"`
	LastError        string  `json:"last_error,omitempty"`
	CPUPercent       float64 `json:"cpu_percent"`
	RSSBytes         uint64  `json:"rss_bytes"`
}

func toHealthPayload(s health.Status) HealthPayload {
	return HealthPayload{
		Healthy:          s.Healthy,
		ConsecutiveFails: s.ConsecutiveFails,
		LastError:        s.LastError,
		CPUPercent:       s.CPUPercent,
		RSSBytes:         s.RSSBytes,
	}
}

func toMonitorPayloads(monitors []*monitorset.Monitor, redact bool) []MonitorPayload {
	out := make([]MonitorPayload, 0, len(monitors))
	for i, m := range monitors {
		p := MonitorPayload{
			Index:       i,
			Name:        m.Name,
			VisibleTags: m.State.VisibleTags(),
			ActiveTag:   m.State.ActiveTagIndex(),
		}
		if addr := m.State.ActiveWindow(); addr != nil {
			p.ActiveWindow = redactAddr(string(*addr), redact)
		}
		for _, tag := range m.State.Tags() {
			for _, w := range tag.Windows() {
				p.Windows = append(p.Windows, redactAddr(string(w), redact))
			}
		}
		out = append(out, p)
	}
	return out
}

func redactAddr(addr string, redact bool) string {
	if !redact || addr == "" {
		return addr
	}
	if len(addr) <= 6 {
		return "0x…"
	}
	return addr[:6] + "…"
}
