package debugserver

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyprtagd/hyprtagd/internal/health"
	"github.com/hyprtagd/hyprtagd/internal/monitorset"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 16)}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() { close(c.send) }

// Broadcaster fans snapshot and delta frames out to every connected debug
// client, throttling bursts of deltas the way the teacher's ws.Broadcaster
// coalesces session updates.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	ms      *monitorset.MonitorSet
	watcher *health.Watcher
	redact  bool
	log     *slog.Logger

	throttle   time.Duration
	flushMu    sync.Mutex
	pending    []DeltaPayload
	flushTimer *time.Timer

	seq atomic.Uint64
}

// NewBroadcaster constructs a Broadcaster over ms, optionally enriching
// snapshots with watcher's health status (watcher may be nil).
func NewBroadcaster(ms *monitorset.MonitorSet, watcher *health.Watcher, redact bool, throttle time.Duration, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		clients:  make(map[*client]bool),
		ms:       ms,
		watcher:  watcher,
		redact:   redact,
		throttle: throttle,
		log:      log,
	}
}

func (b *Broadcaster) addClient(conn *websocket.Conn) *client {
	c := newClient(conn)
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	b.sendSnapshot(c)
	return c
}

func (b *Broadcaster) removeClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) snapshot() SnapshotPayload {
	p := SnapshotPayload{
		ActiveMonitor: b.ms.ActiveMonitorIndex(),
		Monitors:      toMonitorPayloads(b.ms.Monitors(), b.redact),
	}
	if b.watcher != nil {
		hp := toHealthPayload(b.watcher.Status())
		p.Health = &hp
	}
	return p
}

func (b *Broadcaster) sendSnapshot(c *client) {
	msg := Message{Type: MsgSnapshot, Seq: b.seq.Add(1), Payload: b.snapshot()}
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error("marshal snapshot", "err", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// QueueDelta coalesces a change record; frames are flushed at most once per
// throttle interval.
func (b *Broadcaster) QueueDelta(d DeltaPayload) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	b.pending = append(b.pending, d)
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	deltas := b.pending
	b.pending = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	for _, d := range deltas {
		b.broadcast(Message{Type: MsgDelta, Payload: d})
	}
}

// BroadcastHealth sends an out-of-band health frame to every connected
// client. Nothing in the daemon calls it; health status otherwise reaches
// clients only inside snapshots.
func (b *Broadcaster) BroadcastHealth(s health.Status) {
	b.broadcast(Message{Type: MsgHealth, Payload: toHealthPayload(s)})
}

func (b *Broadcaster) broadcast(msg Message) {
	msg.Seq = b.seq.Add(1)
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error("marshal broadcast", "err", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			b.log.Warn("debug client too slow, disconnecting")
			b.removeClient(c)
		}
	}
}

// ClientCount reports the number of currently-connected debug clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
