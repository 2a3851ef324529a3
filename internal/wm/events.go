package wm

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

// RawEvent is one parsed line off the event socket: an event name and its
// first argument. Per spec §6 only arg0 is consumed; trailing comma-
// separated fields are intentionally discarded at this layer.
type RawEvent struct {
	Name string
	Arg0 string
}

// ParseEventLine parses a line of the form "event_name>>arg0[,arg1,...]".
// Lines without ">>" are treated as a bare event name with an empty arg0.
func ParseEventLine(line string) (RawEvent, error) {
	line = strings.TrimRight(line, "\r\n")
	idx := strings.Index(line, ">>")
	if idx == -1 {
		if line == "" {
			return RawEvent{}, fmt.Errorf("wm: empty event line")
		}
		return RawEvent{Name: line}, nil
	}
	name := line[:idx]
	rest := line[idx+2:]
	arg0 := rest
	if c := strings.IndexByte(rest, ','); c != -1 {
		arg0 = rest[:c]
	}
	return RawEvent{Name: name, Arg0: arg0}, nil
}

// Source produces a stream of RawEvents until ctx is cancelled or the
// underlying connection reaches EOF.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- RawEvent) error
}

// HyprlandSource connects to the real event socket and forwards parsed
// lines. Grounded on original_source/src/main.rs's event-stream loop.
type HyprlandSource struct {
	SocketPath string
	log        *slog.Logger
}

// NewHyprlandSource returns a Source that reads from socketPath.
func NewHyprlandSource(socketPath string, log *slog.Logger) *HyprlandSource {
	if log == nil {
		log = slog.Default()
	}
	return &HyprlandSource{SocketPath: socketPath, log: log}
}

func (s *HyprlandSource) Name() string { return "hyprland" }

// Run connects once and streams lines until EOF or ctx cancellation. It
// does not reconnect; the caller decides whether to treat EOF as fatal
// (spec §5: "on EOF of either socket... the event loop terminates").
func (s *HyprlandSource) Run(ctx context.Context, out chan<- RawEvent) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("wm: connecting to event socket: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			ev, perr := ParseEventLine(line)
			if perr != nil {
				s.log.Debug("dropping unparsable event line", "line", line, "err", perr)
			} else if ev.Arg0 != "" {
				select {
				case out <- ev:
				case <-ctx.Done():
					return nil
				}
			}
		}
		if err != nil {
			return nil // EOF or socket closed: clean termination, spec §5
		}
	}
}

// FixtureEvent is one scripted event in a FixtureSource timeline.
type FixtureEvent struct {
	After time.Duration
	Event RawEvent
}

// FixtureSource replays a scripted sequence of events, used by -mock mode
// and deterministic integration tests. Grounded on the teacher's
// internal/mock.Generator (ticker-driven, context-cancelable).
type FixtureSource struct {
	Events []FixtureEvent
}

func (s *FixtureSource) Name() string { return "fixture" }

// Run emits each scripted event after its delay, in order, then blocks
// until ctx is cancelled — exhausting the script is not EOF, so it must
// not trigger the event loop's single-source-exits-the-loop shutdown.
func (s *FixtureSource) Run(ctx context.Context, out chan<- RawEvent) error {
	for _, fe := range s.Events {
		timer := time.NewTimer(fe.After)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
		select {
		case out <- fe.Event:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}
