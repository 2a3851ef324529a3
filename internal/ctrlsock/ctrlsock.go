// Package ctrlsock implements the daemon's control socket: a Unix listener
// that accepts newline-delimited commands and fans them into a bounded
// channel consumed by the event loop (spec §5, §6).
package ctrlsock

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/hyprtagd/hyprtagd/internal/tagstate"
)

// CommandKind identifies which control-socket verb a Command carries.
type CommandKind int

const (
	// CmdShow maps to set_visible_tags(1 << (tag-1)).
	CmdShow CommandKind = iota
	// CmdToggle maps to toggle_tag(tag).
	CmdToggle
	// CmdMove maps to move_window(tag, nil).
	CmdMove
	// CmdRestore maps to restore_prev_tags().
	CmdRestore
	// CmdMoveToNextMonitor is a cross-monitor move of the active window.
	CmdMoveToNextMonitor
)

// Command is a parsed, validated control-socket message. Malformed input
// never becomes a Command (spec §6: "invalid tag numbers are logged and
// dropped").
type Command struct {
	Kind CommandKind
	Tag  int
}

// QueueCapacity is the bounded channel size fed by all control
// connections, per spec §5.
const QueueCapacity = 10

// Listener binds a Unix control socket and fans parsed commands into a
// shared channel. Backpressure on the channel blocks the per-connection
// reader goroutine, never the main event loop (spec §5).
type Listener struct {
	path string
	log  *slog.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewListener binds path, recreating it if it already exists (the daemon
// assumes it is the sole owner, spec §5).
func NewListener(path string, log *slog.Logger) (*Listener, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("ctrlsock: removing stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ctrlsock: binding %s: %w", path, err)
	}
	return &Listener{path: path, log: log, ln: ln}, nil
}

// Close closes the underlying listener. No explicit unlink is required on
// shutdown per spec §5.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed, spawning one reader goroutine per connection that parses lines
// and enqueues Commands onto out.
func (l *Listener) Serve(ctx context.Context, out chan<- Command) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ctrlsock: accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(ctx, conn, out, l.log)
		}()
	}
}

func handleConn(ctx context.Context, conn net.Conn, out chan<- Command, log *slog.Logger) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			log.Warn("dropping malformed control command", "line", line, "err", err)
			continue
		}
		if cmd == nil {
			continue // unknown command, silently dropped per spec §6
		}
		select {
		case out <- *cmd:
		case <-ctx.Done():
			return
		}
	}
}

// ParseCommand parses one control-socket line. Unknown verbs return
// (nil, nil): silently dropped without logging, matching spec §6
// ("unknown commands are silently dropped").
func ParseCommand(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	verb := fields[0]
	args := fields[1:]

	switch verb {
	case "show":
		tag, err := parseTag(args)
		if err != nil {
			return nil, err
		}
		return &Command{Kind: CmdShow, Tag: tag}, nil
	case "toggle":
		tag, err := parseTag(args)
		if err != nil {
			return nil, err
		}
		return &Command{Kind: CmdToggle, Tag: tag}, nil
	case "move":
		tag, err := parseTag(args)
		if err != nil {
			return nil, err
		}
		return &Command{Kind: CmdMove, Tag: tag}, nil
	case "restore":
		return &Command{Kind: CmdRestore}, nil
	case "move_to_next_monitor":
		return &Command{Kind: CmdMoveToNextMonitor}, nil
	default:
		return nil, nil
	}
}

func parseTag(args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("ctrlsock: missing tag argument")
	}
	tag, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("ctrlsock: invalid tag %q: %w", args[0], err)
	}
	if tag < 1 || tag > tagstate.NumTags {
		return 0, fmt.Errorf("ctrlsock: tag %d out of range 1..=%d", tag, tagstate.NumTags)
	}
	return tag, nil
}
