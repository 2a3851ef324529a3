// Package wm talks to the host window manager: it queries monitor
// topology, writes batched dispatch commands, and resolves the
// compositor's runtime directory and process id. Grounded on
// original_source/src/hyprctl.rs.
package wm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hyprtagd/hyprtagd/internal/dispatcher"
)

// InstanceSignatureEnv is the environment variable that identifies the
// running compositor instance (spec §6).
const InstanceSignatureEnv = "HYPRLAND_INSTANCE_SIGNATURE"

// RuntimeDir returns the per-instance runtime directory derived from the
// env var named InstanceSignatureEnv. Returns an error if the variable is
// unset, per spec §6 ("absence is a fatal startup error").
func RuntimeDir() (string, error) {
	sig := os.Getenv(InstanceSignatureEnv)
	if sig == "" {
		return "", fmt.Errorf("wm: %s is not set", InstanceSignatureEnv)
	}
	return filepath.Join("/tmp/hypr", sig), nil
}

// EventSocketPath returns the inbound event socket path within dir.
func EventSocketPath(dir string) string { return filepath.Join(dir, ".socket2.sock") }

// ControlSocketPath returns the daemon's own control socket path within dir.
func ControlSocketPath(dir string) string { return filepath.Join(dir, ".hyprtagctl.sock") }

// MonitorInfo is the shape returned by `hyprctl monitors -j`.
type MonitorInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Focused bool   `json:"focused"`
}

// Topology runs `hyprctl monitors -j` and decodes the result. Failure here
// during startup is fatal per spec §6/§7 (TopologyQueryFailure).
func Topology(ctx context.Context) ([]MonitorInfo, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", "monitors", "-j").Output()
	if err != nil {
		return nil, fmt.Errorf("wm: hyprctl monitors -j: %w", err)
	}
	var monitors []MonitorInfo
	if err := json.Unmarshal(out, &monitors); err != nil {
		return nil, fmt.Errorf("wm: decoding monitor topology: %w", err)
	}
	return monitors, nil
}

// PIDOf resolves the compositor's process id from its runtime directory.
func PIDOf(runtimeDir string) (int, error) {
	return compositorPID(runtimeDir)
}

// ProcessAlive reports whether pid names a live process. Implementation is
// platform-specific (see pid_linux.go / pid_other.go), mirroring the
// teacher's tmux_linux.go/tmux_other.go build-tag split for PID lookups.
func ProcessAlive(pid int) bool {
	return processAlive(pid)
}

// Writer dispatches batches of primitives to hyprctl. Dispatch never
// blocks the caller: each batch runs on a detached goroutine (spec §5 —
// "a slow window manager cannot stall event processing"). Ordering is
// preserved within a batch but not across batches.
type Writer struct {
	binary string
	log    *slog.Logger
}

// NewWriter returns a Writer that shells out to the given hyprctl binary
// (pass "" to use "hyprctl" from PATH).
func NewWriter(binary string, log *slog.Logger) *Writer {
	if binary == "" {
		binary = "hyprctl"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{binary: binary, log: log}
}

// Dispatch hands batch to a detached goroutine that joins the primitives
// with ";" and runs `hyprctl --batch "<joined>"`. No-op on an empty batch.
func (w *Writer) Dispatch(batch []dispatcher.Primitive) {
	if len(batch) == 0 {
		return
	}
	args := make([]string, len(batch))
	for i, p := range batch {
		args[i] = string(p)
	}
	joined := strings.Join(args, ";")

	go func() {
		cmd := exec.Command(w.binary, "--batch", joined)
		out, err := cmd.CombinedOutput()
		if err != nil {
			w.log.Error("hyprctl batch failed", "err", err, "batch", joined, "output", string(out))
			return
		}
		w.log.Debug("hyprctl batch ok", "batch", joined)
	}()
}
