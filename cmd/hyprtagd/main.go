// Command hyprtagd is the daemon entrypoint: it resolves the compositor's
// runtime directory, queries its monitor topology, binds the control
// socket, and runs the event loop until terminated. Grounded on the
// teacher's cmd/server/main.go wiring shape.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyprtagd/hyprtagd/internal/config"
	"github.com/hyprtagd/hyprtagd/internal/ctrlsock"
	"github.com/hyprtagd/hyprtagd/internal/daemon"
	"github.com/hyprtagd/hyprtagd/internal/debugserver"
	"github.com/hyprtagd/hyprtagd/internal/health"
	"github.com/hyprtagd/hyprtagd/internal/monitorset"
	"github.com/hyprtagd/hyprtagd/internal/wm"
)

func main() {
	mockMode := flag.Bool("mock", false, "replay a scripted fixture event stream instead of connecting to the compositor")
	debugOverride := flag.Bool("debug", false, "force-enable the debug introspection server regardless of config")
	configPath := flag.String("config", "", "path to config file (defaults to the XDG config location)")
	flag.Parse()

	bootLog := newLogger(slog.LevelInfo)

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		bootLog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *debugOverride {
		cfg.Debug.Enabled = true
	}
	log := newLogger(parseLevel(cfg.LogLevel)).With("component", "hyprtagd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtimeDir, eventSocketPath, controlSocketPath, wmTopology := resolveRuntime(ctx, *mockMode, cfg, log)

	topology := make([]monitorset.Info, len(wmTopology))
	for i, m := range wmTopology {
		topology[i] = monitorset.Info{ID: m.ID, Name: m.Name, Focused: m.Focused}
	}
	ms := monitorset.New(topology)

	ctrl, err := ctrlsock.NewListener(controlSocketPath, log.With("component", "ctrlsock"))
	if err != nil {
		log.Error("failed to bind control socket", "err", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	writer := wm.NewWriter("", log.With("component", "wm"))

	var sources []wm.Source
	if *mockMode {
		sources = append(sources, mockFixtureSource())
	} else {
		sources = append(sources, wm.NewHyprlandSource(eventSocketPath, log.With("component", "wm")))
	}

	var watcher *health.Watcher
	if !*mockMode {
		watcher = health.NewWatcher(runtimeDir, eventSocketPath, controlSocketPath, cfg.Health.CheckInterval, cfg.Health.FailureThreshold, log.With("component", "health"))
		go watcher.Run(ctx)
	}

	var debugSrv *debugserver.Server
	var debugIface daemon.Debug
	if cfg.Debug.Enabled {
		debugSrv = debugserver.New(cfg.Debug.Addr, ms, watcher, cfg.Debug.RedactAddresses, cfg.Debug.BroadcastThrottle, log.With("component", "debugserver"))
		debugIface = debugSrv.Broadcaster()
		go func() {
			if err := debugSrv.Run(ctx); err != nil {
				log.Error("debug server exited", "err", err)
			}
		}()
	}

	topologyFn := wm.Topology
	if *mockMode {
		topologyFn = func(context.Context) ([]wm.MonitorInfo, error) { return wmTopology, nil }
	}

	loop := daemon.New(ms, writer, ctrl, sources, topologyFn, debugIface, log.With("component", "daemon"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	log.Info("hyprtagd starting", "runtime_dir", runtimeDir, "monitors", len(topology), "mock", *mockMode)
	if err := loop.Run(ctx); err != nil {
		log.Error("event loop exited with error", "err", err)
		os.Exit(1)
	}
}

func resolveRuntime(ctx context.Context, mock bool, cfg *config.Config, log *slog.Logger) (runtimeDir, eventSocketPath, controlSocketPath string, topology []wm.MonitorInfo) {
	if mock {
		return "", "", os.TempDir() + "/hyprtagd-mock.sock", []wm.MonitorInfo{
			{ID: 0, Name: "DP-1", Focused: true},
			{ID: 1, Name: "DP-2"},
		}
	}

	dir, err := wm.RuntimeDir()
	if err != nil {
		log.Error("failed to resolve compositor runtime directory", "err", err)
		os.Exit(1)
	}
	mons, err := wm.Topology(ctx)
	if err != nil {
		log.Error("failed to query monitor topology", "err", err)
		os.Exit(1)
	}

	eventSockName := cfg.Sockets.EventSocketName
	if eventSockName == "" {
		eventSockName = filepath.Base(wm.EventSocketPath(dir))
	}
	ctrlSockName := cfg.Sockets.ControlSocketName
	if ctrlSockName == "" {
		ctrlSockName = filepath.Base(wm.ControlSocketPath(dir))
	}

	return dir, filepath.Join(dir, eventSockName), filepath.Join(dir, ctrlSockName), mons
}

func mockFixtureSource() wm.Source {
	return &wm.FixtureSource{Events: []wm.FixtureEvent{
		{After: 500 * time.Millisecond, Event: wm.RawEvent{Name: "activewindowv2", Arg0: "0x1"}},
		{After: 1500 * time.Millisecond, Event: wm.RawEvent{Name: "activewindowv2", Arg0: "0x2"}},
	}}
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
