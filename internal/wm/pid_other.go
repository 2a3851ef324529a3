//go:build !linux

package wm

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// compositorPID reads <runtimeDir>/.pid, the convention Hyprland uses to
// record its own process id in the instance runtime directory.
func compositorPID(runtimeDir string) (int, error) {
	data, err := os.ReadFile(fmt.Sprintf("%s/.pid", runtimeDir))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("wm: parsing pid file: %w", err)
	}
	return pid, nil
}

// processAlive reports whether pid names a live process, using ps since
// non-Linux platforms have no /proc filesystem to probe.
func processAlive(pid int) bool {
	out, err := exec.Command("ps", "-o", "pid=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) != ""
}
