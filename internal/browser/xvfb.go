package browser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// x11SocketDir holds one socket per X display, X<n>.
var x11SocketDir = "/tmp/.X11-unix"

// xvfbSocket maps a display such as ":99" or ":99.0" to its socket path.
func xvfbSocket(display string) (string, error) {
	num := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(num, '.'); i >= 0 {
		num = num[:i]
	}
	if num == "" || strings.Trim(num, "0123456789") != "" {
		return "", fmt.Errorf("invalid display %q", display)
	}
	return filepath.Join(x11SocketDir, "X"+num), nil
}

func xvfbArgs(display, screen string) []string {
	return []string{display, "-screen", "0", screen, "-ac", "-nolisten", "tcp"}
}

// startXvfb launches the virtual display used by headful Chrome and waits
// until its socket accepts clients.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}
	display := m.cfg.XvfbDisplay
	socket, err := xvfbSocket(display)
	if err != nil {
		return err
	}

	cmd := exec.Command("Xvfb", xvfbArgs(display, m.cfg.XvfbScreen)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if err := waitForSocket(socket, m.cfg.XvfbReadyTimeout, exited); err != nil {
		cmd.Process.Kill()
		return fmt.Errorf("xvfb %s: %w", display, err)
	}
	m.xvfb = cmd
	m.xvfbExited = exited

	m.cfg.Logger.Info("browser: xvfb started", "display", display, "screen", m.cfg.XvfbScreen, "pid", cmd.Process.Pid)
	return nil
}

// waitForSocket polls for path until it exists, the process reports on
// exited, or timeout passes.
func waitForSocket(path string, timeout time.Duration, exited <-chan error) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()

	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case err := <-exited:
			return fmt.Errorf("exited before ready: %v", err)
		case <-deadline.C:
			return fmt.Errorf("not ready after %s", timeout)
		case <-tick.C:
		}
	}
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if m.xvfb.Process != nil {
		m.xvfb.Process.Kill()
		<-m.xvfbExited
	}
	m.cfg.Logger.Info("browser: xvfb stopped", "display", m.cfg.XvfbDisplay)
	m.xvfb = nil
	m.xvfbExited = nil
}
