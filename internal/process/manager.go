// Package process records and controls the background tunnel process.
package process

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"
)

// TunnelProcess is the name the tunnel process is recorded under.
const TunnelProcess = "tunnel"

// StopTimeout is how long Stop waits after SIGTERM before killing.
const StopTimeout = 5 * time.Second

// ProcessInfo holds information about a managed process.
type ProcessInfo struct {
	Name    string    `json:"name"`
	PID     int       `json:"pid"`
	Binary  string    `json:"binary"`
	Args    []string  `json:"args"`
	Started time.Time `json:"started"`
}

// Manager tracks detached processes in a state file so a later invocation
// can find and stop them.
type Manager struct {
	statePath string
	processes map[string]*ProcessInfo
	mu        sync.RWMutex
}

// NewManager creates a manager and loads any live processes from statePath.
func NewManager(statePath string) *Manager {
	m := &Manager{
		statePath: statePath,
		processes: make(map[string]*ProcessInfo),
	}
	m.loadState()
	return m
}

// StartDetached starts binary in its own session with output appended to
// logPath, records it under name, and does not wait for it.
func (m *Manager) StartDetached(name, binary string, args []string, logPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunningLocked(name) {
		return fmt.Errorf("process %s is already running", name)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}

	cmd := exec.Command(binary, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	m.processes[name] = &ProcessInfo{
		Name:    name,
		PID:     cmd.Process.Pid,
		Binary:  binary,
		Args:    args,
		Started: time.Now(),
	}

	// Reap the child if it exits while we are still around.
	go func() {
		cmd.Wait()
		logFile.Close()
	}()

	return m.saveState()
}

// Record stores the current process under name. The tunnel process calls
// this for itself when it was not started through StartDetached.
func (m *Manager) Record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exe, _ := os.Executable()
	m.processes[name] = &ProcessInfo{
		Name:    name,
		PID:     os.Getpid(),
		Binary:  exe,
		Args:    os.Args[1:],
		Started: time.Now(),
	}
	return m.saveState()
}

// Forget drops name from the state file without signalling it.
func (m *Manager) Forget(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processes, name)
	return m.saveState()
}

// Stop stops a process by name, escalating to a kill after StopTimeout.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.processes[name]
	if !ok {
		return nil
	}

	proc, err := os.FindProcess(info.PID)
	if err != nil {
		delete(m.processes, name)
		return m.saveState()
	}

	if runtime.GOOS == "windows" {
		proc.Kill()
	} else if err := proc.Signal(syscall.SIGTERM); err == nil {
		deadline := time.Now().Add(StopTimeout)
		for alive(proc) && time.Now().Before(deadline) {
			time.Sleep(100 * time.Millisecond)
		}
		if alive(proc) {
			proc.Kill()
		}
	}

	delete(m.processes, name)
	return m.saveState()
}

// IsRunning checks if a process is running.
func (m *Manager) IsRunning(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunningLocked(name)
}

func (m *Manager) isRunningLocked(name string) bool {
	info, ok := m.processes[name]
	if !ok {
		return false
	}
	proc, err := os.FindProcess(info.PID)
	if err != nil {
		return false
	}
	return alive(proc)
}

// GetProcessInfo returns info about a specific process.
func (m *Manager) GetProcessInfo(name string) *ProcessInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if info, ok := m.processes[name]; ok {
		infoCopy := *info
		return &infoCopy
	}
	return nil
}

func alive(proc *os.Process) bool {
	if runtime.GOOS == "windows" {
		return true
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

type state struct {
	Processes []*ProcessInfo `json:"processes"`
}

func (m *Manager) loadState() error {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}

	for _, info := range st.Processes {
		proc, err := os.FindProcess(info.PID)
		if err != nil || !alive(proc) {
			continue
		}
		m.processes[info.Name] = info
	}

	return nil
}

func (m *Manager) saveState() error {
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0750); err != nil {
		return err
	}

	var st state
	for _, info := range m.processes {
		st.Processes = append(st.Processes, info)
	}

	data, err := json.MarshalIndent(&st, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.statePath, data, 0640)
}
