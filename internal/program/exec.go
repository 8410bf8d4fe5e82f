package program

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a subprocess.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusFailed  Status = "failed"
)

// Config holds configuration for a subprocess program.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// OnStop is called once when the process is gone.
	OnStop func(err error)
}

// Supervisor owns one subprocess. It starts it once and never restarts it.
type Supervisor struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	lastError     error
	startTime     time.Time
	stopRequested bool

	done chan struct{}
}

// NewSupervisor creates a supervisor for cfg.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}
	return &Supervisor{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the subprocess and begins waiting for it.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.status == StatusRunning {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.config.Name)
	}
	s.stopRequested = false
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("starting program",
		"name", s.config.Name,
		"binary", s.config.Binary,
		"args", s.config.Args,
	)

	cmd := exec.Command(s.config.Binary, s.config.Args...) //nolint:gosec // path comes from the operator's factory document

	// Own process group so Stop reaches the program's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = append(os.Environ(), s.config.Env...)
	if s.config.WorkDir != "" {
		cmd.Dir = s.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.fail(fmt.Errorf("creating stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.fail(fmt.Errorf("creating stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return s.fail(fmt.Errorf("starting %s: %w", s.config.Name, err))
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	s.startTime = time.Now()
	s.mu.Unlock()

	var output sync.WaitGroup
	output.Add(2)
	go s.captureOutput("stdout", stdout, &output)
	go s.captureOutput("stderr", stderr, &output)

	s.logger.Info("program started", "name", s.config.Name, "pid", cmd.Process.Pid)

	go s.wait(cmd, &output)
	return nil
}

func (s *Supervisor) fail(err error) error {
	s.mu.Lock()
	s.status = StatusFailed
	s.lastError = err
	close(s.done)
	s.mu.Unlock()
	return err
}

// captureOutput logs each line the program writes.
func (s *Supervisor) captureOutput(stream string, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if stream == "stderr" {
			s.logger.Warn("program output", "name", s.config.Name, "stream", stream, "line", scanner.Text())
			continue
		}
		s.logger.Info("program output", "name", s.config.Name, "stream", stream, "line", scanner.Text())
	}
}

func (s *Supervisor) wait(cmd *exec.Cmd, output *sync.WaitGroup) {
	// Pipes must be drained before Wait closes them.
	output.Wait()
	err := cmd.Wait()

	s.mu.Lock()
	stopRequested := s.stopRequested
	switch {
	case stopRequested:
		s.status = StatusStopped
		err = nil
	case err != nil:
		s.status = StatusFailed
	default:
		s.status = StatusExited
	}
	s.lastError = err
	done := s.done
	s.mu.Unlock()

	if stopRequested {
		s.logger.Info("program stopped as requested", "name", s.config.Name)
	} else if err != nil {
		s.logger.Warn("program exited with error", "name", s.config.Name, "error", err)
	} else {
		s.logger.Info("program exited", "name", s.config.Name)
	}

	if s.config.OnStop != nil {
		s.config.OnStop(err)
	}
	close(done)
}

// Done is closed once the subprocess is gone. It is nil before Start.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Stop sends SIGTERM to the process group, then SIGKILL after the
// graceful timeout.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return nil
	}
	s.stopRequested = true
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	pid := cmd.Process.Pid
	s.logger.Info("stopping program", "name", s.config.Name, "pid", pid)

	// Negative PID signals the whole group created via Setpgid.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("failed to send SIGTERM to process group", "name", s.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.config.GracefulTimeout):
		s.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", s.config.Name,
			"timeout", s.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", s.config.Name, err)
	}
	<-done
	s.logger.Info("program killed", "name", s.config.Name)
	return nil
}

// Status returns the current status of the subprocess.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastError returns the error the subprocess exited with.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Stats describes a subprocess for status reporting.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the subprocess.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Name: s.config.Name, Status: s.status}
	if s.cmd != nil && s.cmd.Process != nil {
		stats.PID = s.cmd.Process.Pid
	}
	if s.status == StatusRunning {
		stats.Uptime = time.Since(s.startTime)
	}
	if s.lastError != nil {
		stats.LastError = s.lastError.Error()
	}
	return stats
}

// Exec returns a Program that runs cfg as a subprocess. The process name
// and client are passed as FACTORYD_PROGRAM and FACTORYD_CLIENT; the
// subprocess is stopped when the program's context ends.
func Exec(cfg Config) Program {
	return func(ctx context.Context, h Handle) error {
		c := cfg
		if c.Name == "" {
			c.Name = h.Name
		}
		c.Env = append(append([]string(nil), c.Env...),
			"FACTORYD_PROGRAM="+h.Name,
			"FACTORYD_CLIENT="+h.Client,
		)

		sup := NewSupervisor(c)
		sup.SetLogger(h.logger())
		if err := sup.Start(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			if err := sup.Stop(); err != nil {
				return err
			}
			return ctx.Err()
		case <-sup.Done():
			return sup.LastError()
		}
	}
}
