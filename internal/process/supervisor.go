package process

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opensandbox/marimoproxy/internal/config"
	"github.com/opensandbox/marimoproxy/internal/executable"
	"github.com/opensandbox/marimoproxy/internal/metrics"
)

const (
	upstreamHost = "127.0.0.1"
	killGrace    = 5 * time.Second
	pollInterval = 100 * time.Millisecond
)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	Override *config.Override
	Resolver config.Resolver
	Locator  executable.Locator

	// Port is the port marimo listens on; 0 picks a free one per spawn.
	Port int

	// ExternalAddr, when set, points at a marimo the supervisor does not
	// manage. The state then holds Unmanaged and nothing is ever spawned.
	ExternalAddr string

	// Args overrides the arguments appended to the launch command.
	// Used by tests to run stand-in servers.
	Args func(settings config.Settings, port int) []string
}

// Supervisor starts marimo on demand and tracks it in a State.
type Supervisor struct {
	cfg   SupervisorConfig
	state State
	addr  string
}

// NewSupervisor creates a supervisor. Nothing is started until EnsureRunning.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Args == nil {
		cfg.Args = editArgs
	}
	return &Supervisor{cfg: cfg}
}

// State implements Lookup.
func (s *Supervisor) State() (*State, bool) {
	return &s.state, true
}

// EnsureRunning returns the address of a live marimo, spawning one when the
// state is Stopped. The state lock is held while spawning so concurrent
// callers share one process.
func (s *Supervisor) EnsureRunning(ctx context.Context) (string, error) {
	s.state.Lock()
	defer s.state.Unlock()

	if s.cfg.ExternalAddr != "" {
		s.state.Set(Unmanaged)
		return s.cfg.ExternalAddr, nil
	}

	if p, ok := s.state.Current().(*proc); ok && p.alive() {
		return p.addr, nil
	}

	p, err := s.spawn(ctx)
	if err != nil {
		return "", err
	}
	s.state.Set(p)
	metrics.ProcessRunning.Set(1)
	return p.addr, nil
}

// Close stops the tracked process.
func (s *Supervisor) Close() error {
	s.state.Lock()
	defer s.state.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*killGrace)
	defer cancel()
	s.state.Stop(ctx)
	metrics.ProcessRunning.Set(0)
	return nil
}

func (s *Supervisor) spawn(ctx context.Context) (*proc, error) {
	settings := s.cfg.Resolver.Resolve(s.cfg.Override)
	argv, err := s.cfg.Locator.Command(settings)
	if err != nil {
		metrics.SpawnsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	port := s.cfg.Port
	if port == 0 {
		if port, err = freePort(); err != nil {
			metrics.SpawnsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("pick upstream port: %w", err)
		}
	}

	args := append(argv[1:len(argv):len(argv)], s.cfg.Args(settings, port)...)
	cmd := exec.Command(argv[0], args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.SpawnsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	p := &proc{
		cmd:  cmd,
		id:   uuid.New().String()[:8],
		addr: net.JoinHostPort(upstreamHost, strconv.Itoa(port)),
		done: make(chan struct{}),
	}
	go s.reap(p)

	logger := log.With().Str("instance", p.id).Int("pid", p.PID()).Str("addr", p.addr).Logger()
	logger.Info().Strs("argv", append([]string{argv[0]}, args...)).Msg("marimo starting")

	timeout := time.Duration(settings.Timeout()) * time.Second
	if err := p.waitReady(ctx, timeout); err != nil {
		metrics.SpawnsTotal.WithLabelValues("timeout").Inc()
		killCtx, cancel := context.WithTimeout(context.Background(), killGrace)
		_ = p.Kill(killCtx)
		cancel()
		logger.Error().Err(err).Msg("marimo failed to start")
		return nil, err
	}

	metrics.SpawnsTotal.WithLabelValues("ok").Inc()
	metrics.SpawnDuration.Observe(time.Since(start).Seconds())
	logger.Info().Dur("startup", time.Since(start)).Msg("marimo ready")
	return p, nil
}

// reap waits for the process and drops it from the state if it is still the
// tracked one, so the next request spawns a replacement.
func (s *Supervisor) reap(p *proc) {
	p.err = p.cmd.Wait()
	close(p.done)

	s.state.Lock()
	defer s.state.Unlock()
	if cur, ok := s.state.Current().(*proc); ok && cur == p {
		s.state.Clear()
		metrics.ProcessRunning.Set(0)
		log.Warn().Str("instance", p.id).Err(p.err).Msg("marimo exited")
	}
}

func editArgs(settings config.Settings, port int) []string {
	return []string{
		"edit",
		"--headless",
		"--host", upstreamHost,
		"--port", strconv.Itoa(port),
		"--base-url", settings.BaseURL(),
		"--no-token",
		"--skip-update-check",
	}
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(upstreamHost, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// proc is a Handle for a process started by the Supervisor.
type proc struct {
	cmd  *exec.Cmd
	id   string
	addr string
	done chan struct{}
	err  error
}

func (p *proc) PID() int { return p.cmd.Process.Pid }

func (p *proc) alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Kill sends SIGTERM to the process group and escalates to SIGKILL if it
// has not exited after killGrace or when ctx ends.
func (p *proc) Kill(ctx context.Context) error {
	if !p.alive() {
		return errors.New("process already exited")
	}
	if err := terminate(p.cmd); err != nil {
		return err
	}

	timer := time.NewTimer(killGrace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}
	if err := forceKill(p.cmd); err != nil {
		return err
	}
	<-p.done
	return nil
}

func (p *proc) waitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", p.addr, pollInterval)
		if err == nil {
			conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("marimo did not listen on %s within %s", p.addr, timeout)
		}
		select {
		case <-p.done:
			return fmt.Errorf("marimo exited during startup: %v", p.err)
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
