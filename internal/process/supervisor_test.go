package process

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/opensandbox/marimoproxy/internal/config"
	"github.com/opensandbox/marimoproxy/internal/executable"
)

const helperEnv = "MARIMOPROXY_TEST_HELPER"

// TestHelperProcess stands in for marimo: in "serve" mode it listens on the
// given port until killed, in "hang" mode it never listens.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}
	switch mode {
	case "serve":
		port := os.Args[len(os.Args)-1]
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", port))
		if err != nil {
			os.Exit(3)
		}
		for {
			conn, err := l.Accept()
			if err != nil {
				os.Exit(4)
			}
			conn.Close()
		}
	case "hang":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helperSupervisor(t *testing.T, mode string, timeout int) *Supervisor {
	t.Helper()
	t.Setenv(helperEnv, mode)

	self := os.Args[0]
	sup := NewSupervisor(SupervisorConfig{
		Override: &config.Override{MarimoPath: &self, Timeout: &timeout},
		Resolver: config.Resolver{
			Getenv:  func(string) string { return "" },
			HomeDir: func() (string, error) { return "", nil },
		},
		Args: func(_ config.Settings, port int) []string {
			return []string{"-test.run=^TestHelperProcess$", "--", strconv.Itoa(port)}
		},
	})
	t.Cleanup(func() { sup.Close() })
	return sup
}

func currentProc(t *testing.T, sup *Supervisor) *proc {
	t.Helper()
	st, _ := sup.State()
	st.Lock()
	defer st.Unlock()
	p, _ := st.Current().(*proc)
	return p
}

func TestEnsureRunningSpawnsOnce(t *testing.T) {
	sup := helperSupervisor(t, "serve", 10)
	ctx := context.Background()

	addr, err := sup.EnsureRunning(ctx)
	if err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	conn.Close()

	first := currentProc(t, sup)
	again, err := sup.EnsureRunning(ctx)
	if err != nil {
		t.Fatalf("second EnsureRunning() error: %v", err)
	}
	if again != addr || currentProc(t, sup) != first {
		t.Errorf("expected the running process to be reused")
	}
}

func TestStopThenRespawn(t *testing.T) {
	sup := helperSupervisor(t, "serve", 10)
	ctx := context.Background()

	if _, err := sup.EnsureRunning(ctx); err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}
	first := currentProc(t, sup)

	st, _ := sup.State()
	st.Lock()
	st.Stop(ctx)
	st.Unlock()

	if first.alive() {
		t.Error("expected first process to be dead after Stop")
	}

	if _, err := sup.EnsureRunning(ctx); err != nil {
		t.Fatalf("EnsureRunning() after stop error: %v", err)
	}
	second := currentProc(t, sup)
	if second == nil || second == first {
		t.Fatal("expected a fresh process after stop")
	}
}

func TestExitedProcessIsCleared(t *testing.T) {
	sup := helperSupervisor(t, "serve", 10)
	if _, err := sup.EnsureRunning(context.Background()); err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}
	p := currentProc(t, sup)
	if err := p.cmd.Process.Kill(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for currentProc(t, sup) != nil {
		if time.Now().After(deadline) {
			t.Fatal("exited process was never cleared from state")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStartupTimeout(t *testing.T) {
	sup := helperSupervisor(t, "hang", 1)

	if _, err := sup.EnsureRunning(context.Background()); err == nil {
		t.Fatal("expected startup timeout")
	}
	if currentProc(t, sup) != nil {
		t.Error("expected stopped state after failed startup")
	}
}

func TestExternalAddrIsUnmanaged(t *testing.T) {
	sup := NewSupervisor(SupervisorConfig{ExternalAddr: "127.0.0.1:2718"})

	addr, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("EnsureRunning() error: %v", err)
	}
	if addr != "127.0.0.1:2718" {
		t.Errorf("expected external addr, got %s", addr)
	}
	st, _ := sup.State()
	st.Lock()
	defer st.Unlock()
	if st.Current() != Unmanaged {
		t.Errorf("expected Unmanaged handle, got %v", st.Current())
	}
}

func TestEnsureRunningNotFound(t *testing.T) {
	sup := NewSupervisor(SupervisorConfig{
		Resolver: config.Resolver{
			Getenv:  func(string) string { return "" },
			HomeDir: func() (string, error) { return "", nil },
		},
		Locator: executable.Locator{
			LookPath:  func(string) (string, error) { return "", exec.ErrNotFound },
			Locations: []string{"/nonexistent/path/marimo"},
		},
	})

	_, err := sup.EnsureRunning(context.Background())
	if !errors.Is(err, executable.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
