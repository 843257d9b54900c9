package supervisor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"wizbridge/internal/config"
	"wizbridge/internal/logger"
)

func testLog(t *testing.T) *logger.Log {
	t.Helper()
	log, err := logger.NewLogger(config.LogConf{Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	return log
}

func TestBackoff_DoublesUpToCap(t *testing.T) {
	base := time.Second
	max := 60 * time.Second

	cases := []struct {
		n    int
		want time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{6, 60 * time.Second}, // 2^6=64s > 60s cap
		{100, 60 * time.Second},
	}
	for _, c := range cases {
		if got := backoff(c.n, base, max); got != c.want {
			t.Errorf("backoff(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestSupervisor_RestartsOnCrash(t *testing.T) {
	cfg := Config{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, ResetIdle: time.Minute}
	s := New(testLog(t), cfg, func() *exec.Cmd {
		return exec.Command("sh", "-c", "exit 1")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status().RestartCount >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("RestartCount = %d, want >= 2", s.Status().RestartCount)
}

func TestSupervisor_StopResetsCountAndStopsRestarting(t *testing.T) {
	cfg := Config{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, ResetIdle: time.Minute}
	s := New(testLog(t), cfg, func() *exec.Cmd {
		return exec.Command("sh", "-c", "exit 1")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && s.Status().RestartCount < 1 {
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()

	st := s.Status()
	if st.Running {
		t.Error("Status().Running = true after Stop()")
	}
	if st.RestartCount != 0 {
		t.Errorf("Status().RestartCount = %d after Stop(), want 0", st.RestartCount)
	}
}
