package restart

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestRestarter(t *testing.T, mode Mode, delay time.Duration) (*Restarter, *[]string) {
	t.Helper()
	r, err := New(mode, delay)
	if err != nil {
		t.Fatal(err)
	}
	var calls []string
	r.Before = func() { calls = append(calls, "before") }
	r.execSelf = func() error { calls = append(calls, "exec"); return errors.New("exec failed") }
	r.reboot = func() error { calls = append(calls, "reboot"); return errors.New("reboot failed") }
	return r, &calls
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New("halt", time.Second); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestRestartModes(t *testing.T) {
	tests := []struct {
		mode Mode
		want []string
	}{
		{ModeProcess, []string{"before", "exec"}},
		{ModeReboot, []string{"before", "reboot"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r, calls := newTestRestarter(t, tt.mode, 0)
			err := r.Restart(context.Background())
			if err == nil {
				t.Fatal("failed restart must return an error")
			}
			if len(*calls) != len(tt.want) {
				t.Fatalf("calls: got %v, want %v", *calls, tt.want)
			}
			for i := range tt.want {
				if (*calls)[i] != tt.want[i] {
					t.Errorf("calls: got %v, want %v", *calls, tt.want)
				}
			}
		})
	}
}

func TestRestartWaitsDelay(t *testing.T) {
	r, _ := newTestRestarter(t, ModeProcess, 50*time.Millisecond)
	start := time.Now()
	r.Restart(context.Background())
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("restart after %v, want at least 50ms", elapsed)
	}
}

func TestRestartCancelledDuringDelay(t *testing.T) {
	r, calls := newTestRestarter(t, ModeReboot, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Restart(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("nothing should run after cancel, got %v", *calls)
	}
}

func TestNegativeDelayClamped(t *testing.T) {
	r, err := New(ModeProcess, -time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if r.delay != 0 {
		t.Errorf("delay: got %v, want 0", r.delay)
	}
}
