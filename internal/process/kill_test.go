package process

// Notes:
// - KillProcessGroup: we only test with an invalid PID to verify the function
//   doesn't panic. Real kill behavior is covered by the soffice integration
//   tests since we cannot safely test actual process termination in unit tests.
// - Cannot test with PID 0 (kills current process group) or real PIDs.

import (
	"os"
	"os/exec"
	"testing"
)

// ---------------------------------------------------------------------------
// TestKillProcessGroup - Invalid PID Handling
// ---------------------------------------------------------------------------

func TestKillProcessGroup_InvalidPID(t *testing.T) {
	t.Parallel()

	KillProcessGroup(999999999)
}

func TestKillProcessGroup_NonPositivePID(t *testing.T) {
	t.Parallel()

	// Must be a no-op: -0 and negative PIDs would target real process groups.
	KillProcessGroup(0)
	KillProcessGroup(-1)
}

// ---------------------------------------------------------------------------
// TestSetProcessGroup
// ---------------------------------------------------------------------------

func TestSetProcessGroup_InitializesAttributes(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("true")
	SetProcessGroup(cmd)

	if cmd.SysProcAttr == nil {
		t.Fatal("SysProcAttr = nil, want initialized")
	}
}

// ---------------------------------------------------------------------------
// TestAlive
// ---------------------------------------------------------------------------

func TestAlive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pid  int
		want bool
	}{
		{"current process", os.Getpid(), true},
		{"zero pid", 0, false},
		{"negative pid", -42, false},
		{"nonexistent pid", 999999999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Alive(tt.pid); got != tt.want {
				t.Errorf("Alive(%d) = %v, want %v", tt.pid, got, tt.want)
			}
		})
	}
}

func TestKilledBySignal_Nil(t *testing.T) {
	t.Parallel()

	if KilledBySignal(nil) {
		t.Error("KilledBySignal(nil) = true, want false")
	}
}
