//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// KillProcessGroup kills a process and all its children by sending SIGKILL
// to the process group (negative PID).
func KillProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	// Best-effort cleanup; Process.Kill on the direct child is the fallback
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// SetProcessGroup makes cmd the leader of a new process group so that
// KillProcessGroup also reaches the helpers soffice forks (oosplash, soffice.bin).
func SetProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// KilledBySignal reports whether the process behind state was terminated by
// a signal rather than exiting on its own.
func KilledBySignal(state *exec.ExitError) bool {
	if state == nil {
		return false
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled()
}
