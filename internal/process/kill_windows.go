//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"
)

// KillProcessGroup kills a process and all its children using taskkill.
// /F = force kill, /T = terminate child processes (tree kill).
func KillProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	// Best-effort cleanup; Process.Kill on the direct child is the fallback
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}

// SetProcessGroup starts cmd in a new process group so taskkill /T can reach
// the whole soffice tree.
func SetProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// KilledBySignal reports whether the process was forcibly terminated.
// Windows has no signals; taskkill /F exits the tree with status 1, which is
// indistinguishable from a regular failure, so this is always false.
func KilledBySignal(state *exec.ExitError) bool {
	return false
}
