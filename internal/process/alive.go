package process

import (
	"github.com/shirou/gopsutil/process"
)

// Alive reports whether a process with the given PID exists and is running.
// Non-positive PIDs are never alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := process.NewProcess(int32(pid)) // #nosec G115 -- PIDs fit in int32
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	return err == nil && running
}

// ResidentMemory returns the resident set size of pid in bytes.
func ResidentMemory(pid int) (uint64, error) {
	p, err := process.NewProcess(int32(pid)) // #nosec G115 -- PIDs fit in int32
	if err != nil {
		return 0, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}
