package state

import (
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessAlive reports whether pid refers to a live, non-zombie process. A
// child that exited but has not been reaped yet counts as dead.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	statuses, err := p.Status()
	if err != nil {
		return false
	}
	for _, s := range statuses {
		if s == process.Zombie {
			return false
		}
	}
	return true
}

// ProcStats is a point-in-time resource snapshot of a managed process.
type ProcStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   uint64  `json:"memory_mb"`
}

// ReadStats reads CPU and resident memory for pid. Individual metrics that
// cannot be read are left at zero.
func ReadStats(pid int) (*ProcStats, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, errors.Wrap(err, "find process")
	}
	st := &ProcStats{}
	if cpu, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if mi, err := p.MemoryInfo(); err == nil && mi != nil {
		st.MemoryMB = mi.RSS / (1 << 20)
	}
	return st, nil
}
