package metrics

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMetrics holds CPU and memory usage for one live service child.
type ProcessMetrics struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	MemoryVMS  uint64    `json:"memory_vms"`
	NumThreads int32     `json:"num_threads"`
	CreatedAt  time.Time `json:"created_at"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sample reads current usage of pid through gopsutil.
func Sample(pid int) (ProcessMetrics, error) {
	if pid <= 0 {
		return ProcessMetrics{}, fmt.Errorf("invalid pid %d", pid)
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ProcessMetrics{}, fmt.Errorf("open process %d: %w", pid, err)
	}
	m := ProcessMetrics{PID: int32(pid), Timestamp: time.Now()}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		m.MemoryRSS = mem.RSS
		m.MemoryVMS = mem.VMS
		m.MemoryMB = float64(mem.RSS) / 1024 / 1024
	}
	if cpu, err := p.CPUPercent(); err == nil {
		m.CPUPercent = cpu
	}
	if n, err := p.NumThreads(); err == nil {
		m.NumThreads = n
	}
	if ms, err := p.CreateTime(); err == nil && ms > 0 {
		m.CreatedAt = time.UnixMilli(ms)
	}
	return m, nil
}
