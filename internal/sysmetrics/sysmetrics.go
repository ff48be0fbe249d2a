// Package sysmetrics reports per-process and system-wide resource usage
// for the Control API's /app/info and /status endpoints.
package sysmetrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo is a point-in-time resource snapshot for one running child.
type ProcessInfo struct {
	PID        int32   `json:"pid"`
	MemoryRSS  uint64  `json:"memory_rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
}

// Process returns resource usage for pid, grounded on gopsutil's
// process.Process API. Callers should treat a returned error as "the
// process is gone" rather than fatal.
func Process(ctx context.Context, pid int) (ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("sysmetrics: open pid %d: %w", pid, err)
	}

	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("sysmetrics: mem info: %w", err)
	}
	cpuPct, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		cpuPct = 0
	}
	threads, err := p.NumThreadsWithContext(ctx)
	if err != nil {
		threads = 0
	}

	return ProcessInfo{
		PID:        int32(pid),
		MemoryRSS:  mi.RSS,
		CPUPercent: cpuPct,
		Threads:    threads,
	}, nil
}

// SystemInfo is a point-in-time snapshot of host resource usage, used by
// the Control API's /status endpoint alongside app health.
type SystemInfo struct {
	Hostname     string  `json:"hostname"`
	OS           string  `json:"os"`
	MemoryUsed   uint64  `json:"memory_used_bytes"`
	MemoryTotal  uint64  `json:"memory_total_bytes"`
	DiskUsed     uint64  `json:"disk_used_bytes"`
	DiskTotal    uint64  `json:"disk_total_bytes"`
	Load1        float64 `json:"load1"`
	CPUUsedCount int     `json:"cpu_count"`
}

// System gathers host-wide resource usage.
func System(ctx context.Context, diskPath string) (SystemInfo, error) {
	var info SystemInfo

	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = hi.Hostname
		info.OS = hi.OS
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryUsed = vm.Used
		info.MemoryTotal = vm.Total
	}
	if diskPath == "" {
		diskPath = "/"
	}
	if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		info.DiskUsed = du.Used
		info.DiskTotal = du.Total
	}
	if la, err := load.AvgWithContext(ctx); err == nil {
		info.Load1 = la.Load1
	}
	if counts, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUUsedCount = counts
	}

	return info, nil
}
