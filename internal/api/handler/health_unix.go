//go:build !windows

package handler

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// CPU time at the previous poll
var (
	cpuMu          sync.Mutex
	lastCPUTime    time.Duration
	lastWallTime   time.Time
	cpuInitialized bool
)

// getDiskStats returns disk usage statistics for the given path.
func getDiskStats(path string) (total, free, used int64, usedPct float64) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return
	}
	total = int64(fs.Blocks) * int64(fs.Bsize)
	free = int64(fs.Bavail) * int64(fs.Bsize)
	used = total - free
	if total > 0 {
		usedPct = float64(used) / float64(total) * 100
	}
	return
}

// getCPUUsage returns the CPU usage percentage of this process since the
// last call, capped at one core.
func getCPUUsage() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}

	cpu := time.Duration(ru.Utime.Nano()) + time.Duration(ru.Stime.Nano())
	now := time.Now()

	cpuMu.Lock()
	defer cpuMu.Unlock()

	if !cpuInitialized {
		lastCPUTime = cpu
		lastWallTime = now
		cpuInitialized = true
		return 0
	}

	cpuDelta := cpu - lastCPUTime
	wallDelta := now.Sub(lastWallTime)
	lastCPUTime = cpu
	lastWallTime = now

	if wallDelta <= 0 {
		return 0
	}

	pct := float64(cpuDelta) / float64(wallDelta) * 100
	return min(max(pct, 0), 100)
}
