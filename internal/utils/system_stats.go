package utils

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	log "github.com/sirupsen/logrus"
)

var (
	lastCPUUsage       float64
	lastCPUTime        time.Time
	cpuUsageMutex      sync.Mutex
	cpuUsageSampleRate = 500 * time.Millisecond
)

// SystemStats holds current system and application statistics.
type SystemStats struct {
	NumCPU      int     `json:"num_cpu"`
	GoRoutines  int     `json:"go_routines"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryAlloc uint64  `json:"memory_alloc"`
	MemorySys   uint64  `json:"memory_sys"`

	// Formatted variants of the memory values for the status endpoint
	MemoryAllocHuman string `json:"memory_alloc_human"`
	MemorySysHuman   string `json:"memory_sys_human"`

	Timestamp time.Time `json:"timestamp"`
}

// CollectSystemStats gathers CPU and memory statistics. CPU usage is sampled
// at most every cpuUsageSampleRate; in between the last value is reused.
func CollectSystemStats() SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemStats{
		NumCPU:           runtime.NumCPU(),
		GoRoutines:       runtime.NumGoroutine(),
		CPUUsage:         currentCPUUsage(),
		MemoryAlloc:      memStats.Alloc,
		MemorySys:        memStats.Sys,
		MemoryAllocHuman: FormatBytes(memStats.Alloc),
		MemorySysHuman:   FormatBytes(memStats.Sys),
		Timestamp:        time.Now(),
	}
}

func currentCPUUsage() float64 {
	cpuUsageMutex.Lock()
	defer cpuUsageMutex.Unlock()

	if time.Since(lastCPUTime) < cpuUsageSampleRate {
		return lastCPUUsage
	}

	percentages, err := cpu.Percent(0, false)
	if err != nil || len(percentages) == 0 {
		log.Debugf("Failed to sample CPU usage: %v", err)
		return lastCPUUsage
	}

	lastCPUUsage = percentages[0]
	lastCPUTime = time.Now()
	return lastCPUUsage
}

// FormatBytes formats bytes into readable units (KB, MB, GB).
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d Bytes", bytes)
	}
}
