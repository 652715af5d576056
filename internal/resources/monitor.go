// Package resources samples host utilisation and decides when active
// transcodes must pause to keep the machine usable.
package resources

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/recodarr/recodarr/internal/config"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Snapshot is one sample of host utilisation.
type Snapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  float64   `json:"memory_used_mb"`
	MemoryTotalMB float64   `json:"memory_total_mb"`
	LoadAvg1m     float64   `json:"load_avg_1m"`
	GPUPercent    float64   `json:"gpu_percent"`
	GPUAvailable  bool      `json:"gpu_available"`
	GPUName       string    `json:"gpu_name,omitempty"`
	SampledAt     time.Time `json:"sampled_at"`
}

// ProcessStats is one sample of a child process.
type ProcessStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSMB      float64 `json:"rss_mb"`
	NumThreads int32   `json:"num_threads"`
	Status     string  `json:"status"`
}

// DiskStats reports usage for one mount.
type DiskStats struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// Decision is the throttling verdict for one snapshot.
type Decision struct {
	ShouldPause bool   `json:"should_pause"`
	Reason      string `json:"reason,omitempty"`
	CPUExceeded bool   `json:"cpu_exceeded"`
	MemExceeded bool   `json:"mem_exceeded"`
	GPUExceeded bool   `json:"gpu_exceeded"`
}

// Monitor samples host utilisation via gopsutil and nvidia-smi.
type Monitor struct {
	cfg    config.ResourcesConfig
	logger *slog.Logger

	gpuOnce    sync.Once
	gpuMissing bool
}

// NewMonitor creates a resource monitor with the configured thresholds.
func NewMonitor(cfg config.ResourcesConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{cfg: cfg, logger: logger.With(slog.String("component", "resources"))}
}

// Snapshot samples CPU, memory, load, and GPU utilisation. Individual probe
// failures degrade to zero values rather than failing the whole sample.
func (m *Monitor) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{SampledAt: time.Now()}

	// A 500ms window gives a usable delta without blocking the caller long.
	if percents, err := cpu.PercentWithContext(ctx, 500*time.Millisecond, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	} else if err != nil {
		m.logger.Debug("cpu sample failed", slog.String("error", err.Error()))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryPercent = vm.UsedPercent
		snap.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)
		snap.MemoryTotalMB = float64(vm.Total) / (1024 * 1024)
	} else {
		m.logger.Debug("memory sample failed", slog.String("error", err.Error()))
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.LoadAvg1m = avg.Load1
	}

	if gpu, ok := m.sampleGPU(ctx); ok {
		snap.GPUAvailable = true
		snap.GPUPercent = gpu.utilization
		snap.GPUName = gpu.name
	}

	return snap
}

// Process samples CPU and RSS for a child process. Returns nil when the
// process has already exited.
func (m *Monitor) Process(ctx context.Context, pid int32) (*ProcessStats, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, nil
	}

	stats := &ProcessStats{}
	if percent, err := proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = percent
	}
	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
		stats.RSSMB = float64(memInfo.RSS) / (1024 * 1024)
	}
	if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
		stats.NumThreads = threads
	}
	if status, err := proc.StatusWithContext(ctx); err == nil && len(status) > 0 {
		stats.Status = status[0]
	}
	return stats, nil
}

// Disk reports usage for the filesystem containing path.
func (m *Monitor) Disk(ctx context.Context, path string) (*DiskStats, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("sampling disk usage for %s: %w", path, err)
	}
	return &DiskStats{
		Path:        path,
		TotalBytes:  usage.Total,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}

// Check applies the configured thresholds to a snapshot. GPU is only
// considered when a GPU was actually sampled.
func (m *Monitor) Check(snap Snapshot) Decision {
	return ThresholdCheck(snap, m.cfg.CPUPercent, m.cfg.MemoryPercent, m.cfg.GPUPercent)
}

// ThresholdCheck compares a snapshot against thresholds and produces the
// pause verdict. A zero or negative threshold disables that check.
func ThresholdCheck(snap Snapshot, cpuMax, memMax, gpuMax float64) Decision {
	d := Decision{}
	reasons := make([]string, 0, 3)

	if cpuMax > 0 && snap.CPUPercent > cpuMax {
		d.CPUExceeded = true
		reasons = append(reasons, fmt.Sprintf("CPU usage %.1f%% above threshold %.1f%%", snap.CPUPercent, cpuMax))
	}
	if memMax > 0 && snap.MemoryPercent > memMax {
		d.MemExceeded = true
		reasons = append(reasons, fmt.Sprintf("memory usage %.1f%% above threshold %.1f%%", snap.MemoryPercent, memMax))
	}
	if gpuMax > 0 && snap.GPUAvailable && snap.GPUPercent > gpuMax {
		d.GPUExceeded = true
		reasons = append(reasons, fmt.Sprintf("GPU usage %.1f%% above threshold %.1f%%", snap.GPUPercent, gpuMax))
	}

	if len(reasons) > 0 {
		d.ShouldPause = true
		d.Reason = strings.Join(reasons, "; ")
	}
	return d
}

type gpuSample struct {
	name        string
	utilization float64
}

// sampleGPU queries the first NVIDIA GPU via nvidia-smi. A missing binary is
// logged once and disables GPU checks for the process lifetime.
func (m *Monitor) sampleGPU(ctx context.Context) (gpuSample, bool) {
	if m.gpuMissing {
		return gpuSample{}, false
	}

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,name,utilization.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits")
	output, err := cmd.Output()
	if err != nil {
		m.gpuOnce.Do(func() {
			m.gpuMissing = true
			m.logger.Info("nvidia-smi not available, GPU throttling disabled",
				slog.String("error", err.Error()))
		})
		return gpuSample{}, false
	}

	samples := parseGPUQuery(string(output))
	if len(samples) == 0 {
		return gpuSample{}, false
	}
	return samples[0], true
}

// parseGPUQuery parses nvidia-smi CSV output (noheader, nounits).
func parseGPUQuery(output string) []gpuSample {
	var samples []gpuSample
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		parts := strings.Split(line, ", ")
		if len(parts) < 5 {
			continue
		}
		util, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			continue
		}
		samples = append(samples, gpuSample{
			name:        strings.TrimSpace(parts[1]),
			utilization: util,
		})
	}
	return samples
}
