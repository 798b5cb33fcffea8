package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("members-manager.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var rssGauge, _ = meter.Int64Gauge("rss_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")

var startedAt = time.Now()

type PerfStats struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	CpuPercent     float64 `json:"cpu_percent"`
	RssMB          int64   `json:"rss_mb"`
	AllocMB        int64   `json:"alloc_mb"`
	GoroutineCount int     `json:"goroutines"`
}

// ReadPerfStats samples the current process. Fields gopsutil cannot read on the
// current platform are left zero.
func ReadPerfStats(ctx context.Context) PerfStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := PerfStats{
		UptimeSeconds:  int64(time.Since(startedAt).Seconds()),
		AllocMB:        int64(memStats.Alloc / 1_000_000),
		GoroutineCount: runtime.NumGoroutine(),
	}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		slog.Debug("failed to open process stats", "err", err)
		return stats
	}
	cpuPercent, err := proc.CPUPercentWithContext(ctx)
	if err == nil {
		stats.CpuPercent = cpuPercent
	}
	mem, err := proc.MemoryInfoWithContext(ctx)
	if err == nil {
		stats.RssMB = int64(mem.RSS / 1_000_000)
	}
	return stats
}

// InstrumentPerfStats records process gauges every 30 seconds until ctx is done.
func InstrumentPerfStats(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := ReadPerfStats(ctx)
				cpuGauge.Record(ctx, stats.CpuPercent)
				rssGauge.Record(ctx, stats.RssMB)
				goroutineGauge.Record(ctx, int64(stats.GoroutineCount))
			case <-ctx.Done():
				return
			}
		}
	}()
}
