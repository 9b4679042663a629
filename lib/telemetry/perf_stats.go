package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

const perfSampleInterval = time.Second * 30

var perfMeter = otel.Meter("schoolsync.runtime")
var cpuPercentGauge, _ = perfMeter.Float64Gauge("cpu_percent")
var heapAllocGauge, _ = perfMeter.Int64Gauge("heap_alloc_mb")
var liveObjectsGauge, _ = perfMeter.Int64Gauge("live_objects")
var goroutineGauge, _ = perfMeter.Int64Gauge("goroutines")

// InstrumentPerfStats samples process level runtime metrics in the
// background until ctx is cancelled. Sync runs hold a headless browser
// open for minutes at a time, these gauges make it possible to tell a
// stuck run from a memory leak without attaching a debugger.
func InstrumentPerfStats(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(perfSampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				samplePerfStats(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func samplePerfStats(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	heapAllocGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
	liveObjectsGauge.Record(ctx, int64(memStats.Mallocs)-int64(memStats.Frees))
	goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

	// blocks for the sample window, keep it shorter than the tick
	usage, err := cpu.Percent(time.Second*10, false)
	if err != nil {
		slog.Warn("failed to sample cpu usage", "err", err)
		return
	}
	if len(usage) > 0 {
		cpuPercentGauge.Record(ctx, usage[0])
	}
}
