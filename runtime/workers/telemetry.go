package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// SessionCounter reports how many generation sessions are in flight.
type SessionCounter interface {
	LiveSessions() int64
}

// TelemetryWorker logs process self-stats at a fixed interval: RSS, CPU,
// goroutines, GC cycles and live generation sessions. Observability for
// operators, nothing downstream consumes it.
type TelemetryWorker struct {
	log      *slog.Logger
	interval time.Duration
	sessions SessionCounter
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration, sessions SessionCounter) *TelemetryWorker {
	return &TelemetryWorker{log: log, interval: interval, sessions: sessions}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(proc)
		}
	}
}

func (w *TelemetryWorker) report(proc *process.Process) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var rssMb uint64
	if mem, err := proc.MemoryInfo(); err == nil {
		rssMb = mem.RSS / 1024 / 1024
	}
	cpuPercent, _ := proc.CPUPercent()

	w.log.Info("Process stats",
		"rss_mb", rssMb,
		"cpu_percent", cpuPercent,
		"alloc_mb", memStats.Alloc/1024/1024,
		"num_gc", memStats.NumGC,
		"goroutines", runtime.NumGoroutine(),
		"live_sessions", w.sessions.LiveSessions(),
	)
}
