package worker

import (
	"context"
	"time"

	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// hostStatsInterval is how often the supervisor logs host utilization.
const hostStatsInterval = 30 * time.Second

// startHeartbeat logs host CPU and memory utilization periodically so
// operators can correlate job throughput with machine load. Job claim
// heartbeats are stamped separately by each run's control watch.
func (s *Supervisor) startHeartbeat(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(hostStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.logHostStats(ctx)
			}
		}
	}()
}

func (s *Supervisor) logHostStats(ctx context.Context) {
	fields := map[string]interface{}{}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		fields["cpu_percent"] = percents[0]
	} else if err != nil {
		debug.Debug("Failed to read CPU utilization: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		fields["mem_percent"] = vm.UsedPercent
		fields["mem_used_mb"] = vm.Used / 1024 / 1024
	} else {
		debug.Debug("Failed to read memory utilization: %v", err)
	}

	for _, runner := range s.runners {
		count, err := s.deps.JobRepo.CountProcessing(ctx, runner.Type())
		if err != nil {
			debug.Debug("Failed to count processing %s jobs: %v", runner.Type(), err)
			continue
		}
		fields[string(runner.Type())+"_processing"] = count
	}

	if len(fields) > 0 {
		debug.Log("Worker host stats", fields)
	}
}
