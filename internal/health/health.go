// Package health samples the server process itself (resident memory, CPU,
// goroutines) and exposes the readings as prometheus gauges and periodic
// debug records in the event log.
package health

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	residentBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_process_resident_bytes",
		Help: "Resident memory of the server process",
	})

	cpuPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_process_cpu_percent",
		Help: "CPU usage of the server process since the previous sample",
	})

	goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_process_goroutines",
		Help: "Number of live goroutines",
	})
)

func init() {
	prometheus.MustRegister(residentBytes)
	prometheus.MustRegister(cpuPercent)
	prometheus.MustRegister(goroutines)
}

type Sampler struct {
	proc     *process.Process
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSampler(interval time.Duration, logger *slog.Logger) (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		proc:     proc,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Run samples on the configured interval until Stop is called.
func (s *Sampler) Run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sample()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sampler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Sampler) sample() {
	n := runtime.NumGoroutine()
	goroutines.Set(float64(n))

	var rss uint64
	if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
		residentBytes.Set(float64(rss))
	}

	var cpu float64
	if pct, err := s.proc.Percent(0); err == nil {
		cpu = pct
		cpuPercent.Set(pct)
	}

	s.logger.Debug("health sample", "rss", rss, "cpu_percent", cpu, "goroutines", n)
}
