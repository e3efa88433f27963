package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/MrEthical07/authservice"
	"github.com/MrEthical07/authservice/metrics/export/internaldefs"
)

type phaseStats struct {
	name     string
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

type report struct {
	phases  []phaseStats
	metrics authservice.MetricsSnapshot
}

func computeStats(name string, total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{name: name, total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	s := phaseStats{
		name:     name,
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
	if total > 0 {
		s.opsPerS = float64(len(samples)) / total.Seconds()
	}
	return s
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func (r report) print(w io.Writer) {
	fmt.Fprintln(w, "---- results ----")
	for _, s := range r.phases {
		fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
			s.name,
			s.ops,
			s.failures,
			s.total.Round(time.Millisecond),
			s.opsPerS,
			s.p50.Round(time.Microsecond),
			s.p95.Round(time.Microsecond),
			s.p99.Round(time.Microsecond),
		)
	}

	fmt.Fprintln(w, "---- counters ----")
	for _, def := range internaldefs.CounterDefs {
		if v := r.metrics.Counters[def.ID]; v > 0 {
			fmt.Fprintf(w, "%s %d\n", def.Name, v)
		}
	}
}
