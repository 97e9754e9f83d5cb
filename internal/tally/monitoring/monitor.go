package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// HealthStatus is the snapshot served by /health.
type HealthStatus struct {
	Status      string        `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	Version     string        `json:"version"`
	Uptime      time.Duration `json:"uptime"`
	UptimeHuman string        `json:"uptime_human"`
	Goroutines  int           `json:"goroutines"`
	OpsApplied  int64         `json:"ops_applied"`
	LastChecked time.Time     `json:"last_checked"`
}

// Monitor tracks process health and operation throughput.
type Monitor struct {
	version   string
	startedAt time.Time

	mu         sync.RWMutex
	opsApplied int64
	degraded   bool
}

// NewMonitor creates a monitor for the given service version.
func NewMonitor(version string) *Monitor {
	return &Monitor{
		version:   version,
		startedAt: time.Now(),
	}
}

// RecordOp counts one applied operation.
func (m *Monitor) RecordOp() {
	m.mu.Lock()
	m.opsApplied++
	m.mu.Unlock()
}

// SetDegraded flips the reported status between healthy and degraded.
func (m *Monitor) SetDegraded(degraded bool) {
	m.mu.Lock()
	m.degraded = degraded
	m.mu.Unlock()
}

// GetHealth returns the current health snapshot.
func (m *Monitor) GetHealth() *HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := "healthy"
	if m.degraded {
		status = "degraded"
	}

	now := time.Now()
	uptime := now.Sub(m.startedAt)
	return &HealthStatus{
		Status:      status,
		Timestamp:   now,
		Version:     m.version,
		Uptime:      uptime,
		UptimeHuman: uptime.Round(time.Second).String(),
		Goroutines:  runtime.NumGoroutine(),
		OpsApplied:  m.opsApplied,
		LastChecked: now,
	}
}
