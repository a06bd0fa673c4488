package models

import "time"

// UsageSample captures sampled CPU/memory/disk telemetry for a managed server.
// Samples are append-only and evicted by the telemetry store's capacity rule.
type UsageSample struct {
	ServerID    int64     `json:"server_id"`
	SampledAt   time.Time `json:"sampled_at"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryBytes int64     `json:"memory_bytes"`
	DiskBytes   int64     `json:"disk_bytes"`
	State       string    `json:"state"`
}

// Copy returns a deep copy of the sample so callers can mutate safely.
func (u *UsageSample) Copy() *UsageSample {
	if u == nil {
		return nil
	}
	dup := *u
	return &dup
}
