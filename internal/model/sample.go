package model

import (
	"math"
	"time"
)

// Sample is one timestamped observation of host utilization.
// All percentages are in the 0-100 range.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	CPU       float64   `json:"cpu_pct"`
	Memory    float64   `json:"mem_pct"`
	Disk      float64   `json:"disk_pct"`
}

// Features returns the predictor input. The order is always (cpu, memory).
func (s Sample) Features() [2]float64 { return [2]float64{s.CPU, s.Memory} }

// Valid reports whether every percentage is finite and within 0-100.
func (s Sample) Valid() bool {
	return validPct(s.CPU) && validPct(s.Memory) && validPct(s.Disk)
}

func validPct(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

// Process is a lightweight enumeration entry. It is never cached.
type Process struct {
	PID         int32
	Name        string
	MemoryShare float64 // percent of physical memory
	RSS         uint64
}

// Outcome tags a single reclamation attempt.
type Outcome string

const (
	Terminated Outcome = "terminated"
	Skipped    Outcome = "skipped"
	Failed     Outcome = "failed"
)

// TerminationResult records what happened to one candidate process.
type TerminationResult struct {
	PID         int32   `json:"pid"`
	Name        string  `json:"name"`
	MemoryShare float64 `json:"memory_share"`
	RSS         uint64  `json:"rss_bytes"`
	Outcome     Outcome `json:"outcome"`
	Reason      string  `json:"reason,omitempty"`
}

// Reading is the 4-tuple published to display collaborators once per tick.
// Stale readings repeat the last good figures after a failed tick.
type Reading struct {
	Timestamp     time.Time `json:"timestamp"`
	CPU           float64   `json:"cpu_pct"`
	Memory        float64   `json:"mem_pct"`
	Disk          float64   `json:"disk_pct"`
	PredictedDisk float64   `json:"predicted_disk_pct"`
	Stale         bool      `json:"stale"`
	Error         string    `json:"error,omitempty"`
}

// Zero returns an empty reading for initialization.
func Zero() Reading { return Reading{Timestamp: time.Now()} }
