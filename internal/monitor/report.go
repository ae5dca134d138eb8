package monitor

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

// Reporter receives the figures of every tick. Implementations must not block.
type Reporter interface {
	Report(r model.Reading)
	ReportReclaim(at time.Time, results []model.TerminationResult)
}

// LogReporter writes every tick to the package logger.
type LogReporter struct{}

func (LogReporter) Report(r model.Reading) {
	entry := log.WithFields(log.Fields{
		"cpu":            r.CPU,
		"memory":         r.Memory,
		"disk":           r.Disk,
		"predicted_disk": r.PredictedDisk,
	})
	if r.Stale {
		entry.WithField("error", r.Error).Warn("showing last known reading")
		return
	}
	entry.Debug("tick")
}

func (LogReporter) ReportReclaim(_ time.Time, results []model.TerminationResult) {
	counts := make(map[model.Outcome]int)
	for _, res := range results {
		counts[res.Outcome]++
	}
	log.WithFields(log.Fields{
		"candidates": len(results),
		"terminated": counts[model.Terminated],
		"failed":     counts[model.Failed],
		"skipped":    counts[model.Skipped],
	}).Info("memory above trigger; reclamation finished")
}
