package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

func TestReporter(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.Report(model.Reading{Timestamp: time.Unix(100, 0), CPU: 12, Memory: 85, Disk: 40, PredictedDisk: 41.5})
	r.Report(model.Reading{CPU: 99, Stale: true})
	r.ReportReclaim(time.Now(), []model.TerminationResult{
		{PID: 1, Outcome: model.Terminated},
		{PID: 2, Outcome: model.Failed},
		{PID: 3, Outcome: model.Terminated},
	})
	r.ObserveTraining(0.25, 48)

	assert.Equal(t, 12.0, testutil.ToFloat64(r.utilization.WithLabelValues("cpu")), "stale readings leave gauges alone")
	assert.Equal(t, 85.0, testutil.ToFloat64(r.utilization.WithLabelValues("memory")))
	assert.Equal(t, 41.5, testutil.ToFloat64(r.predicted))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.lastTick))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ticks.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ticks.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reclaimRuns))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.terminations.WithLabelValues("terminated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.terminations.WithLabelValues("failed")))
	assert.Equal(t, 0.25, testutil.ToFloat64(r.trainingMSE))
	assert.Equal(t, 48.0, testutil.ToFloat64(r.trainingSize))
}
