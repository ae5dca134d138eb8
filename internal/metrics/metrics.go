// Package metrics exports control loop figures to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

// Reporter is a monitor.Reporter backed by Prometheus collectors.
type Reporter struct {
	utilization  *prometheus.GaugeVec
	predicted    prometheus.Gauge
	ticks        *prometheus.CounterVec
	reclaimRuns  prometheus.Counter
	terminations *prometheus.CounterVec
	trainingMSE  prometheus.Gauge
	trainingSize prometheus.Gauge
	lastTick     prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Reporter {
	f := promauto.With(reg)
	return &Reporter{
		utilization: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "resguard_utilization_percent",
				Help: "Last sampled utilization by resource",
			},
			[]string{"resource"},
		),
		predicted: f.NewGauge(prometheus.GaugeOpts{
			Name: "resguard_predicted_disk_percent",
			Help: "Disk utilization predicted from the last CPU and memory sample",
		}),
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resguard_ticks_total",
				Help: "Control loop ticks by result",
			},
			[]string{"result"},
		),
		reclaimRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "resguard_reclaim_runs_total",
			Help: "Ticks on which memory crossed the trigger and reclamation ran",
		}),
		terminations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resguard_reclaim_processes_total",
				Help: "Reclamation candidates by outcome",
			},
			[]string{"outcome"},
		),
		trainingMSE: f.NewGauge(prometheus.GaugeOpts{
			Name: "resguard_training_mse",
			Help: "Held-out mean squared error of the deployed model",
		}),
		trainingSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "resguard_training_samples",
			Help: "Samples used to fit the deployed model",
		}),
		lastTick: f.NewGauge(prometheus.GaugeOpts{
			Name: "resguard_last_tick_timestamp_seconds",
			Help: "Unix time of the last successful tick",
		}),
	}
}

func (r *Reporter) Report(rd model.Reading) {
	if rd.Stale {
		r.ticks.WithLabelValues("failed").Inc()
		return
	}
	r.ticks.WithLabelValues("ok").Inc()
	r.utilization.WithLabelValues("cpu").Set(rd.CPU)
	r.utilization.WithLabelValues("memory").Set(rd.Memory)
	r.utilization.WithLabelValues("disk").Set(rd.Disk)
	r.predicted.Set(rd.PredictedDisk)
	r.lastTick.Set(float64(rd.Timestamp.UnixNano()) / 1e9)
}

func (r *Reporter) ReportReclaim(_ time.Time, results []model.TerminationResult) {
	r.reclaimRuns.Inc()
	for _, res := range results {
		r.terminations.WithLabelValues(string(res.Outcome)).Inc()
	}
}

// ObserveTraining records the quality of a newly deployed model.
func (r *Reporter) ObserveTraining(mse float64, samples int) {
	r.trainingMSE.Set(mse)
	r.trainingSize.Set(float64(samples))
}
