package monitor

import (
	log "github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
	"github.com/Dicklesworthstone/resource_guard/internal/predictor"
)

// retrainer refits the model every n ticks on a bounded window of recent
// tick samples. A failed refit keeps the current model.
type retrainer struct {
	every  int
	window int
	opts   []predictor.Option
	buf    []model.Sample
	seen   int
	onSwap func(*predictor.TrainedModel)
}

// WithRetrain enables periodic retraining every n successful ticks using up to
// window recent samples. onSwap, if non-nil, sees every newly deployed model.
func WithRetrain(every, window int, onSwap func(*predictor.TrainedModel), opts ...predictor.Option) Option {
	return func(l *Loop) {
		if every <= 0 || window <= 0 {
			return
		}
		l.retrain = &retrainer{
			every:  every,
			window: window,
			opts:   opts,
			buf:    make([]model.Sample, 0, window),
			onSwap: onSwap,
		}
	}
}

func (rt *retrainer) observe(l *Loop, s model.Sample) {
	if len(rt.buf) == rt.window {
		copy(rt.buf, rt.buf[1:])
		rt.buf = rt.buf[:rt.window-1]
	}
	rt.buf = append(rt.buf, s)
	rt.seen++
	if rt.seen%rt.every != 0 {
		return
	}

	m, err := predictor.Train(rt.buf, rt.opts...)
	if err != nil {
		log.WithError(err).WithField("samples", len(rt.buf)).Warn("retrain failed; keeping current model")
		return
	}
	l.current.Store(m)
	log.WithFields(log.Fields{"samples": len(rt.buf), "mse": m.MSE()}).Info("retrained predictor")
	if rt.onSwap != nil {
		rt.onSwap(m)
	}
}
