// Package store holds the bootstrap samples used to train the predictor.
package store

import (
	"context"
	"fmt"
	"time"

	"emperror.dev/errors"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
	"github.com/Dicklesworthstone/resource_guard/internal/sampler"
)

const (
	// ErrCollectionAborted marks a collection phase that could not finish.
	ErrCollectionAborted = errors.Sentinel("collection aborted")

	ErrFrozen     = errors.Sentinel("sample store is frozen")
	ErrOutOfOrder = errors.Sentinel("sample timestamp is not after the previous one")
)

// Store is an append-only, insertion-ordered sequence of samples. It is filled
// by a single goroutine and frozen before being shared, so it carries no lock.
type Store struct {
	samples []model.Sample
	frozen  bool
}

func New(capacity int) *Store {
	return &Store{samples: make([]model.Sample, 0, capacity)}
}

// Append records s. Timestamps must strictly increase.
func (s *Store) Append(smp model.Sample) error {
	if s.frozen {
		return ErrFrozen
	}
	if n := len(s.samples); n > 0 && !smp.Timestamp.After(s.samples[n-1].Timestamp) {
		return errors.WithDetails(ErrOutOfOrder, "previous", s.samples[n-1].Timestamp, "timestamp", smp.Timestamp)
	}
	s.samples = append(s.samples, smp)
	return nil
}

// Freeze stops further appends.
func (s *Store) Freeze() { s.frozen = true }

func (s *Store) Frozen() bool { return s.frozen }

func (s *Store) Len() int { return len(s.samples) }

// Samples returns a copy of the recorded samples in collection order.
func (s *Store) Samples() []model.Sample {
	out := make([]model.Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Collect runs the blocking bootstrap phase: floor(duration/interval) samples,
// one per interval. Any failed sample aborts the whole phase; partial results
// are discarded. The returned store is frozen.
func Collect(ctx context.Context, src sampler.Sampler, duration, interval time.Duration) (*Store, error) {
	if interval <= 0 || duration < interval {
		return nil, errors.NewWithDetails("invalid collection window", "duration", duration, "interval", interval)
	}
	n := int(duration / interval)
	st := New(n)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < n; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, aborted(i, ctx.Err())
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return nil, aborted(i, err)
		}

		smp, err := src.Sample(ctx)
		if err != nil {
			return nil, aborted(i, err)
		}
		if err := st.Append(smp); err != nil {
			return nil, aborted(i, err)
		}
	}
	st.Freeze()
	return st, nil
}

func aborted(collected int, err error) error {
	return errors.WithDetails(errors.WithStack(fmt.Errorf("%w: %w", ErrCollectionAborted, err)), "collected", collected)
}
