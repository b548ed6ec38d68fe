package cas

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("cas")

// state is a step of the update loop.
type state uint8

const (
	stateRead      state = iota // obtain the value to transform
	statePropose                // transform and compare-and-set
	stateCommitted              // compare-and-set accepted
	stateRetry                  // compare-and-set refused, value changed
	stateFailed                 // infrastructure error, cancellation or ceiling
)

func (s state) String() string {
	switch s {
	case stateRead:
		return "READ"
	case statePropose:
		return "PROPOSE"
	case stateCommitted:
		return "COMMITTED"
	case stateRetry:
		return "RETRY"
	case stateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type settings struct {
	maxAttempts int
	metrics     *Metrics
}

// Option configures a single update.
type Option func(*settings)

// WithMaxAttempts bounds the number of compare-and-set attempts. When the
// ceiling is reached without a commit the update fails with
// RetCTooManyConflicts; nothing was written, so the failure is safe to
// report. Zero (the default) retries until success.
func WithMaxAttempts(n int) Option {
	return func(s *settings) {
		s.maxAttempts = n
	}
}

// WithMetrics records the update in m.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// Update atomically replaces the value behind h with transform(value) and
// returns the committed value.
//
// The update reads the value, applies transform and proposes the result with
// CompareAndSet. A refused proposal means another writer got in first: the
// observed value is discarded and the loop starts over with a fresh read.
// Errors returned by Get or CompareAndSet are returned unchanged and are never
// retried. transform may be called once per attempt and must be pure.
func Update[T any](ctx context.Context, h Handle[T], transform func(T) T, opts ...Option) (T, error) {
	return update(ctx, h, transform, nil, opts)
}

// UpdateWithHint is Update with a last known value. The first attempt proposes
// against hint without reading; if the hint is stale the proposal is refused
// and the loop falls back to reading.
func UpdateWithHint[T any](ctx context.Context, h Handle[T], hint T, transform func(T) T, opts ...Option) (T, error) {
	return update(ctx, h, transform, &hint, opts)
}

func update[T any](ctx context.Context, h Handle[T], transform func(T) T, hint *T, opts []Option) (T, error) {
	cfg := settings{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		zero     T
		observed T
		updated  T
		cached   bool // observed holds a usable last known value
		attempts int
		err      error
	)
	if hint != nil {
		observed, cached = *hint, true
	}

	st := stateRead
	for {
		switch st {
		case stateRead:
			if err = ctx.Err(); err != nil {
				st = stateFailed
				continue
			}
			if !cached {
				observed, err = h.Get(ctx)
				if err != nil {
					st = stateFailed
					continue
				}
				cached = true
			}
			st = statePropose

		case statePropose:
			attempts++
			updated = transform(observed)

			var ok bool
			ok, err = h.CompareAndSet(ctx, observed, updated)
			switch {
			case err != nil:
				st = stateFailed
			case ok:
				st = stateCommitted
			default:
				st = stateRetry
			}

		case stateCommitted:
			// the write is final even if ctx was cancelled meanwhile
			cfg.metrics.observe(attempts, nil)
			return updated, nil

		case stateRetry:
			cached = false
			cfg.metrics.conflict()
			log.Debugf("compare-and-set refused (attempt %d), reading again", attempts)

			if cfg.maxAttempts > 0 && attempts >= cfg.maxAttempts {
				err = primitive.NewError(primitive.RetCTooManyConflicts,
					fmt.Sprintf("no commit after %d attempts", attempts))
				st = stateFailed
				continue
			}
			st = stateRead

		case stateFailed:
			cfg.metrics.observe(attempts, err)
			return zero, err
		}
	}
}

func isTooManyConflicts(err error) bool {
	var pe *primitive.Error
	return errors.As(err, &pe) && pe.Code == primitive.RetCTooManyConflicts
}
