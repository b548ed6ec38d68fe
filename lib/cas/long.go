package cas

import "context"

// Long is a distributed 64 bit counter. Every mutation is a transform passed
// to Update, so all of them share the same conflict handling.
//
// Long holds no cached state and may be used from many goroutines.
type Long struct {
	h    Handle[int64]
	opts []Option
}

// NewLong creates a counter on top of h. opts apply to every mutation.
func NewLong(h Handle[int64], opts ...Option) *Long {
	return &Long{h: h, opts: opts}
}

// Get returns the current value.
func (l *Long) Get(ctx context.Context) (int64, error) {
	return l.h.Get(ctx)
}

// Set replaces the value unconditionally.
func (l *Long) Set(ctx context.Context, value int64) error {
	_, err := l.UpdateAndGet(ctx, func(int64) int64 { return value })
	return err
}

// CompareAndSet sets the value to updated if it is currently expected.
func (l *Long) CompareAndSet(ctx context.Context, expected, updated int64) (bool, error) {
	return l.h.CompareAndSet(ctx, expected, updated)
}

// UpdateAndGet applies fn and returns the new value.
func (l *Long) UpdateAndGet(ctx context.Context, fn func(int64) int64) (int64, error) {
	return Update(ctx, l.h, fn, l.opts...)
}

// GetAndUpdate applies fn and returns the value it was applied to.
func (l *Long) GetAndUpdate(ctx context.Context, fn func(int64) int64) (int64, error) {
	var previous int64
	_, err := Update(ctx, l.h, func(v int64) int64 {
		// the last call is the one that committed
		previous = v
		return fn(v)
	}, l.opts...)
	if err != nil {
		return 0, err
	}
	return previous, nil
}

// AddAndGet adds delta and returns the new value.
func (l *Long) AddAndGet(ctx context.Context, delta int64) (int64, error) {
	return l.UpdateAndGet(ctx, func(v int64) int64 { return v + delta })
}

// GetAndAdd adds delta and returns the previous value.
func (l *Long) GetAndAdd(ctx context.Context, delta int64) (int64, error) {
	v, err := l.AddAndGet(ctx, delta)
	if err != nil {
		return 0, err
	}
	return v - delta, nil
}

// IncrementAndGet adds one and returns the new value.
func (l *Long) IncrementAndGet(ctx context.Context) (int64, error) {
	return l.AddAndGet(ctx, 1)
}

// DecrementAndGet subtracts one and returns the new value.
func (l *Long) DecrementAndGet(ctx context.Context) (int64, error) {
	return l.AddAndGet(ctx, -1)
}

// GetAndIncrement adds one and returns the previous value.
func (l *Long) GetAndIncrement(ctx context.Context) (int64, error) {
	return l.GetAndAdd(ctx, 1)
}

// GetAndDecrement subtracts one and returns the previous value.
func (l *Long) GetAndDecrement(ctx context.Context) (int64, error) {
	return l.GetAndAdd(ctx, -1)
}
