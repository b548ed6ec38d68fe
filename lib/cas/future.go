package cas

import "context"

// Future is the pending result of an update running in the background.
type Future[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  T
	err    error
}

// UpdateAsync starts Update on its own goroutine and returns immediately.
func UpdateAsync[T any](ctx context.Context, h Handle[T], transform func(T) T, opts ...Option) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		f.value, f.err = Update(ctx, h, transform, opts...)
		close(f.done)
	}()

	return f
}

// Done is closed once the update has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel stops the update from starting further attempts. An attempt that
// already committed stays committed and its value is still reported by Get.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Get waits for the update to finish or for ctx to be done, whichever
// happens first. Giving up on waiting does not cancel the update.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
