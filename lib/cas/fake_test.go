package cas

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
)

// fakeHandle is an in-memory register with single-winner compare-and-set.
// Hooks run before the operation and may change the value or fail the call.
type fakeHandle struct {
	mu    sync.Mutex
	value int64

	gets atomic.Int64
	sets atomic.Int64

	beforeGet func(call int64) error
	beforeCAS func(call int64, f *fakeHandle) (override *bool, err error)
}

func newFakeHandle(initial int64) *fakeHandle {
	return &fakeHandle{value: initial}
}

func (f *fakeHandle) Get(_ context.Context) (int64, error) {
	call := f.gets.Add(1)
	if f.beforeGet != nil {
		if err := f.beforeGet(call); err != nil {
			return 0, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, nil
}

func (f *fakeHandle) CompareAndSet(_ context.Context, expected, updated int64) (bool, error) {
	call := f.sets.Add(1)
	if f.beforeCAS != nil {
		override, err := f.beforeCAS(call, f)
		if err != nil {
			return false, err
		}
		if override != nil {
			return *override, nil
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.value != expected {
		return false, nil
	}
	f.value = updated
	return true, nil
}

// set changes the value behind the updater's back.
func (f *fakeHandle) set(v int64) {
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
}

func (f *fakeHandle) current() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// fakeBytes is a byte valued register where a missing value equals an empty one.
type fakeBytes struct {
	mu    sync.Mutex
	value []byte
}

func (f *fakeBytes) Get(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.value...), nil
}

func (f *fakeBytes) CompareAndSet(_ context.Context, expected, updated []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !bytes.Equal(f.value, expected) {
		return false, nil
	}
	f.value = append([]byte(nil), updated...)
	return true, nil
}
