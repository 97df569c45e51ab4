package observable

import (
	"context"
	"sync"
)

// Future is a single-value asynchronous result. It settles exactly once,
// either resolved with a value or rejected with an error.
type Future[T any] struct {
	done chan struct{}

	mutex   sync.Mutex
	settled bool
	value   T
	err     error
	pending *Registry[T]
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{
		done:    make(chan struct{}),
		pending: NewRegistry[T](),
	}
}

func Resolved[T any](value T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(value)
	return f
}

func Rejected[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Reject(err)
	return f
}

// Go runs fn in a new goroutine and settles the future with its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		f.Settle(fn())
	}()
	return f
}

// Resolve settles the future with value. It returns false if the future was
// already settled.
func (f *Future[T]) Resolve(value T) bool {
	return f.settle(value, nil)
}

// Reject settles the future with err. It returns false if the future was
// already settled.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	return f.settle(zero, err)
}

// Settle resolves when err is nil and rejects otherwise.
func (f *Future[T]) Settle(value T, err error) bool {
	return f.settle(value, err)
}

func (f *Future[T]) settle(value T, err error) bool {
	f.mutex.Lock()
	if f.settled {
		f.mutex.Unlock()
		return false
	}
	f.settled = true
	f.value = value
	f.err = err
	close(f.done)
	f.mutex.Unlock()

	if err != nil {
		f.pending.Error(err)
		return true
	}
	f.pending.Next(value)
	f.pending.Complete()
	return true
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future settles or ctx is done. A cancelled wait
// leaves the future untouched.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking; ok is false while pending.
func (f *Future[T]) Result() (value T, err error, ok bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.value, f.err, f.settled
}

// Subscribe delivers Next followed by Complete, or Error, once the future
// settles. If it already settled delivery happens before Subscribe returns.
// Unsubscribing before settlement only suppresses delivery; the work behind
// the future keeps running.
func (f *Future[T]) Subscribe(observer Observer[T]) *Subscription {
	f.mutex.Lock()
	if !f.settled {
		defer f.mutex.Unlock()
		return f.pending.Add(observer)
	}
	value, err := f.value, f.err
	f.mutex.Unlock()

	if err != nil {
		observer.Error(err)
	} else {
		observer.Next(value)
		observer.Complete()
	}
	return closedSubscription()
}
