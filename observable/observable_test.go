package observable

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/fulldump/biff"
)

type recorder[T any] struct {
	mutex     sync.Mutex
	values    []T
	err       error
	completed bool
}

func (r *recorder[T]) Next(value T) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.values = append(r.values, value)
}

func (r *recorder[T]) Error(err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.err = err
}

func (r *recorder[T]) Complete() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.completed = true
}

func TestFuture_Resolve(t *testing.T) {

	f := NewFuture[int]()
	r := &recorder[int]{}
	f.Subscribe(r)

	AssertEqual(len(r.values), 0)

	AssertTrue(f.Resolve(7))
	AssertFalse(f.Resolve(8))
	AssertFalse(f.Reject(errors.New("late")))

	value, err := f.Wait(context.Background())
	AssertNil(err)
	AssertEqual(value, 7)
	AssertEqual(r.values, []int{7})
	AssertTrue(r.completed)
}

func TestFuture_Reject(t *testing.T) {

	cause := errors.New("io failure")
	f := Rejected[string](cause)

	r := &recorder[string]{}
	s := f.Subscribe(r)

	AssertTrue(s.Closed())
	AssertEqual(r.err, cause)
	AssertFalse(r.completed)

	_, err := f.Wait(context.Background())
	AssertEqual(err, cause)
}

func TestFuture_Unsubscribe(t *testing.T) {

	f := NewFuture[int]()
	r := &recorder[int]{}
	s := f.Subscribe(r)

	s.Unsubscribe()
	s.Unsubscribe()
	f.Resolve(1)

	AssertEqual(len(r.values), 0)
	AssertFalse(r.completed)

	value, _, ok := f.Result()
	AssertTrue(ok)
	AssertEqual(value, 1)
}

func TestFuture_WaitCancelled(t *testing.T) {

	f := NewFuture[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	AssertEqual(err, context.DeadlineExceeded)

	_, _, ok := f.Result()
	AssertFalse(ok)
}

func TestGo(t *testing.T) {

	f := Go(func() (string, error) {
		return "done", nil
	})

	<-f.Done()
	value, err, ok := f.Result()
	AssertTrue(ok)
	AssertNil(err)
	AssertEqual(value, "done")
}

func TestRegistry(t *testing.T) {

	Alternative("Registry with two observers", func(a *A) {
		reg := NewRegistry[string]()
		r1 := &recorder[string]{}
		r2 := &recorder[string]{}
		s1 := reg.Add(r1)
		reg.Add(r2)

		reg.Next("a")
		AssertEqual(reg.Len(), 2)

		a.Alternative("unsubscribe one", func(a *A) {
			s1.Unsubscribe()
			reg.Next("b")

			AssertEqual(r1.values, []string{"a"})
			AssertEqual(r2.values, []string{"a", "b"})
			AssertEqual(reg.Len(), 1)
		})

		a.Alternative("complete", func(a *A) {
			reg.Complete()
			reg.Next("b")

			AssertTrue(r1.completed)
			AssertTrue(r2.completed)
			AssertEqual(r1.values, []string{"a"})
			AssertEqual(reg.Len(), 0)
			AssertTrue(s1.Closed())
		})

		a.Alternative("error", func(a *A) {
			cause := errors.New("gone")
			reg.Error(cause)

			AssertEqual(r1.err, cause)
			AssertEqual(r2.err, cause)
			AssertEqual(reg.Len(), 0)
		})
	})
}

func TestRegistry_UnsubscribeFromCallback(t *testing.T) {

	reg := NewRegistry[int]()
	received := []int{}

	var s *Subscription
	s = reg.Add(Funcs[int]{
		OnNext: func(value int) {
			received = append(received, value)
			s.Unsubscribe()
		},
	})

	reg.Next(1)
	reg.Next(2)

	AssertEqual(received, []int{1})
}

func TestRegistry_AttachClosed(t *testing.T) {

	reg := NewRegistry[int]()
	s := NewSubscription()
	s.Unsubscribe()

	reg.Attach(&recorder[int]{}, s)

	AssertEqual(reg.Len(), 0)
}

func TestSubscription_OnUnsubscribe(t *testing.T) {

	calls := 0
	s := NewSubscription()
	s.OnUnsubscribe(func() { calls++ })

	s.Unsubscribe()
	s.Unsubscribe()
	AssertEqual(calls, 1)

	s.OnUnsubscribe(func() { calls++ })
	AssertEqual(calls, 2)
}
