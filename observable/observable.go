package observable

import (
	"sync"
)

// Observer receives the values of a single-value or multi-value source.
// Error and Complete are terminal: nothing is delivered after them.
type Observer[T any] interface {
	Next(value T)
	Error(err error)
	Complete()
}

// Funcs adapts plain functions to Observer. Nil functions are ignored.
type Funcs[T any] struct {
	OnNext     func(value T)
	OnError    func(err error)
	OnComplete func()
}

func (f Funcs[T]) Next(value T) {
	if f.OnNext != nil {
		f.OnNext(value)
	}
}

func (f Funcs[T]) Error(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

func (f Funcs[T]) Complete() {
	if f.OnComplete != nil {
		f.OnComplete()
	}
}

// Subscription cancels delivery to one observer.
type Subscription struct {
	mutex   sync.Mutex
	closed  bool
	cancels []func()
}

// NewSubscription returns an open subscription with nothing attached yet.
func NewSubscription() *Subscription {
	return &Subscription{}
}

// OnUnsubscribe registers f to run on Unsubscribe. If the subscription is
// already closed f runs immediately.
func (s *Subscription) OnUnsubscribe(f func()) {
	s.mutex.Lock()
	if !s.closed {
		s.cancels = append(s.cancels, f)
		s.mutex.Unlock()
		return
	}
	s.mutex.Unlock()
	f()
}

// Unsubscribe stops delivery. It is safe to call more than once and from
// inside an observer callback.
func (s *Subscription) Unsubscribe() {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.mutex.Unlock()

	for _, f := range cancels {
		f()
	}
}

func (s *Subscription) Closed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

// close marks the subscription as terminated without running cancels.
func (s *Subscription) close() {
	s.mutex.Lock()
	s.closed = true
	s.cancels = nil
	s.mutex.Unlock()
}

// closedSubscription returns an already terminated subscription.
func closedSubscription() *Subscription {
	return &Subscription{closed: true}
}

// Registry is a set of observers sharing one multi-value source. Values are
// delivered in registration order, outside the registry lock, so observers
// may subscribe or unsubscribe from their callbacks.
type Registry[T any] struct {
	mutex     sync.Mutex
	seq       int
	order     []int
	observers map[int]registered[T]
}

type registered[T any] struct {
	observer     Observer[T]
	subscription *Subscription
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		observers: map[int]registered[T]{},
	}
}

func (r *Registry[T]) Add(observer Observer[T]) *Subscription {
	s := NewSubscription()
	r.Attach(observer, s)
	return s
}

// Attach registers observer under an existing subscription. Nothing happens
// if s is already closed.
func (r *Registry[T]) Attach(observer Observer[T], s *Subscription) {
	if s.Closed() {
		return
	}

	r.mutex.Lock()
	r.seq++
	key := r.seq
	r.observers[key] = registered[T]{observer: observer, subscription: s}
	r.order = append(r.order, key)
	r.mutex.Unlock()

	s.OnUnsubscribe(func() {
		r.remove(key)
	})
}

func (r *Registry[T]) remove(key int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.observers[key]; !exists {
		return
	}
	delete(r.observers, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry[T]) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.observers)
}

func (r *Registry[T]) snapshot(clear bool) []registered[T] {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	list := make([]registered[T], 0, len(r.order))
	for _, key := range r.order {
		list = append(list, r.observers[key])
	}
	if clear {
		r.observers = map[int]registered[T]{}
		r.order = nil
	}
	return list
}

func (r *Registry[T]) Next(value T) {
	for _, item := range r.snapshot(false) {
		if item.subscription.Closed() {
			continue
		}
		item.observer.Next(value)
	}
}

// Error delivers err and unregisters every observer.
func (r *Registry[T]) Error(err error) {
	for _, item := range r.snapshot(true) {
		if item.subscription.Closed() {
			continue
		}
		item.subscription.close()
		item.observer.Error(err)
	}
}

// Complete completes and unregisters every observer.
func (r *Registry[T]) Complete() {
	for _, item := range r.snapshot(true) {
		if item.subscription.Closed() {
			continue
		}
		item.subscription.close()
		item.observer.Complete()
	}
}
