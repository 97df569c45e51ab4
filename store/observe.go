package store

import (
	"context"
	"fmt"

	"github.com/fulldump/objectstore/collection"
	"github.com/fulldump/objectstore/observable"
	"github.com/fulldump/objectstore/patch"
	"github.com/fulldump/objectstore/storage"
)

// ChangeRecord is delivered to whole-collection observers after every
// mutation that changed something: the delta plus the full collection
// before and after it.
type ChangeRecord struct {
	Puts      []Record `json:"puts"`
	Deletes   []string `json:"deletes"`
	BeforeAll []Record `json:"before_all"`
	AfterAll  []Record `json:"after_all"`
}

// Observe follows one record. The observer first receives the current
// record, or ErrorNotFound if it does not exist; then every put or patch of
// it. Deleting the record completes the observer.
//
// Registration is queued behind pending mutations, so the first value
// already reflects them.
func (s *Store) Observe(id string, observer observable.Observer[Record]) *observable.Subscription {
	id, _ = collection.CanonicalID(id)
	subscription := observable.NewSubscription()

	queued := s.enqueue(func() {
		if subscription.Closed() {
			return
		}

		records, err := s.storage.Get(context.Background(), []string{id})
		if err != nil {
			subscription.Unsubscribe()
			observer.Error(err)
			return
		}
		if records[0] == nil {
			subscription.Unsubscribe()
			observer.Error(fmt.Errorf("%w: id '%s'", ErrorNotFound, id))
			return
		}

		s.attachItem(id, observer, subscription)
		if !subscription.Closed() {
			observer.Next(records[0])
		}
	})
	if !queued {
		subscription.Unsubscribe()
		observer.Error(ErrorClosed)
	}

	return subscription
}

// ObserveAll follows the whole collection. The first ChangeRecord has no
// puts nor deletes and the current records as both snapshots. Observers are
// only completed by Close.
func (s *Store) ObserveAll(observer observable.Observer[ChangeRecord]) *observable.Subscription {
	subscription := observable.NewSubscription()

	queued := s.enqueue(func() {
		if subscription.Closed() {
			return
		}

		current, err := s.snapshot(context.Background())
		if err != nil {
			subscription.Unsubscribe()
			observer.Error(err)
			return
		}

		s.all.Attach(observer, subscription)
		if !subscription.Closed() {
			observer.Next(ChangeRecord{
				Puts:      []Record{},
				Deletes:   []string{},
				BeforeAll: current,
				AfterAll:  current,
			})
		}
	})
	if !queued {
		subscription.Unsubscribe()
		observer.Error(ErrorClosed)
	}

	return subscription
}

func (s *Store) itemRegistry(id string) *observable.Registry[Record] {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.items[id]
}

// attachItem registers observer for id. The registry is dropped from the
// store when its last observer unsubscribes.
func (s *Store) attachItem(id string, observer observable.Observer[Record], subscription *observable.Subscription) {
	s.mutex.Lock()
	registry, exists := s.items[id]
	if !exists {
		registry = observable.NewRegistry[Record]()
		s.items[id] = registry
	}
	registry.Attach(observer, subscription)
	s.mutex.Unlock()

	subscription.OnUnsubscribe(func() {
		s.releaseItem(id, registry)
	})
}

func (s *Store) releaseItem(id string, registry *observable.Registry[Record]) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.items[id] == registry && registry.Len() == 0 {
		delete(s.items, id)
	}
}

func (s *Store) notifyPuts(results *storage.UpdateResults[Record]) ChangeRecord {
	ids := s.storage.Identify(results.SuccessfulData)
	for i, id := range ids {
		registry := s.itemRegistry(id)
		if registry == nil {
			continue
		}
		registry.Next(patch.Clone(results.SuccessfulData[i]).(map[string]any))
	}

	puts := make([]Record, len(results.SuccessfulData))
	for i, record := range results.SuccessfulData {
		puts[i] = patch.Clone(record).(map[string]any)
	}

	return ChangeRecord{
		Puts:    puts,
		Deletes: []string{},
	}
}

func (s *Store) notifyDeletes(results *storage.UpdateResults[string]) ChangeRecord {
	for _, id := range results.SuccessfulData {
		s.mutex.Lock()
		registry := s.items[id]
		delete(s.items, id)
		s.mutex.Unlock()

		if registry != nil {
			registry.Complete()
		}
	}

	return ChangeRecord{
		Puts:    []Record{},
		Deletes: results.SuccessfulData,
	}
}
