package stream

import (
	"fmt"
	"sync"

	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/models"
)

// Subscriber receives every successfully decoded snapshot. Implementations
// must tolerate being invoked again with an identical snapshot.
type Subscriber interface {
	OnSnapshot(models.StateSnapshot)
}

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc func(models.StateSnapshot)

func (f SubscriberFunc) OnSnapshot(s models.StateSnapshot) { f(s) }

// Registry owns the ordered subscriber list and the current snapshot slot.
// The list is append-only for the lifetime of the process.
type Registry struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	current     *models.StateSnapshot
	log         *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{log: log}
}

// Subscribe appends s. No de-duplication: subscribing twice means two calls
// per snapshot.
func (r *Registry) Subscribe(s Subscriber) {
	r.mu.Lock()
	r.subscribers = append(r.subscribers, s)
	r.mu.Unlock()
}

// Len reports the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Current returns the last published snapshot, if any.
func (r *Registry) Current() (models.StateSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return models.StateSnapshot{}, false
	}
	return *r.current, true
}

// Publish replaces the current snapshot and hands it to every subscriber in
// registration order. Each call is isolated: a panicking subscriber is
// logged and skipped, the rest still run. It returns the number of
// subscribers that failed.
//
// Ordering across snapshots holds as long as Publish is driven from a single
// goroutine, which is what Client does.
func (r *Registry) Publish(s models.StateSnapshot) int {
	r.mu.Lock()
	r.current = &s
	subs := make([]Subscriber, len(r.subscribers))
	copy(subs, r.subscribers)
	r.mu.Unlock()

	failed := 0
	for i, sub := range subs {
		if err := r.deliver(sub, s); err != nil {
			failed++
			if r.log != nil {
				r.log.Errorw("subscriber_failed", "index", i, "err", err)
			}
		}
	}
	return failed
}

func (r *Registry) deliver(sub Subscriber, s models.StateSnapshot) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("subscriber panic: %v", p)
		}
	}()
	sub.OnSnapshot(s)
	return nil
}
