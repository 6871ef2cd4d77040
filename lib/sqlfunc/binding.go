// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import (
	"errors"
	"slices"
	"sync"
)

// Binding is a mutable cell holding a function value. Subscribers are
// notified synchronously, in subscription order, each time Set
// replaces the value.
type Binding struct {
	mu          sync.Mutex
	value       any
	subscribers []subscriber
	nextID      uint64
}

type subscriber struct {
	id       uint64
	callback func(value any) error
}

// NewBinding returns a Binding holding value.
func NewBinding(value any) *Binding {
	return &Binding{value: value}
}

// Get returns the current value.
func (binding *Binding) Get() any {
	binding.mu.Lock()
	defer binding.mu.Unlock()
	return binding.value
}

// Set replaces the value and notifies every subscriber. The returned
// error joins the subscriber failures; the value is replaced
// regardless.
//
// A registry subscriber reinstalls the function on every connection,
// which waits for each connection to be idle. Calling Set from inside
// an application function therefore deadlocks: the calling connection
// stays busy until the function returns.
func (binding *Binding) Set(value any) error {
	binding.mu.Lock()
	binding.value = value
	subscribers := slices.Clone(binding.subscribers)
	binding.mu.Unlock()

	var errs []error
	for _, entry := range subscribers {
		if err := entry.callback(value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers callback for future Set calls and returns a
// function that cancels the subscription. Cancel is idempotent.
func (binding *Binding) Subscribe(callback func(value any) error) (cancel func()) {
	binding.mu.Lock()
	defer binding.mu.Unlock()

	binding.nextID++
	id := binding.nextID
	binding.subscribers = append(binding.subscribers, subscriber{id: id, callback: callback})

	return func() {
		binding.mu.Lock()
		defer binding.mu.Unlock()
		for index, entry := range binding.subscribers {
			if entry.id == id {
				binding.subscribers = append(binding.subscribers[:index:index], binding.subscribers[index+1:]...)
				return
			}
		}
	}
}

