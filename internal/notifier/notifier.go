// Package notifier implements a shared value that multiple watchers
// can wait on for changes.
package notifier

import (
	"sync"
)

// Value represents a shared value that can be watched for changes.
// Methods on a Value may be called concurrently. The zero
// value holds no value and is ready to use.
type Value struct {
	mu      sync.RWMutex
	wait    sync.Cond
	version int
	val     interface{}
	closed  bool
}

func (v *Value) needsInit() bool {
	return v.wait.L == nil
}

func (v *Value) init() {
	if v.needsInit() {
		v.wait.L = v.mu.RLocker()
	}
}

// Set sets the shared value to x. All watchers will be notified.
func (v *Value) Set(x interface{}) {
	v.mu.Lock()
	v.init()
	v.val = x
	v.version++
	v.mu.Unlock()
	v.wait.Broadcast()
}

// Get returns the current value and reports whether
// Set has ever been called.
func (v *Value) Get() (interface{}, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val, v.version > 0
}

// Close closes the Value, unblocking any outstanding watchers.
// Close always returns nil.
func (v *Value) Close() error {
	v.mu.Lock()
	v.init()
	v.closed = true
	v.mu.Unlock()
	v.wait.Broadcast()
	return nil
}

// Closed reports whether the value has been closed.
func (v *Value) Closed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.closed
}

// Watch returns a Watcher that can be used to watch for changes to the value.
// If Set hasn't been called on the Value, then the watcher
// will block until it is (or until it's closed).
func (v *Value) Watch() *Watcher {
	return &Watcher{value: v}
}

// Watcher represents a single watcher of a shared value.
type Watcher struct {
	value   *Value
	version int
	current interface{}
	closed  bool
}

// Next blocks until there is a new value to be retrieved from the value that is
// being watched. It also unblocks when the value or the Watcher itself is
// closed. Next returns false if the value or the Watcher itself have been
// closed.
//
// Intermediate values set between calls to Next are not seen;
// only the most recent one.
func (w *Watcher) Next() bool {
	v := w.value
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.needsInit() {
		v.mu.RUnlock()
		v.mu.Lock()
		v.init()
		v.mu.Unlock()
		v.mu.RLock()
	}

	// We can go around this loop a maximum of two times,
	// because the only thing that can cause a Wait to
	// return is for the condition to be triggered,
	// which can only happen if Set is called (causing
	// the version to increment) or it is closed
	// causing the closed flag to be set.
	// Both these cases will cause Next to return.
	for {
		if w.version != v.version {
			w.version = v.version
			w.current = v.val
			return true
		}
		if v.closed || w.closed {
			return false
		}
		v.wait.Wait()
	}
}

// Value returns the value retrieved by the most recent call to Next.
func (w *Watcher) Value() interface{} {
	return w.current
}

// Close closes the Watcher without closing the underlying
// value. It may be called concurrently with Next.
func (w *Watcher) Close() {
	w.value.mu.Lock()
	w.value.init()
	w.closed = true
	w.value.mu.Unlock()
	w.value.wait.Broadcast()
}
