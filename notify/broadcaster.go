// Package notify carries zero-payload "something changed" signals from a
// store to whoever is displaying it.
package notify

import "sync"

// Notifier is the publishing side of a change channel.
type Notifier interface {
	Publish()
}

var _ Notifier = (*Broadcaster)(nil)

// Broadcaster delivers each Publish synchronously to every subscriber
// registered at the time of the call.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func()
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]func())}
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (b *Broadcaster) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Broadcaster) Publish() {
	b.mu.RLock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	// 在鎖外呼叫，訂閱者可以在回呼中取消訂閱
	for _, fn := range fns {
		fn()
	}
}

// Subscribers reports how many callbacks are registered.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func()

func (f NotifierFunc) Publish() { f() }

type multi []Notifier

func (m multi) Publish() {
	for _, n := range m {
		n.Publish()
	}
}

// Multi fans a publish out to every non-nil notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type nop struct{}

func (nop) Publish() {}

// Nop discards every publish.
var Nop Notifier = nop{}
