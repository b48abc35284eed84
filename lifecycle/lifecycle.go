// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle provides the publish/subscribe bus extensions use to
// observe a switchyard server without the core depending on them.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/z5labs/switchyard/internal/try"
)

// Event names a point in the lifecycle of a server.
type Event string

const (
	// ControllerCreated is emitted once per successfully bound controller.
	ControllerCreated Event = "controller:created"

	// ServerListen is emitted before the server starts accepting connections.
	ServerListen Event = "server:listen"

	// ServerListening is emitted once the server accepts connections.
	ServerListening Event = "server:listening"

	// ServerClose is emitted when the server begins shutting down.
	ServerClose Event = "server:close"

	// ServerClosed is emitted after the server has shut down.
	ServerClosed Event = "server:closed"
)

// Listener is the payload of every server:* [Event].
type Listener struct {
	Network string
	Addr    string
}

// Handler reacts to an emitted [Event].
type Handler interface {
	Handle(ctx context.Context, payload any) error
}

// HandlerFunc is a func variant of the [Handler] interface.
type HandlerFunc func(context.Context, any) error

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(ctx context.Context, payload any) error {
	return f(ctx, payload)
}

// PayloadTypeError is returned by handlers registered with [Subscribe]
// when an event is emitted with an unexpected payload type.
type PayloadTypeError struct {
	Event   Event
	Payload any
}

// Error implements the [builtin.error] interface.
func (e PayloadTypeError) Error() string {
	return fmt.Sprintf("unexpected payload type for %s: %T", e.Event, e.Payload)
}

// Subscription identifies a single registration on a [Bus].
type Subscription struct {
	event Event
	id    uint64
}

// Event returns the event the subscription is registered for.
func (s Subscription) Event() Event {
	return s.event
}

type subscriber struct {
	id   uint64
	h    Handler
	once bool
}

// Bus dispatches events to their subscribers in subscription order.
// The zero value is ready to use.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Event][]subscriber
}

// On registers h to be called every time ev is emitted.
func (b *Bus) On(ev Event, h Handler) Subscription {
	return b.subscribe(ev, h, false)
}

// Once registers h to be called the next time ev is emitted only.
func (b *Bus) Once(ev Event, h Handler) Subscription {
	return b.subscribe(ev, h, true)
}

func (b *Bus) subscribe(ev Event, h Handler, once bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[Event][]subscriber)
	}
	b.nextID++
	b.subs[ev] = append(b.subs[ev], subscriber{id: b.nextID, h: h, once: once})
	return Subscription{event: ev, id: b.nextID}
}

// Off removes the subscription and reports whether it was still registered.
func (b *Bus) Off(s Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.remove(s.event, s.id)
}

func (b *Bus) remove(ev Event, id uint64) bool {
	subs := b.subs[ev]
	i := slices.IndexFunc(subs, func(sub subscriber) bool {
		return sub.id == id
	})
	if i < 0 {
		return false
	}
	b.subs[ev] = slices.Delete(slices.Clone(subs), i, i+1)
	return true
}

// Emit calls every subscriber of ev sequentially. All subscribers are
// called even if one fails and their errors are joined together.
// A panicking subscriber is reported as an error.
func (b *Bus) Emit(ctx context.Context, ev Event, payload any) error {
	b.mu.Lock()
	subs := b.subs[ev]
	for _, sub := range subs {
		if sub.once {
			b.remove(ev, sub.id)
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		err := try.Do(func() error {
			return sub.h.Handle(ctx, payload)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// Subscribe registers a typed handler for ev. Events whose payload is
// not a T fail with a [PayloadTypeError].
func Subscribe[T any](b *Bus, ev Event, f func(context.Context, T) error) Subscription {
	return b.On(ev, HandlerFunc(func(ctx context.Context, payload any) error {
		v, ok := payload.(T)
		if !ok {
			return PayloadTypeError{Event: ev, Payload: payload}
		}
		return f(ctx, v)
	}))
}

type key struct{}

var contextKey = &key{}

// NewContext returns a new [context.Context] carrying the [Bus].
func NewContext(parent context.Context, b *Bus) context.Context {
	return context.WithValue(parent, contextKey, b)
}

// FromContext tries to extract a [Bus] from the given [context.Context].
func FromContext(ctx context.Context) (*Bus, bool) {
	b, ok := ctx.Value(contextKey).(*Bus)
	return b, ok
}
