package eventbus

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	logx "bridgekit/pkg/logx"
)

var (
	ErrUnknownTopic = errors.New("eventbus: unknown topic")
	ErrNilHandler   = errors.New("eventbus: nil handler")
)

// Handler receives a broadcast. A returned error is logged and reported
// to the error hook; it never stops delivery to other subscribers.
type Handler func(topic string, args Args) error

// Func adapts a handler that cannot fail.
func Func(fn func(topic string, args Args)) Handler {
	return func(topic string, args Args) error {
		fn(topic, args)
		return nil
	}
}

type Option func(*Bus)

func WithLogger(log logx.Logger) Option { return func(b *Bus) { b.log = log } }

// WithErrorHook installs a callback for handler failures (errors and panics).
func WithErrorHook(fn func(topic, subscriptionID string, err error)) Option {
	return func(b *Bus) { b.onError = fn }
}

// WithIDGenerator overrides subscription id generation (default: UUIDv4).
func WithIDGenerator(fn func() string) Option { return func(b *Bus) { b.newID = fn } }

type subscription struct {
	id      string
	topic   string
	handler Handler
}

// Bus is a named-topic registry with synchronous fan-out.
//
// Contract:
//   - Topics must be defined before Subscribe/Broadcast; a topic is never removed.
//   - Broadcast invokes handlers in subscription order and blocks until all ran.
//   - Handlers run without the registry lock held and may re-enter the Bus.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]*subscription // copy-on-write per topic
	byID   map[string]*subscription

	log     logx.Logger
	onError func(topic, subscriptionID string, err error)
	newID   func() string
}

func New(opts ...Option) *Bus {
	b := &Bus{
		topics: map[string][]*subscription{},
		byID:   map[string]*subscription{},
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		if o != nil {
			o(b)
		}
	}
	if b.log.IsZero() {
		b.log = logx.Nop()
	}
	return b
}

// Define registers topic. Redefining an existing topic is a no-op.
func (b *Bus) Define(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[topic]; ok {
		return
	}
	b.topics[topic] = nil
	b.log.Debug("topic defined", logx.String("topic", topic))
}

func (b *Bus) Defined(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.topics[topic]
	return ok
}

// Topics returns the defined topic names, sorted.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	out := make([]string, 0, len(b.topics))
	for t := range b.topics {
		out = append(out, t)
	}
	b.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Subscribers returns the number of active subscriptions on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Subscribe registers h on topic and returns its subscription id.
func (b *Bus) Subscribe(topic string, h Handler) (string, error) {
	if h == nil {
		return "", ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	id := b.newID()
	for _, taken := b.byID[id]; taken; _, taken = b.byID[id] {
		id = b.newID()
	}
	sub := &subscription{id: id, topic: topic, handler: h}

	next := make([]*subscription, len(subs), len(subs)+1)
	copy(next, subs)
	b.topics[topic] = append(next, sub)
	b.byID[id] = sub

	b.log.Debug("subscribed", logx.String("topic", topic), logx.String("subscription_id", id))
	return id, nil
}

// Unsubscribe removes the subscription. Unknown or already removed ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.byID[id]
	if !ok {
		return
	}
	delete(b.byID, id)

	subs := b.topics[sub.topic]
	next := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		if s != sub {
			next = append(next, s)
		}
	}
	b.topics[sub.topic] = next
	b.log.Debug("unsubscribed", logx.String("topic", sub.topic), logx.String("subscription_id", id))
}

// Broadcast delivers args to every current subscriber of topic.
// Handler failures are isolated; the returned error only reports an undefined topic.
func (b *Bus) Broadcast(topic string, args ...Value) error {
	b.mu.RLock()
	subs, ok := b.topics[topic]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	// each handler gets its own copy so writes to args stay local
	for _, sub := range subs {
		b.deliver(topic, sub, append(Args(nil), args...))
	}
	return nil
}

// Publish is Broadcast with plain Go values (see Values).
func (b *Bus) Publish(topic string, vs ...any) error {
	return b.Broadcast(topic, Values(vs...)...)
}

func (b *Bus) deliver(topic string, sub *subscription, args Args) {
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = sub.handler(topic, args) })

	if r := pc.Recovered(); r != nil {
		err = r.AsError()
		b.log.Error("handler panicked",
			logx.String("topic", topic),
			logx.String("subscription_id", sub.id),
			logx.Any("panic", r.Value),
			logx.Stack(string(r.Stack)),
		)
	} else if err != nil {
		b.log.Warn("handler failed",
			logx.String("topic", topic),
			logx.String("subscription_id", sub.id),
			logx.Err(err),
		)
	}
	if err != nil && b.onError != nil {
		b.onError(topic, sub.id, err)
	}
}
