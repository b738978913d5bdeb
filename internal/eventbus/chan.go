package eventbus

import (
	"sync"
	"time"
)

// Message is a broadcast captured for channel subscribers.
type Message struct {
	Topic string
	Time  time.Time
	Args  Args
}

// SubscribeChan subscribes a buffered channel to topic.
//
// Delivery is non-blocking: when the buffer is full the message is dropped.
// The returned func unsubscribes and closes the channel; it is safe to call
// more than once.
func (b *Bus) SubscribeChan(topic string, buffer int) (<-chan Message, func(), error) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Message, buffer)

	id, err := b.Subscribe(topic, func(topic string, args Args) error {
		// A concurrent unsubscribe may close ch while a broadcast snapshot
		// still references this handler.
		defer func() { _ = recover() }()
		select {
		case ch <- Message{Topic: topic, Time: time.Now(), Args: args}:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.Unsubscribe(id)
			close(ch)
		})
	}
	return ch, unsub, nil
}
