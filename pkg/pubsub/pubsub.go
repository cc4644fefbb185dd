// Package pubsub provides a basic Publish/Subscribe implementation.
package pubsub

import (
	"log/slog"
	"sync"
)

// DefaultBuffer is the number of messages buffered per subscriber.
const DefaultBuffer = 16

// Publisher allows clients to subscribe and sends them the information provided by Publish.
//
// Publish never blocks: if a subscriber's buffer is full, the message is dropped for that subscriber.
type Publisher[T any] struct {
	clients map[chan T]struct{}
	logger  *slog.Logger
	buffer  int
	lock    sync.RWMutex
}

// New returns a new Publisher
func New[T any](logger *slog.Logger) *Publisher[T] {
	return &Publisher[T]{
		clients: make(map[chan T]struct{}),
		logger:  logger,
		buffer:  DefaultBuffer,
	}
}

// Subscribe registers the caller and returns a new channel on which it will publish updates.
func (p *Publisher[T]) Subscribe() chan T {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan T, p.buffer)
	p.clients[ch] = struct{}{}
	p.logger.Debug("subscriber added", slog.Int("subscribers", len(p.clients)))
	return ch
}

// Unsubscribe removes the registered client/channel. Once Unsubscribe returns, no more updates are sent on the channel.
// Unsubscribing a channel more than once is a no-op.
func (p *Publisher[T]) Unsubscribe(ch chan T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if _, ok := p.clients[ch]; !ok {
		return
	}
	delete(p.clients, ch)
	p.logger.Debug("subscriber removed", slog.Int("subscribers", len(p.clients)))
}

// Publish sends info to all registered clients.
func (p *Publisher[T]) Publish(info T) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for ch := range p.clients {
		select {
		case ch <- info:
		default:
			p.logger.Warn("subscriber not keeping up. update dropped")
		}
	}
}

// Subscribers returns the current number of subscribers
func (p *Publisher[T]) Subscribers() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.clients)
}
