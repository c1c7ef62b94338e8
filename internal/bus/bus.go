// Package bus is an in-process notification bus. The importer publishes a
// message whenever it creates a row; subscribers run on the bus goroutine.
package bus

import (
	"log/slog"
	"sync"
	"time"
)

// Topic names a kind of notification.
type Topic string

// Known topics.
const (
	ArtistNew     Topic = "artist.new"
	PromoterNew   Topic = "promoter.new"
	VenueNew      Topic = "venue.new"
	GenreNew      Topic = "genre.new"
	EventImported Topic = "event.imported"
)

// Message is one notification.
type Message struct {
	Topic     Topic          `json:"topic"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler processes a message.
type Handler func(Message)

// Publisher is the sending half of the bus.
type Publisher interface {
	Publish(m Message)
}

// Bus fans messages out to subscribers from a buffered queue.
type Bus struct {
	queue   chan Message
	mu      sync.RWMutex
	subs    map[Topic][]Handler
	all     []Handler
	logger  *slog.Logger
	closing chan struct{}
	drained chan struct{}
	once    sync.Once
}

// New creates a bus holding up to size pending messages.
func New(logger *slog.Logger, size int) *Bus {
	if size <= 0 {
		size = 256
	}
	return &Bus{
		queue:   make(chan Message, size),
		subs:    make(map[Topic][]Handler),
		logger:  logger.With(slog.String("component", "bus")),
		closing: make(chan struct{}),
		drained: make(chan struct{}),
	}
}

// Subscribe registers h for one topic.
func (b *Bus) Subscribe(t Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// SubscribeAll registers h for every topic.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish queues m without blocking. Messages are dropped with a warning
// when the queue is full.
func (b *Bus) Publish(m Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	select {
	case b.queue <- m:
	default:
		b.logger.Warn("queue full, dropping message", slog.String("topic", string(m.Topic)))
	}
}

// Run delivers messages until Close is called, then delivers whatever is
// still queued and returns. Run it in its own goroutine.
func (b *Bus) Run() {
	defer close(b.drained)
	for {
		select {
		case m := <-b.queue:
			b.deliver(m)
		case <-b.closing:
			for {
				select {
				case m := <-b.queue:
					b.deliver(m)
				default:
					return
				}
			}
		}
	}
}

// Close stops Run after the queue drains and waits for it to finish.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.closing) })
	<-b.drained
}

func (b *Bus) deliver(m Message) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[m.Topic])+len(b.all))
	handlers = append(handlers, b.subs[m.Topic]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(h, m)
	}
}

func (b *Bus) call(h Handler, m Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked", slog.String("topic", string(m.Topic)), slog.Any("panic", r))
		}
	}()
	h(m)
}

// Discard is a Publisher that drops every message.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(Message) {}
