// Package livereload fans reload signals out to connected preview clients.
//
// One hub goroutine owns the subscriber set. Every subscriber has its own
// bounded queue; when a queue is full the oldest message is dropped, since
// only the latest reload matters. Publish never blocks the caller.
package livereload

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/cydonia/internal/logging"
)

// DefaultQueueSize is the per-subscriber queue capacity.
const DefaultQueueSize = 8

// Message is the payload of a reload frame. Clients treat any frame as a
// reload request; the fields are informational.
type Message struct {
	Type      string    `json:"type"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber receives every message published after it subscribed.
type Subscriber struct {
	ch chan []byte
}

// C returns the subscriber's queue. It is closed when the subscriber is
// removed or the hub shuts down.
func (s *Subscriber) C() <-chan []byte {
	return s.ch
}

// Hub is a broadcast primitive with per-subscriber queues.
type Hub struct {
	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan []byte

	queueSize   int
	subscribers int64
	published   int64

	logger logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	shutdownOnce sync.Once
}

// NewHub creates a hub and starts its goroutine.
func NewHub(logger logging.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		broadcast:  make(chan []byte, queueSize),
		queueSize:  queueSize,
		logger:     logger.WithComponent("livereload"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go h.run()

	return h
}

func (h *Hub) run() {
	defer close(h.done)
	subscribers := make(map[*Subscriber]struct{})

	for {
		select {
		case s := <-h.register:
			subscribers[s] = struct{}{}
			atomic.StoreInt64(&h.subscribers, int64(len(subscribers)))
			h.logger.Debug(h.ctx, "Client subscribed", "subscribers", len(subscribers))

		case s := <-h.unregister:
			if _, ok := subscribers[s]; ok {
				delete(subscribers, s)
				close(s.ch)
				atomic.StoreInt64(&h.subscribers, int64(len(subscribers)))
				h.logger.Debug(h.ctx, "Client unsubscribed", "subscribers", len(subscribers))
			}

		case msg := <-h.broadcast:
			for s := range subscribers {
				offer(s.ch, msg)
			}

		case <-h.ctx.Done():
			for s := range subscribers {
				close(s.ch)
			}
			atomic.StoreInt64(&h.subscribers, 0)
			return
		}
	}
}

// offer enqueues msg, discarding the oldest queued message when ch is full.
// ch must have a single producer.
func offer(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- msg:
	default:
	}
}

// Subscribe registers a new subscriber. After shutdown the returned
// subscriber's queue is already closed.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan []byte, h.queueSize)}

	select {
	case h.register <- s:
	case <-h.ctx.Done():
		close(s.ch)
	}

	return s
}

// Unsubscribe removes s. It is safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.ctx.Done():
	}
}

// Publish broadcasts msg to every subscriber without blocking.
func (h *Hub) Publish(msg []byte) {
	if h.ctx.Err() != nil {
		return
	}
	offer(h.broadcast, msg)
	atomic.AddInt64(&h.published, 1)
}

// PublishReload broadcasts a reload message.
func (h *Hub) PublishReload(reason string) {
	data, err := json.Marshal(Message{Type: "reload", Reason: reason, Timestamp: time.Now()})
	if err != nil {
		h.logger.Error(h.ctx, err, "Failed to marshal reload message")
		return
	}
	h.Publish(data)
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	return int(atomic.LoadInt64(&h.subscribers))
}

// Published returns the number of messages published.
func (h *Hub) Published() int64 {
	return atomic.LoadInt64(&h.published)
}

// Shutdown stops the hub and closes every subscriber queue.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}
