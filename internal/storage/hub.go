package storage

import (
	"strings"
	"sync"
)

// Subscription is a live listener on one document.
type Subscription struct {
	cancel func()
	once   sync.Once
}

// NewSubscription wraps a cancel function. Cancel is safe to call more than
// once.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel stops delivery. A callback already running may finish.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Hub fans document changes out to subscribers. Each subscriber has its own
// goroutine and a single pending slot, so a slow subscriber only ever sees
// the latest state of its document and never blocks publishers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	closed bool
}

type subscriber struct {
	fn     func(Change)
	signal chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	pending   *Change
	published bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]*subscriber)}
}

func hubKey(collection, key string) string {
	return collection + "\x00" + key
}

// Subscribe registers fn for changes to collection/key. The caller should
// call the returned offer func with the current state.
func (h *Hub) Subscribe(collection, key string, fn func(Change)) (*Subscription, func(Change)) {
	sub := &subscriber{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.done)
		return NewSubscription(nil), func(Change) {}
	}
	id := h.nextID
	h.nextID++
	k := hubKey(collection, key)
	if h.subs[k] == nil {
		h.subs[k] = make(map[uint64]*subscriber)
	}
	h.subs[k][id] = sub
	h.mu.Unlock()

	go sub.run()

	cancel := func() {
		h.mu.Lock()
		if m := h.subs[k]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(h.subs, k)
			}
		}
		h.mu.Unlock()
		sub.stop()
	}
	return NewSubscription(cancel), sub.offer
}

// Publish delivers c to every subscriber of its document.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs[hubKey(c.Collection, c.Key)]))
	for _, s := range h.subs[hubKey(c.Collection, c.Key)] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.push(c, true)
	}
}

// Subscribers returns the number of live subscriptions on a document.
func (h *Hub) Subscribers(collection, key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[hubKey(collection, key)])
}

// Watched lists the documents with at least one subscriber. Doc is unset.
func (h *Hub) Watched() []Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Change, 0, len(h.subs))
	for k := range h.subs {
		collection, key, _ := strings.Cut(k, "\x00")
		out = append(out, Change{Collection: collection, Key: key})
	}
	return out
}

// Close stops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := h.subs
	h.subs = make(map[string]map[uint64]*subscriber)
	h.mu.Unlock()

	for _, m := range all {
		for _, s := range m {
			s.stop()
		}
	}
}

// offer delivers an initial state unless a published change got there first.
func (s *subscriber) offer(c Change) {
	s.push(c, false)
}

func (s *subscriber) push(c Change, published bool) {
	s.mu.Lock()
	if !published && s.published {
		s.mu.Unlock()
		return
	}
	if published {
		s.published = true
	}
	c.Doc = c.Doc.Clone()
	s.pending = &c
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		c := s.pending
		s.pending = nil
		s.mu.Unlock()

		if c == nil {
			continue
		}
		select {
		case <-s.done:
			return
		default:
		}
		s.fn(*c)
	}
}
