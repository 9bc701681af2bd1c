package feed

import (
	"sort"
	"sync"
)

// registry maps a topic key to its live connection.
type registry struct {
	mu    sync.RWMutex
	conns map[string]*conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*conn)}
}

func (r *registry) get(topic string) (*conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[topic]
	return c, ok
}

// put stores c under topic and returns the connection it displaced, if any.
func (r *registry) put(topic string, c *conn) *conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.conns[topic]
	r.conns[topic] = c
	return prev
}

// remove deletes topic only while it still points at c.
func (r *registry) remove(topic string, c *conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[topic] != c {
		return false
	}
	delete(r.conns, topic)
	return true
}

func (r *registry) topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conns))
	for topic := range r.conns {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func (r *registry) all() []*conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
