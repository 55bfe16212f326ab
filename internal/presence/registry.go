// Package presence tracks which users currently hold a live connection.
//
// The registry is process-local. Running several API instances behind a load balancer
// needs a shared presence store, which this package does not provide.
package presence

import (
	"sort"
	"sync"

	"github.com/abdojat/fbcloneapi/pkg/metrics"
)

// Conn is a live connection that can receive named events.
type Conn interface {
	ID() string
	Emit(event string, payload any) error
}

// Lookup is the read side used by services that push to online users.
type Lookup interface {
	Connection(userID uint) (Conn, bool)
}

// Registry maps a user id to its most recent connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint]Conn)}
}

// SetOnline binds conn to userID, replacing any earlier connection for that user.
// It reports whether the user was offline before.
func (r *Registry) SetOnline(userID uint, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.conns[userID]
	r.conns[userID] = conn
	metrics.OnlineUsers.Set(float64(len(r.conns)))
	return !existed
}

func (r *Registry) Connection(userID uint) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

// Remove drops the entry bound to conn, if any. A connection that was superseded by a
// later join for the same user is not bound anymore, so removing it changes nothing.
func (r *Registry) Remove(conn Conn) (uint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, c := range r.conns {
		if c.ID() == conn.ID() {
			delete(r.conns, userID)
			metrics.OnlineUsers.Set(float64(len(r.conns)))
			return userID, true
		}
	}
	return 0, false
}

// OnlineIDs returns the online user ids in ascending order.
func (r *Registry) OnlineIDs() []uint {
	r.mu.RLock()
	ids := make([]uint, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
