package core

import "sync"

// registryShards must be a power of two so the modulo stays a mask.
const registryShards = 32

// Registry tracks which connections belong to which user. Mutations for the
// same user are serialized by that user's shard; unrelated users proceed on
// independent shards. Locks are held only around the in-memory maps, never
// across I/O.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	users map[int64]map[string]*Connection
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].users = make(map[int64]map[string]*Connection)
	}
	return r
}

func (r *Registry) shard(userID int64) *registryShard {
	return &r.shards[uint64(userID)%registryShards]
}

// Register idempotently adds the connection under its user's set.
func (r *Registry) Register(conn *Connection) {
	s := r.shard(conn.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[conn.UserID]
	if !ok {
		set = make(map[string]*Connection)
		s.users[conn.UserID] = set
	}
	set[conn.ID] = conn
}

// Unregister removes the connection. When the user's set becomes empty the
// user entry is removed entirely so presence checks stay O(1).
func (r *Registry) Unregister(conn *Connection) {
	s := r.shard(conn.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[conn.UserID]
	if !ok {
		return
	}
	delete(set, conn.ID)
	if len(set) == 0 {
		delete(s.users, conn.UserID)
	}
}

// ConnectionsFor returns a snapshot of the user's live connections. An empty
// result means the user has no live device; callers skip push delivery
// without error.
func (r *Registry) ConnectionsFor(userID int64) []*Connection {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.users[userID]
	conns := make([]*Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID]) > 0
}
