package core

import (
	"fmt"
	"hash/fnv"
	"sync"
)

const routerShards = 32

// Router maps channel ids to the connections currently subscribed. Channels
// are routing keys only, not persisted entities: `room:<roomId>` for group
// rooms and an order-independent `dm:<minUserId>:<maxUserId>` for direct
// pairs. Mutations for the same channel are serialized by that channel's
// shard.
type Router struct {
	shards [routerShards]routerShard
}

type routerShard struct {
	mu       sync.RWMutex
	channels map[string]map[string]*Connection
}

// NewRouter constructs an empty room router.
func NewRouter() *Router {
	rt := &Router{}
	for i := range rt.shards {
		rt.shards[i].channels = make(map[string]map[string]*Connection)
	}
	return rt
}

func (rt *Router) shard(channelID string) *routerShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(channelID))
	return &rt.shards[h.Sum32()%routerShards]
}

// DeriveDirectChannel canonicalizes a user pair into its direct channel key.
// Both participants compute the identical key without coordination.
func DeriveDirectChannel(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("dm:%d:%d", userA, userB)
}

// RoomChannel returns the routing key for a persisted group room.
func RoomChannel(roomID int64) string {
	return fmt.Sprintf("room:%d", roomID)
}

// Join idempotently subscribes the connection to the channel. The channel is
// recorded on the connection's own joined set first, so disconnect cleanup is
// bounded by the channels joined and a closed connection is refused outright.
// Returns false when the connection was already subscribed or is closed.
func (rt *Router) Join(channelID string, conn *Connection) bool {
	if !conn.addJoined(channelID) {
		return false
	}

	s := rt.shard(channelID)
	s.mu.Lock()
	set, ok := s.channels[channelID]
	if !ok {
		set = make(map[string]*Connection)
		s.channels[channelID] = set
	}
	set[conn.ID] = conn
	s.mu.Unlock()

	// A disconnect may have drained the joined set between the record above
	// and the insert. Undo so no ghost subscriber survives the teardown.
	if conn.isClosed() {
		rt.Leave(channelID, conn)
		return false
	}
	return true
}

// Leave unsubscribes the connection from one channel.
func (rt *Router) Leave(channelID string, conn *Connection) {
	s := rt.shard(channelID)
	s.mu.Lock()
	if set, ok := s.channels[channelID]; ok {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(s.channels, channelID)
		}
	}
	s.mu.Unlock()

	conn.removeJoined(channelID)
}

// LeaveAll removes the connection from every channel it had joined. Called
// on disconnect; afterwards no broadcast can reach the connection.
func (rt *Router) LeaveAll(conn *Connection) {
	for _, channelID := range conn.drainJoined() {
		s := rt.shard(channelID)
		s.mu.Lock()
		if set, ok := s.channels[channelID]; ok {
			delete(set, conn.ID)
			if len(set) == 0 {
				delete(s.channels, channelID)
			}
		}
		s.mu.Unlock()
	}
}

// SubscribersOf returns a snapshot of the connections subscribed to the
// channel.
func (rt *Router) SubscribersOf(channelID string) []*Connection {
	s := rt.shard(channelID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.channels[channelID]
	conns := make([]*Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}
