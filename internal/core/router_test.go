package core

import "testing"

func TestDeriveDirectChannelIsOrderIndependent(t *testing.T) {
	pairs := [][2]int64{{1, 2}, {42, 7}, {100, 100}, {9, 1000000}}
	for _, pair := range pairs {
		forward := DeriveDirectChannel(pair[0], pair[1])
		backward := DeriveDirectChannel(pair[1], pair[0])
		if forward != backward {
			t.Fatalf("channel keys differ for pair %v: %q vs %q", pair, forward, backward)
		}
	}

	if got := DeriveDirectChannel(5, 3); got != "dm:3:5" {
		t.Fatalf("unexpected direct channel key: %q", got)
	}
}

func TestRoomChannelKey(t *testing.T) {
	if got := RoomChannel(12); got != "room:12" {
		t.Fatalf("unexpected room channel key: %q", got)
	}
}

func TestRouterJoinIsIdempotent(t *testing.T) {
	router := NewRouter()
	conn := NewConnection(1, 0)

	if !router.Join("room:1", conn) {
		t.Fatalf("first join should report a new subscription")
	}
	if router.Join("room:1", conn) {
		t.Fatalf("second join should report an existing subscription")
	}

	if subs := router.SubscribersOf("room:1"); len(subs) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", len(subs))
	}
}

func TestRouterLeaveAllUsesJoinedSet(t *testing.T) {
	router := NewRouter()
	conn := NewConnection(1, 0)
	other := NewConnection(2, 0)

	router.Join("room:1", conn)
	router.Join("room:2", conn)
	router.Join("dm:1:2", conn)
	router.Join("room:1", other)

	if got := len(conn.JoinedChannels()); got != 3 {
		t.Fatalf("expected 3 joined channels, got %d", got)
	}

	router.LeaveAll(conn)

	for _, channel := range []string{"room:1", "room:2", "dm:1:2"} {
		for _, sub := range router.SubscribersOf(channel) {
			if sub.ID == conn.ID {
				t.Fatalf("connection still subscribed to %s after LeaveAll", channel)
			}
		}
	}
	if got := len(conn.JoinedChannels()); got != 0 {
		t.Fatalf("expected empty joined set after LeaveAll, got %d", got)
	}
	if subs := router.SubscribersOf("room:1"); len(subs) != 1 {
		t.Fatalf("other connection should remain subscribed, got %d", len(subs))
	}
}

func TestRouterLeave(t *testing.T) {
	router := NewRouter()
	conn := NewConnection(1, 0)

	router.Join("room:9", conn)
	router.Leave("room:9", conn)

	if subs := router.SubscribersOf("room:9"); len(subs) != 0 {
		t.Fatalf("expected no subscribers after leave, got %d", len(subs))
	}
	if got := len(conn.JoinedChannels()); got != 0 {
		t.Fatalf("expected joined set to shrink, got %d", got)
	}
}

func TestRouterJoinRefusesDrainedConnection(t *testing.T) {
	router := NewRouter()
	conn := NewConnection(1, 0)

	router.Join("dm:1:2", conn)
	router.LeaveAll(conn)

	// A connection that has been torn down must never re-enter a channel,
	// even when a concurrent sender still holds a stale reference to it.
	if router.Join("dm:1:2", conn) {
		t.Fatalf("join after teardown should be refused")
	}
	if subs := router.SubscribersOf("dm:1:2"); len(subs) != 0 {
		t.Fatalf("expected no ghost subscriber, got %d", len(subs))
	}
	if got := len(conn.JoinedChannels()); got != 0 {
		t.Fatalf("expected empty joined set, got %d", got)
	}
}
