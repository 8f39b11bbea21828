package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

var errInjected = errors.New("injected store failure")

// fakeGateway is an in-memory persistence gateway with failure injection.
type fakeGateway struct {
	mu       sync.Mutex
	users    map[int64]bool
	rooms    map[int64]*store.Room
	messages map[int64]*store.Message
	readers  map[int64]map[int64]struct{}
	nextID   int64

	failCreate bool
	failUpdate bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		users:    make(map[int64]bool),
		rooms:    make(map[int64]*store.Room),
		messages: make(map[int64]*store.Message),
		readers:  make(map[int64]map[int64]struct{}),
	}
}

func (f *fakeGateway) addUser(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = true
}

func (f *fakeGateway) addRoom(room *store.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.ID] = room
}

func (f *fakeGateway) UserExists(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeGateway) GetRoomByID(_ context.Context, id int64, includeDeleted bool) (*store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok || (room.Deleted && !includeDeleted) {
		return nil, store.ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (f *fakeGateway) IsParticipant(_ context.Context, roomID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return false, nil
	}
	for _, p := range room.Participants {
		if p == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGateway) CreateMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errInjected
	}
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	copied := *msg
	f.messages[msg.ID] = &copied
	return nil
}

func (f *fakeGateway) GetMessage(_ context.Context, id int64, includeDeleted bool) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok || (msg.Deleted && !includeDeleted) {
		return nil, store.ErrNotFound
	}
	copied := *msg
	copied.ReadBy = nil
	for reader := range f.readers[id] {
		copied.ReadBy = append(copied.ReadBy, reader)
	}
	return &copied, nil
}

func (f *fakeGateway) UpdateContent(_ context.Context, id int64, content string) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return nil, errInjected
	}
	msg, ok := f.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	msg.Content = content
	msg.Edited = true
	msg.UpdatedAt = time.Now()
	copied := *msg
	return &copied, nil
}

func (f *fakeGateway) MarkDeleted(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return errInjected
	}
	msg, ok := f.messages[id]
	if !ok {
		return store.ErrNotFound
	}
	msg.Deleted = true
	return nil
}

func (f *fakeGateway) AddReader(_ context.Context, id, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return false, errInjected
	}
	set, ok := f.readers[id]
	if !ok {
		set = make(map[int64]struct{})
		f.readers[id] = set
	}
	if _, seen := set[userID]; seen {
		return false, nil
	}
	set[userID] = struct{}{}
	return true, nil
}

func newTestCoordinator(gateway Gateway) (*Coordinator, *Registry, *Router) {
	logger := zerolog.Nop()
	registry := NewRegistry()
	router := NewRouter()
	return NewCoordinator(registry, router, gateway, &logger), registry, router
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("expected no event, got kind %v", ev.Kind)
	default:
	}
}

func coreErrCode(t *testing.T, err error) string {
	t.Helper()

	var coreErr *CoreError
	if !errors.As(err, &coreErr) {
		t.Fatalf("expected CoreError, got %v", err)
	}
	return coreErr.Code
}

func int64Ptr(v int64) *int64 {
	return &v
}
