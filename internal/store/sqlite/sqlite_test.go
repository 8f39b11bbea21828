package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedUsers(t *testing.T, st *SQLiteStore, usernames ...string) []int64 {
	t.Helper()

	ctx := context.Background()
	ids := make([]int64, 0, len(usernames))
	for _, name := range usernames {
		user, err := st.CreateUser(ctx, name, "hash")
		if err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
		ids = append(ids, user.ID)
	}
	return ids
}

func directMessage(sender, receiver int64, content string) *store.Message {
	return &store.Message{
		SenderID:   sender,
		ReceiverID: &receiver,
		Content:    content,
		Type:       store.MessageTypeText,
	}
}

func TestUserLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	byName, err := st.GetUserByUsername(ctx, "alice")
	if err != nil || byName.ID != user.ID {
		t.Fatalf("get by username: %v (%+v)", err, byName)
	}
	byID, err := st.GetUserByID(ctx, user.ID)
	if err != nil || byID.Username != "alice" {
		t.Fatalf("get by id: %v (%+v)", err, byID)
	}

	exists, err := st.UserExists(ctx, user.ID)
	if err != nil || !exists {
		t.Fatalf("user should exist: %v", err)
	}
	exists, err = st.UserExists(ctx, 999)
	if err != nil || exists {
		t.Fatalf("unknown user should not exist: %v", err)
	}

	if _, err := st.GetUserByID(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRoomDeduplicatesAndValidates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, st, "alice", "bob", "carol")

	// Creator listed among participants must not be duplicated.
	room, err := st.CreateRoom(ctx, "general", ids[0], []int64{ids[0], ids[1], ids[2]})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if len(room.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %v", room.Participants)
	}
	if len(room.Admins) != 1 || room.Admins[0] != ids[0] {
		t.Fatalf("creator should be sole admin, got %v", room.Admins)
	}

	if _, err := st.CreateRoom(ctx, "solo", ids[0], []int64{ids[0]}); !errors.Is(err, store.ErrTooFewParticipants) {
		t.Fatalf("expected ErrTooFewParticipants, got %v", err)
	}

	fetched, err := st.GetRoomByID(ctx, room.ID, false)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if fetched.Name != "general" || len(fetched.Participants) != 3 {
		t.Fatalf("unexpected room: %+v", fetched)
	}

	ok, err := st.IsParticipant(ctx, room.ID, ids[1])
	if err != nil || !ok {
		t.Fatalf("bob should be a participant: %v", err)
	}
	ok, err = st.IsParticipant(ctx, room.ID, 999)
	if err != nil || ok {
		t.Fatalf("unknown user should not be a participant: %v", err)
	}

	rooms, err := st.ListRoomsForUser(ctx, ids[1])
	if err != nil || len(rooms) != 1 {
		t.Fatalf("expected one room for bob: %v (%d)", err, len(rooms))
	}
}

func TestMessageLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, st, "alice", "bob")

	msg := directMessage(ids[0], ids[1], "hi")
	if err := st.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}
	if msg.ID == 0 || msg.CreatedAt.IsZero() {
		t.Fatalf("create should populate id and timestamps: %+v", msg)
	}

	updated, err := st.UpdateContent(ctx, msg.ID, "hi there")
	if err != nil {
		t.Fatalf("update content: %v", err)
	}
	if !updated.Edited || updated.Content != "hi there" {
		t.Fatalf("unexpected updated message: %+v", updated)
	}

	if err := st.MarkDeleted(ctx, msg.ID); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}

	// Soft-delete filtering is explicit per query.
	if _, err := st.GetMessage(ctx, msg.ID, false); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted message should be hidden without includeDeleted, got %v", err)
	}
	tombstone, err := st.GetMessage(ctx, msg.ID, true)
	if err != nil {
		t.Fatalf("get with includeDeleted: %v", err)
	}
	if !tombstone.Deleted {
		t.Fatalf("expected deleted flag set: %+v", tombstone)
	}
}

func TestAddReaderIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, st, "alice", "bob")

	msg := directMessage(ids[0], ids[1], "hi")
	if err := st.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	changed, err := st.AddReader(ctx, msg.ID, ids[1])
	if err != nil || !changed {
		t.Fatalf("first add reader should change state: %v", err)
	}
	changed, err = st.AddReader(ctx, msg.ID, ids[1])
	if err != nil || changed {
		t.Fatalf("second add reader should be a no-op: %v", err)
	}

	fetched, err := st.GetMessage(ctx, msg.ID, false)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if len(fetched.ReadBy) != 1 || fetched.ReadBy[0] != ids[1] {
		t.Fatalf("expected single reader, got %v", fetched.ReadBy)
	}
}

func TestListChannelMessagesDirect(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, st, "alice", "bob", "carol")

	// Conversation between alice and bob, plus noise from carol.
	for i, m := range []*store.Message{
		directMessage(ids[0], ids[1], "a->b one"),
		directMessage(ids[1], ids[0], "b->a two"),
		directMessage(ids[0], ids[1], "a->b three"),
		directMessage(ids[0], ids[2], "a->c noise"),
	} {
		if err := st.CreateMessage(ctx, m); err != nil {
			t.Fatalf("create message %d: %v", i, err)
		}
	}

	msgs, err := st.ListChannelMessages(ctx, store.ChannelQuery{
		ViewerID: ids[0],
		PeerID:   &ids[1],
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages in alice/bob channel, got %d", len(msgs))
	}
	// Newest first.
	if msgs[0].Content != "a->b three" || msgs[2].Content != "a->b one" {
		t.Fatalf("unexpected ordering: %q .. %q", msgs[0].Content, msgs[2].Content)
	}

	// Both viewers observe the same conversation.
	mirror, err := st.ListChannelMessages(ctx, store.ChannelQuery{
		ViewerID: ids[1],
		PeerID:   &ids[0],
		Limit:    10,
	})
	if err != nil || len(mirror) != 3 {
		t.Fatalf("mirrored query: %v (%d)", err, len(mirror))
	}
}

func TestListChannelMessagesPaginationAndDeleted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, st, "alice", "bob")

	var all []*store.Message
	for _, content := range []string{"one", "two", "three", "four"} {
		m := directMessage(ids[0], ids[1], content)
		if err := st.CreateMessage(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
		all = append(all, m)
	}
	if err := st.MarkDeleted(ctx, all[1].ID); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}

	page, err := st.ListChannelMessages(ctx, store.ChannelQuery{
		ViewerID: ids[0],
		PeerID:   &ids[1],
		Limit:    2,
	})
	if err != nil || len(page) != 2 {
		t.Fatalf("first page: %v (%d)", err, len(page))
	}
	if page[0].Content != "four" || page[1].Content != "three" {
		t.Fatalf("unexpected first page: %q, %q", page[0].Content, page[1].Content)
	}

	before := page[1].ID
	next, err := st.ListChannelMessages(ctx, store.ChannelQuery{
		ViewerID: ids[0],
		PeerID:   &ids[1],
		BeforeID: &before,
		Limit:    2,
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(next) != 1 || next[0].Content != "one" {
		t.Fatalf("deleted message should be excluded by default: %+v", next)
	}

	withDeleted, err := st.ListChannelMessages(ctx, store.ChannelQuery{
		ViewerID:       ids[0],
		PeerID:         &ids[1],
		BeforeID:       &before,
		Limit:          2,
		IncludeDeleted: true,
	})
	if err != nil || len(withDeleted) != 2 {
		t.Fatalf("includeDeleted page: %v (%d)", err, len(withDeleted))
	}
	if !withDeleted[0].Deleted {
		t.Fatalf("expected tombstone in includeDeleted page: %+v", withDeleted[0])
	}
}

func TestListChannelMessagesRoom(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, st, "alice", "bob")

	room, err := st.CreateRoom(ctx, "general", ids[0], []int64{ids[1]})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	msg := &store.Message{
		SenderID: ids[0],
		RoomID:   &room.ID,
		Content:  "hello room",
		Type:     store.MessageTypeText,
	}
	if err := st.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("create room message: %v", err)
	}
	if err := st.CreateMessage(ctx, directMessage(ids[0], ids[1], "dm noise")); err != nil {
		t.Fatalf("create dm: %v", err)
	}

	msgs, err := st.ListChannelMessages(ctx, store.ChannelQuery{
		ViewerID: ids[1],
		RoomID:   &room.ID,
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("list room messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello room" {
		t.Fatalf("unexpected room messages: %+v", msgs)
	}
}

func TestCountUnread(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, st, "alice", "bob")

	first := directMessage(ids[0], ids[1], "one")
	second := directMessage(ids[0], ids[1], "two")
	for _, m := range []*store.Message{first, second} {
		if err := st.CreateMessage(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	count, err := st.CountUnread(ctx, ids[1])
	if err != nil || count != 2 {
		t.Fatalf("expected 2 unread, got %d (%v)", count, err)
	}

	if _, err := st.AddReader(ctx, first.ID, ids[1]); err != nil {
		t.Fatalf("add reader: %v", err)
	}
	count, err = st.CountUnread(ctx, ids[1])
	if err != nil || count != 1 {
		t.Fatalf("expected 1 unread after read, got %d (%v)", count, err)
	}

	// Sender has nothing unread.
	count, err = st.CountUnread(ctx, ids[0])
	if err != nil || count != 0 {
		t.Fatalf("expected 0 unread for sender, got %d (%v)", count, err)
	}
}

func TestSearchUsersExcludesNonMatches(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedUsers(t, st, "alice", "alicia", "bob")

	users, err := st.SearchUsers(ctx, "ali")
	if err != nil {
		t.Fatalf("search users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(users))
	}
	if users[0].Username != "alice" || users[1].Username != "alicia" {
		t.Fatalf("unexpected ordering: %q, %q", users[0].Username, users[1].Username)
	}

	users, err = st.SearchUsers(ctx, "zzz")
	if err != nil || len(users) != 0 {
		t.Fatalf("expected no matches: %v (%d)", err, len(users))
	}
}

func TestListChannelMessagesSearch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, st, "alice", "bob")

	for _, content := range []string{"meeting at noon", "lunch plans", "meeting moved"} {
		if err := st.CreateMessage(ctx, directMessage(ids[0], ids[1], content)); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	msgs, err := st.ListChannelMessages(ctx, store.ChannelQuery{
		ViewerID: ids[0],
		PeerID:   &ids[1],
		Search:   "meeting",
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("search messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(msgs))
	}
	if msgs[0].Content != "meeting moved" || msgs[1].Content != "meeting at noon" {
		t.Fatalf("unexpected matches: %q, %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestListConversations(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, st, "alice", "bob", "carol")

	room, err := st.CreateRoom(ctx, "general", ids[0], []int64{ids[1], ids[2]})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	// bob -> alice twice (one read), then room activity last.
	first := directMessage(ids[1], ids[0], "hey")
	second := directMessage(ids[1], ids[0], "you there?")
	for _, m := range []*store.Message{first, second} {
		if err := st.CreateMessage(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}
	if _, err := st.AddReader(ctx, first.ID, ids[0]); err != nil {
		t.Fatalf("add reader: %v", err)
	}
	roomMsg := &store.Message{SenderID: ids[2], RoomID: &room.ID, Content: "welcome", Type: store.MessageTypeText}
	if err := st.CreateMessage(ctx, roomMsg); err != nil {
		t.Fatalf("create room message: %v", err)
	}

	conversations, err := st.ListConversations(ctx, ids[0])
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}

	// Newest activity first: the room message was last.
	if conversations[0].RoomID == nil || *conversations[0].RoomID != room.ID {
		t.Fatalf("expected room conversation first: %+v", conversations[0])
	}
	if conversations[0].LastMessage.Content != "welcome" || conversations[0].Unread != 1 {
		t.Fatalf("unexpected room conversation: %+v", conversations[0])
	}

	dm := conversations[1]
	if dm.PeerID == nil || *dm.PeerID != ids[1] {
		t.Fatalf("expected bob as peer: %+v", dm)
	}
	if dm.LastMessage.Content != "you there?" || dm.Unread != 1 {
		t.Fatalf("unexpected dm conversation: %+v", dm)
	}

	// Deleted latest message falls back to the previous one.
	if err := st.MarkDeleted(ctx, second.ID); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}
	conversations, err = st.ListConversations(ctx, ids[0])
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if conversations[1].LastMessage.Content != "hey" || conversations[1].Unread != 0 {
		t.Fatalf("expected fallback to prior message: %+v", conversations[1])
	}
}
