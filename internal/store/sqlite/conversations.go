package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

// ListConversations builds the user's chat overview: the latest non-deleted
// message per direct peer and per joined room, with per-conversation unread
// counts, newest activity first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID int64) ([]*store.Conversation, error) {
	direct, err := s.directConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	rooms, err := s.roomConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	conversations := append(direct, rooms...)
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.ID > conversations[j].LastMessage.ID
	})
	return conversations, nil
}

func (s *SQLiteStore) directConversations(ctx context.Context, userID int64) ([]*store.Conversation, error) {
	query := `
		SELECT MAX(id)
		FROM messages
		WHERE deleted = 0 AND room_id IS NULL AND (sender_id = ? OR receiver_id = ?)
		GROUP BY CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END
	`
	ids, err := s.collectIDs(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("latest direct messages: %w", err)
	}

	conversations := make([]*store.Conversation, 0, len(ids))
	for _, id := range ids {
		msg, err := s.GetMessage(ctx, id, false)
		if err != nil {
			return nil, fmt.Errorf("load conversation message: %w", err)
		}
		peer := msg.SenderID
		if peer == userID {
			peer = *msg.ReceiverID
		}

		unread, err := s.countDirectUnread(ctx, userID, peer)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, &store.Conversation{
			PeerID:      &peer,
			LastMessage: msg,
			Unread:      unread,
		})
	}
	return conversations, nil
}

func (s *SQLiteStore) roomConversations(ctx context.Context, userID int64) ([]*store.Conversation, error) {
	query := `
		SELECT MAX(m.id)
		FROM messages m
		JOIN room_participants rp ON rp.room_id = m.room_id
		JOIN rooms r ON r.id = m.room_id
		WHERE rp.user_id = ? AND m.deleted = 0 AND r.deleted = 0
		GROUP BY m.room_id
	`
	ids, err := s.collectIDs(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("latest room messages: %w", err)
	}

	conversations := make([]*store.Conversation, 0, len(ids))
	for _, id := range ids {
		msg, err := s.GetMessage(ctx, id, false)
		if err != nil {
			return nil, fmt.Errorf("load conversation message: %w", err)
		}

		unread, err := s.countRoomUnread(ctx, *msg.RoomID, userID)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, &store.Conversation{
			RoomID:      msg.RoomID,
			LastMessage: msg,
			Unread:      unread,
		})
	}
	return conversations, nil
}

func (s *SQLiteStore) countDirectUnread(ctx context.Context, userID, peerID int64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.room_id IS NULL AND m.receiver_id = ? AND m.sender_id = ? AND m.deleted = 0
		AND NOT EXISTS (
			SELECT 1 FROM message_reads r
			WHERE r.message_id = m.id AND r.user_id = ?
		)
	`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, userID, peerID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count direct unread: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) countRoomUnread(ctx context.Context, roomID, userID int64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.room_id = ? AND m.sender_id <> ? AND m.deleted = 0
		AND NOT EXISTS (
			SELECT 1 FROM message_reads r
			WHERE r.message_id = m.id AND r.user_id = ?
		)
	`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, roomID, userID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count room unread: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) collectIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
