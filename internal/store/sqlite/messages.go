package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

const messageColumns = `id, sender_id, receiver_id, room_id, content, file_url, type, edited, deleted, created_at, updated_at`

// CreateMessage persists a new message, filling its ID and timestamps.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (sender_id, receiver_id, room_id, content, file_url, type)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.SenderID, msg.ReceiverID, msg.RoomID, msg.Content, msg.FileURL, string(msg.Type))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	saved, err := s.GetMessage(ctx, id, true)
	if err != nil {
		return err
	}
	*msg = *saved
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64, includeDeleted bool) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	msg, err := s.scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if msg.Deleted && !includeDeleted {
		return nil, store.ErrNotFound
	}

	msg.ReadBy, err = s.loadReaders(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("load readers: %w", err)
	}
	return msg, nil
}

// UpdateContent replaces the message content and marks it edited.
func (s *SQLiteStore) UpdateContent(ctx context.Context, id int64, content string) (*store.Message, error) {
	query := `
		UPDATE messages
		SET content = ?, edited = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, content, id)
	if err != nil {
		return nil, fmt.Errorf("update message content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetMessage(ctx, id, true)
}

// MarkDeleted sets the soft-delete flag.
func (s *SQLiteStore) MarkDeleted(ctx context.Context, id int64) error {
	query := `
		UPDATE messages
		SET deleted = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark message deleted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddReader records that a user has read the message. Reports whether the
// reader set changed.
func (s *SQLiteStore) AddReader(ctx context.Context, id, userID int64) (bool, error) {
	query := `INSERT OR IGNORE INTO message_reads (message_id, user_id) VALUES (?, ?)`
	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("insert reader: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListChannelMessages retrieves messages from one conversation, newest first.
func (s *SQLiteStore) ListChannelMessages(ctx context.Context, q store.ChannelQuery) ([]*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE `
	var args []any

	switch {
	case q.PeerID != nil:
		query += `((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))`
		args = append(args, q.ViewerID, *q.PeerID, *q.PeerID, q.ViewerID)
	case q.RoomID != nil:
		query += `room_id = ?`
		args = append(args, *q.RoomID)
	default:
		return nil, fmt.Errorf("channel query: %w", store.ErrNotFound)
	}

	if !q.IncludeDeleted {
		query += ` AND deleted = 0`
	}
	if q.Search != "" {
		query += ` AND content LIKE ?`
		args = append(args, "%"+q.Search+"%")
	}
	if q.BeforeID != nil {
		query += ` AND id < ?`
		args = append(args, *q.BeforeID)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := s.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for _, msg := range messages {
		msg.ReadBy, err = s.loadReaders(ctx, msg.ID)
		if err != nil {
			return nil, fmt.Errorf("load readers: %w", err)
		}
	}
	return messages, nil
}

// CountUnread counts non-deleted direct messages addressed to the user that
// the user has not read.
func (s *SQLiteStore) CountUnread(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.receiver_id = ? AND m.deleted = 0
		AND NOT EXISTS (
			SELECT 1 FROM message_reads r
			WHERE r.message_id = m.id AND r.user_id = ?
		)
	`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, userID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg      store.Message
		receiver sql.NullInt64
		room     sql.NullInt64
		msgType  string
	)
	err := row.Scan(&msg.ID, &msg.SenderID, &receiver, &room, &msg.Content, &msg.FileURL,
		&msgType, &msg.Edited, &msg.Deleted, &msg.CreatedAt, &msg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if receiver.Valid {
		msg.ReceiverID = &receiver.Int64
	}
	if room.Valid {
		msg.RoomID = &room.Int64
	}
	msg.Type = store.MessageType(msgType)
	return &msg, nil
}

func (s *SQLiteStore) loadReaders(ctx context.Context, messageID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM message_reads WHERE message_id = ? ORDER BY user_id`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readers []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		readers = append(readers, id)
	}
	return readers, rows.Err()
}
