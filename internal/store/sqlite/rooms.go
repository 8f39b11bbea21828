package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

// CreateRoom creates a group room with the creator as admin and participant.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string, creatorID int64, participants []int64) (*store.Room, error) {
	members := map[int64]struct{}{creatorID: {}}
	for _, p := range participants {
		members[p] = struct{}{}
	}
	if len(members) < 2 {
		return nil, store.ErrTooFewParticipants
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `INSERT INTO rooms (name, is_group, created_by) VALUES (?, 1, ?)`, name, creatorID)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	for member := range members {
		if _, err := tx.ExecContext(ctx, `INSERT INTO room_participants (room_id, user_id) VALUES (?, ?)`, roomID, member); err != nil {
			return nil, fmt.Errorf("insert participant: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO room_admins (room_id, user_id) VALUES (?, ?)`, roomID, creatorID); err != nil {
		return nil, fmt.Errorf("insert admin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetRoomByID(ctx, roomID, false)
}

// GetRoomByID retrieves a room with its participant and admin sets.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64, includeDeleted bool) (*store.Room, error) {
	query := `
		SELECT id, name, is_group, created_by, deleted, created_at, updated_at
		FROM rooms
		WHERE id = ?
	`
	var r store.Room
	err := s.db.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.Name, &r.IsGroup, &r.CreatedBy, &r.Deleted, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select room: %w", err)
	}
	if r.Deleted && !includeDeleted {
		return nil, store.ErrNotFound
	}

	r.Participants, err = s.roomUserIDs(ctx, `SELECT user_id FROM room_participants WHERE room_id = ? ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	r.Admins, err = s.roomUserIDs(ctx, `SELECT user_id FROM room_admins WHERE room_id = ? ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("load admins: %w", err)
	}

	return &r, nil
}

// IsParticipant reports whether the user is a current room participant.
func (s *SQLiteStore) IsParticipant(ctx context.Context, roomID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM room_participants WHERE room_id = ? AND user_id = ?`, roomID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return true, nil
}

// ListRoomsForUser lists non-deleted rooms the user participates in.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID int64) ([]*store.Room, error) {
	query := `
		SELECT r.id
		FROM rooms r
		JOIN room_participants p ON p.room_id = r.id
		WHERE p.user_id = ? AND r.deleted = 0
		ORDER BY r.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan room id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	rooms := make([]*store.Room, 0, len(ids))
	for _, id := range ids {
		room, err := s.GetRoomByID(ctx, id, false)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *SQLiteStore) roomUserIDs(ctx context.Context, query string, roomID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, roomID)
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
