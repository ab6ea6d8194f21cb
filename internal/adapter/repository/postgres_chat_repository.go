package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
)

type postgresChatRepository struct {
	store *PostgresStore
}

func NewPostgresChatRepository(store *PostgresStore) repository.ChatRepository {
	return &postgresChatRepository{store: store}
}

func (r *postgresChatRepository) AppendMessage(ctx context.Context, message *entity.ChatMessage) error {
	metadata, err := json.Marshal(message.Metadata)
	if err != nil {
		return errors.Internal("Failed to encode message metadata", err)
	}
	if message.Metadata == nil {
		metadata = []byte("{}")
	}

	var senderID sql.NullString
	if message.SenderID != nil {
		senderID = sql.NullString{String: *message.SenderID, Valid: true}
	}

	_, err = r.store.q(ctx).ExecContext(ctx, `
		INSERT INTO chat_messages (id, order_id, seq, sender_id, kind, body, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		message.ID, message.OrderID, message.Seq, senderID, string(message.Kind), message.Body, metadata, message.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "chat_messages_order_seq") {
			return errors.InvariantViolation("message sequence must increase", err)
		}
		return errors.Internal("Failed to append message", err)
	}
	return nil
}

func (r *postgresChatRepository) GetMessage(ctx context.Context, orderID, messageID string) (*entity.ChatMessage, error) {
	row := r.store.q(ctx).QueryRowContext(ctx, `
		SELECT id, order_id, seq, sender_id, kind, body, metadata, created_at
		FROM chat_messages WHERE order_id = $1 AND id = $2`, orderID, messageID)
	m, err := scanMessage(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("Message", err)
	}
	if err != nil {
		return nil, errors.Internal("Failed to read message", err)
	}
	return m, nil
}

func (r *postgresChatRepository) ListMessages(ctx context.Context, orderID string, query repository.MessageQuery) ([]*entity.ChatMessage, error) {
	args := []interface{}{orderID, query.AfterSeq}
	sqlText := `SELECT id, order_id, seq, sender_id, kind, body, metadata, created_at
		FROM chat_messages WHERE order_id = $1 AND seq > $2`
	if query.BeforeSeq > 0 {
		args = append(args, query.BeforeSeq)
		sqlText += fmt.Sprintf(" AND seq < $%d", len(args))
	}
	if query.FromEnd {
		sqlText += " ORDER BY seq DESC"
	} else {
		sqlText += " ORDER BY seq ASC"
	}
	if query.Limit > 0 {
		args = append(args, query.Limit)
		sqlText += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.store.q(ctx).QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, errors.Internal("Failed to list messages", err)
	}
	defer rows.Close()

	messages := []*entity.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Internal("Failed to read message", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate messages", err)
	}

	if query.FromEnd {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

func scanMessage(row rowScanner) (*entity.ChatMessage, error) {
	var m entity.ChatMessage
	var senderID sql.NullString
	var kind string
	var metadata []byte
	if err := row.Scan(&m.ID, &m.OrderID, &m.Seq, &senderID, &kind, &m.Body, &metadata, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Kind = entity.MessageKind(kind)
	if senderID.Valid {
		s := senderID.String
		m.SenderID = &s
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return nil, err
		}
		if len(m.Metadata) == 0 {
			m.Metadata = nil
		}
	}
	return &m, nil
}

func (r *postgresChatRepository) GetCursor(ctx context.Context, orderID, userID string) (*entity.ReadCursor, error) {
	c := entity.ReadCursor{OrderID: orderID, UserID: userID}
	err := r.store.q(ctx).QueryRowContext(ctx,
		`SELECT message_id, seq, updated_at FROM read_cursors WHERE order_id = $1 AND user_id = $2`,
		orderID, userID,
	).Scan(&c.MessageID, &c.Seq, &c.UpdatedAt)
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Internal("Failed to read cursor", err)
	}
	return &c, nil
}

// SaveCursor never moves a stored cursor backwards, even when two
// markRead calls race past the usecase check.
func (r *postgresChatRepository) SaveCursor(ctx context.Context, cursor *entity.ReadCursor) error {
	_, err := r.store.q(ctx).ExecContext(ctx, `
		INSERT INTO read_cursors (order_id, user_id, message_id, seq, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, user_id) DO UPDATE
		SET message_id = EXCLUDED.message_id, seq = EXCLUDED.seq, updated_at = EXCLUDED.updated_at
		WHERE read_cursors.seq < EXCLUDED.seq`,
		cursor.OrderID, cursor.UserID, cursor.MessageID, cursor.Seq, cursor.UpdatedAt)
	if err != nil {
		return errors.Internal("Failed to save cursor", err)
	}
	return nil
}

func (r *postgresChatRepository) ListCursors(ctx context.Context, orderID string) ([]*entity.ReadCursor, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx,
		`SELECT order_id, user_id, message_id, seq, updated_at FROM read_cursors WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, errors.Internal("Failed to list cursors", err)
	}
	defer rows.Close()

	var cursors []*entity.ReadCursor
	for rows.Next() {
		var c entity.ReadCursor
		if err := rows.Scan(&c.OrderID, &c.UserID, &c.MessageID, &c.Seq, &c.UpdatedAt); err != nil {
			return nil, errors.Internal("Failed to read cursor", err)
		}
		cursors = append(cursors, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate cursors", err)
	}
	return cursors, nil
}
