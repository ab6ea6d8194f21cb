package repository

import (
	"context"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
)

type memoryChatRepository struct {
	store *MemoryStore
}

func NewMemoryChatRepository(store *MemoryStore) repository.ChatRepository {
	return &memoryChatRepository{store: store}
}

func (r *memoryChatRepository) AppendMessage(ctx context.Context, message *entity.ChatMessage) error {
	return r.store.with(ctx, func(st *memoryState) error {
		log := st.messages[message.OrderID]
		if n := len(log); n > 0 && log[n-1].Seq >= message.Seq {
			return errors.InvariantViolation("message sequence must increase", nil)
		}
		st.messages[message.OrderID] = append(log, message.Clone())
		return nil
	})
}

func (r *memoryChatRepository) GetMessage(ctx context.Context, orderID, messageID string) (*entity.ChatMessage, error) {
	var message *entity.ChatMessage
	err := r.store.with(ctx, func(st *memoryState) error {
		for _, m := range st.messages[orderID] {
			if m.ID == messageID {
				message = m.Clone()
				return nil
			}
		}
		return errors.NotFound("Message", nil)
	})
	return message, err
}

func (r *memoryChatRepository) ListMessages(ctx context.Context, orderID string, query repository.MessageQuery) ([]*entity.ChatMessage, error) {
	var messages []*entity.ChatMessage
	err := r.store.with(ctx, func(st *memoryState) error {
		var window []*entity.ChatMessage
		for _, m := range st.messages[orderID] {
			if m.Seq <= query.AfterSeq {
				continue
			}
			if query.BeforeSeq > 0 && m.Seq >= query.BeforeSeq {
				break
			}
			window = append(window, m)
		}

		if query.Limit > 0 && len(window) > query.Limit {
			if query.FromEnd {
				window = window[len(window)-query.Limit:]
			} else {
				window = window[:query.Limit]
			}
		}

		messages = make([]*entity.ChatMessage, 0, len(window))
		for _, m := range window {
			messages = append(messages, m.Clone())
		}
		return nil
	})
	return messages, err
}

func (r *memoryChatRepository) GetCursor(ctx context.Context, orderID, userID string) (*entity.ReadCursor, error) {
	var cursor *entity.ReadCursor
	err := r.store.with(ctx, func(st *memoryState) error {
		if stored, ok := st.cursors[orderID+"/"+userID]; ok {
			c := *stored
			cursor = &c
			return nil
		}
		cursor = &entity.ReadCursor{OrderID: orderID, UserID: userID}
		return nil
	})
	return cursor, err
}

func (r *memoryChatRepository) SaveCursor(ctx context.Context, cursor *entity.ReadCursor) error {
	return r.store.with(ctx, func(st *memoryState) error {
		c := *cursor
		st.cursors[cursor.OrderID+"/"+cursor.UserID] = &c
		return nil
	})
}

func (r *memoryChatRepository) ListCursors(ctx context.Context, orderID string) ([]*entity.ReadCursor, error) {
	var cursors []*entity.ReadCursor
	err := r.store.with(ctx, func(st *memoryState) error {
		for _, c := range st.cursors {
			if c.OrderID == orderID {
				cc := *c
				cursors = append(cursors, &cc)
			}
		}
		return nil
	})
	return cursors, err
}
