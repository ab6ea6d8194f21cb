package repository

import (
	"context"

	"gamescrow/internal/domain/entity"
)

// MessageQuery selects a window of an order's log. Results are always in
// ascending seq order.
type MessageQuery struct {
	AfterSeq  int64 // only seq > AfterSeq
	BeforeSeq int64 // only seq < BeforeSeq, 0 means unbounded
	Limit     int
	FromEnd   bool // take the newest Limit matches instead of the oldest
}

type ChatRepository interface {
	AppendMessage(ctx context.Context, message *entity.ChatMessage) error
	GetMessage(ctx context.Context, orderID, messageID string) (*entity.ChatMessage, error)
	ListMessages(ctx context.Context, orderID string, query MessageQuery) ([]*entity.ChatMessage, error)

	// GetCursor returns an empty cursor when the user has not read anything yet.
	GetCursor(ctx context.Context, orderID, userID string) (*entity.ReadCursor, error)
	SaveCursor(ctx context.Context, cursor *entity.ReadCursor) error
	ListCursors(ctx context.Context, orderID string) ([]*entity.ReadCursor, error)
}
