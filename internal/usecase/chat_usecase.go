package usecase

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/internal/domain/service"
	"gamescrow/internal/infrastructure/ratelimit"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/logger"
	"gamescrow/pkg/metrics"
	"gamescrow/pkg/syncutil"
)

const (
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 100
	MaxMessageBodyLength   = 4000
)

type ChatUseCase struct {
	tx          repository.Transactor
	orderRepo   repository.OrderRepository
	chatRepo    repository.ChatRepository
	publisher   service.EventPublisher
	storage     service.AttachmentStorage
	rateLimiter *ratelimit.RateLimiter
	locks       *syncutil.KeyLock
	clock       Clock

	attachmentExpiry time.Duration
}

func NewChatUseCase(
	tx repository.Transactor,
	orderRepo repository.OrderRepository,
	chatRepo repository.ChatRepository,
	publisher service.EventPublisher,
	storage service.AttachmentStorage,
	rateLimiter *ratelimit.RateLimiter,
	locks *syncutil.KeyLock,
	clock Clock,
	attachmentExpiry time.Duration,
) *ChatUseCase {
	if clock == nil {
		clock = SystemClock
	}
	if locks == nil {
		locks = syncutil.NewKeyLock()
	}
	return &ChatUseCase{
		tx:               tx,
		orderRepo:        orderRepo,
		chatRepo:         chatRepo,
		publisher:        publisher,
		storage:          storage,
		rateLimiter:      rateLimiter,
		locks:            locks,
		clock:            clock,
		attachmentExpiry: attachmentExpiry,
	}
}

type PostMessageInput struct {
	Kind     entity.MessageKind
	Body     string
	Metadata map[string]string
}

// PostMessage appends a participant's message to the order's log. Admins
// may post too, for example while reviewing a dispute.
func (uc *ChatUseCase) PostMessage(ctx context.Context, orderID string, sender entity.Actor, input PostMessageInput) (*entity.ChatMessage, error) {
	if input.Kind == "" {
		input.Kind = entity.MessageKindText
	}
	if !entity.ClientMessageKind(input.Kind) {
		return nil, errors.Forbidden("Clients cannot post "+string(input.Kind)+" messages", nil)
	}
	input.Body = strings.TrimSpace(input.Body)
	if input.Body == "" {
		return nil, errors.Validation("Message body is required")
	}
	if len(input.Body) > MaxMessageBodyLength {
		return nil, errors.Validation(fmt.Sprintf("Message body must be at most %d characters", MaxMessageBodyLength))
	}

	if uc.rateLimiter != nil {
		if ok, wait := uc.rateLimiter.Allow(sender.UserID, ratelimit.ActionSendMessage); !ok {
			return nil, errors.TooManyRequests("You are sending messages too quickly", wait)
		}
	}

	unlock, err := uc.locks.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		order   *entity.Order
		message *entity.ChatMessage
	)
	err = uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := uc.orderRepo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !sender.IsAdmin() && !current.IsParticipant(sender.UserID) {
			return errors.Forbidden("You are not a participant of this order", nil)
		}

		senderID := sender.UserID
		message = &entity.ChatMessage{
			ID:        uuid.New().String(),
			OrderID:   current.ID,
			Seq:       current.NextMessageSeq(),
			SenderID:  &senderID,
			Kind:      input.Kind,
			Body:      input.Body,
			Metadata:  input.Metadata,
			CreatedAt: uc.clock.Now(),
		}
		if err := uc.orderRepo.Update(ctx, current); err != nil {
			return err
		}
		if err := uc.chatRepo.AppendMessage(ctx, message); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ChatMessagesTotal.WithLabelValues(string(message.Kind)).Inc()
	message.Status = entity.MessageStatusDelivered

	if uc.publisher != nil {
		uc.publisher.Publish(entity.OrderTopic(order.ID), entity.EventMessageNew, entity.MessageNew{
			OrderID: order.ID,
			Side:    order.SideOf(sender.UserID),
			Message: message,
		})
		for _, recipient := range []string{order.BuyerID, order.SellerID} {
			if recipient == sender.UserID {
				continue
			}
			uc.publisher.Publish(entity.UserTopic(recipient), entity.EventMessageNew, entity.MessageNew{
				OrderID: order.ID,
				Side:    order.SideOf(recipient),
				Message: message,
			})
		}
	}
	return message, nil
}

// MarkRead moves the reader's cursor to messageID. Cursors never move back:
// marking an older or the same message again is a no-op reported as
// updated=false.
func (uc *ChatUseCase) MarkRead(ctx context.Context, orderID string, reader entity.Actor, messageID string) (cursor *entity.ReadCursor, updated bool, err error) {
	if messageID == "" {
		return nil, false, errors.Validation("lastReadMessageId is required")
	}

	err = uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := uc.orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.IsParticipant(reader.UserID) {
			return errors.Forbidden("Only the buyer or seller can mark messages read", nil)
		}
		msg, err := uc.chatRepo.GetMessage(ctx, orderID, messageID)
		if err != nil {
			return err
		}
		current, err := uc.chatRepo.GetCursor(ctx, orderID, reader.UserID)
		if err != nil {
			return err
		}

		if err := current.Advance(msg, uc.clock.Now()); err != nil {
			if errors.Is(err, errors.CodeStaleReadCursor) {
				cursor, updated = current, false
				return nil
			}
			return err
		}
		if err := uc.chatRepo.SaveCursor(ctx, current); err != nil {
			return err
		}
		cursor, updated = current, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if updated && uc.publisher != nil {
		uc.publisher.Publish(entity.OrderTopic(orderID), entity.EventMessageRead, entity.MessageRead{
			OrderID:   orderID,
			UserID:    reader.UserID,
			MessageID: cursor.MessageID,
			Seq:       cursor.Seq,
		})
	}
	return cursor, updated, nil
}

type ListMessagesInput struct {
	Cursor    string // message id to page from
	Direction string // "before" or "after"
	Limit     int
}

type MessagePage struct {
	Messages []*entity.ChatMessage `json:"messages"`
	HasMore  bool                  `json:"hasMore"`
}

// ListMessages pages through the log in ascending seq order. Without a
// cursor it returns the latest page. The viewer's own messages carry a
// derived status: read once every other party's cursor has reached them.
func (uc *ChatUseCase) ListMessages(ctx context.Context, orderID string, viewer entity.Actor, input ListMessagesInput) (*MessagePage, error) {
	if input.Limit <= 0 {
		input.Limit = DefaultMessagePageSize
	}
	if input.Limit > MaxMessagePageSize {
		input.Limit = MaxMessagePageSize
	}

	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && !order.IsParticipant(viewer.UserID) {
		return nil, errors.Forbidden("You are not a participant of this order", nil)
	}

	query := repository.MessageQuery{Limit: input.Limit + 1}
	switch {
	case input.Cursor == "":
		query.FromEnd = true
	case input.Direction == "after":
		anchor, err := uc.chatRepo.GetMessage(ctx, orderID, input.Cursor)
		if err != nil {
			return nil, err
		}
		query.AfterSeq = anchor.Seq
	case input.Direction == "before" || input.Direction == "":
		anchor, err := uc.chatRepo.GetMessage(ctx, orderID, input.Cursor)
		if err != nil {
			return nil, err
		}
		query.BeforeSeq = anchor.Seq
		query.FromEnd = true
	default:
		return nil, errors.Validation("dir must be before or after")
	}

	messages, err := uc.chatRepo.ListMessages(ctx, orderID, query)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) > input.Limit
	if hasMore {
		if query.FromEnd {
			messages = messages[1:]
		} else {
			messages = messages[:input.Limit]
		}
	}

	cursors, err := uc.chatRepo.ListCursors(ctx, orderID)
	if err != nil {
		return nil, err
	}
	readSeq := make(map[string]int64, len(cursors))
	for _, c := range cursors {
		readSeq[c.UserID] = c.Seq
	}

	for _, m := range messages {
		if !m.SentBy(viewer.UserID) {
			continue
		}
		m.Status = messageStatus(order, m, readSeq)
	}

	return &MessagePage{Messages: messages, HasMore: hasMore}, nil
}

// messageStatus is read when every party other than the sender has a
// cursor at or past the message.
func messageStatus(order *entity.Order, m *entity.ChatMessage, readSeq map[string]int64) entity.MessageStatus {
	for _, party := range []string{order.BuyerID, order.SellerID} {
		if m.SentBy(party) {
			continue
		}
		if readSeq[party] < m.Seq {
			return entity.MessageStatusDelivered
		}
	}
	return entity.MessageStatusRead
}

var attachmentExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// CreateAttachmentUpload issues a presigned PUT URL for trade evidence. The
// client uploads the file, then posts an IMAGE or VIDEO message whose
// metadata carries the returned object name.
func (uc *ChatUseCase) CreateAttachmentUpload(ctx context.Context, orderID string, actor entity.Actor, contentType string) (*service.UploadTarget, error) {
	if uc.storage == nil {
		return nil, errors.UpstreamUnavailable("Attachment storage is not configured", nil)
	}
	ext, ok := attachmentExtensions[contentType]
	if !ok {
		return nil, errors.Validation("Unsupported attachment content type: " + contentType)
	}

	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.IsParticipant(actor.UserID) {
		return nil, errors.Forbidden("You are not a participant of this order", nil)
	}

	objectName := path.Join("orders", orderID, "attachments", uuid.New().String()+ext)
	url, err := uc.storage.GenerateSignedUploadURL(ctx, objectName, contentType, uc.attachmentExpiry)
	if err != nil {
		logger.Error("Failed to sign attachment upload for order %s: %v", orderID, err)
		return nil, errors.UpstreamUnavailable("Could not create upload URL", err)
	}

	return &service.UploadTarget{
		ObjectName:  objectName,
		UploadURL:   url,
		ContentType: contentType,
		ExpiresAt:   uc.clock.Now().Add(uc.attachmentExpiry),
	}, nil
}
