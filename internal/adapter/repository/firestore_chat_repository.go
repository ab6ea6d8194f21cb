package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
)

type firestoreMessage struct {
	ID        string            `firestore:"id"`
	OrderID   string            `firestore:"orderId"`
	Seq       int64             `firestore:"seq"`
	SenderID  *string           `firestore:"senderId"`
	Kind      string            `firestore:"kind"`
	Body      string            `firestore:"body"`
	Metadata  map[string]string `firestore:"metadata,omitempty"`
	CreatedAt time.Time         `firestore:"createdAt"`
}

type firestoreCursor struct {
	OrderID   string    `firestore:"orderId"`
	UserID    string    `firestore:"userId"`
	MessageID string    `firestore:"messageId"`
	Seq       int64     `firestore:"seq"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Messages and cursors live under orders/{orderId}, so a transaction that
// touches the order also covers its log.
type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) messages(orderID string) *firestore.CollectionRef {
	return r.client.Collection(ordersCollection).Doc(orderID).Collection(messagesCollection)
}

func (r *firestoreChatRepository) cursors(orderID string) *firestore.CollectionRef {
	return r.client.Collection(ordersCollection).Doc(orderID).Collection(readCursorsCollection)
}

func (r *firestoreChatRepository) AppendMessage(ctx context.Context, message *entity.ChatMessage) error {
	err := createDoc(ctx, r.messages(message.OrderID).Doc(message.ID), firestoreMessage{
		ID:        message.ID,
		OrderID:   message.OrderID,
		Seq:       message.Seq,
		SenderID:  message.SenderID,
		Kind:      string(message.Kind),
		Body:      message.Body,
		Metadata:  message.Metadata,
		CreatedAt: message.CreatedAt,
	})
	if err != nil {
		return errors.Internal("Failed to append message", err)
	}
	return nil
}

func (r *firestoreChatRepository) GetMessage(ctx context.Context, orderID, messageID string) (*entity.ChatMessage, error) {
	doc, err := getDoc(ctx, r.messages(orderID).Doc(messageID))
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}
	return messageFromDoc(doc)
}

func (r *firestoreChatRepository) ListMessages(ctx context.Context, orderID string, query repository.MessageQuery) ([]*entity.ChatMessage, error) {
	q := r.messages(orderID).Where("seq", ">", query.AfterSeq)
	if query.BeforeSeq > 0 {
		q = q.Where("seq", "<", query.BeforeSeq)
	}
	if query.FromEnd {
		q = q.OrderBy("seq", firestore.Desc)
	} else {
		q = q.OrderBy("seq", firestore.Asc)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	iter := queryDocs(ctx, q)
	defer iter.Stop()

	messages := []*entity.ChatMessage{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate messages", err)
		}
		m, err := messageFromDoc(doc)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if query.FromEnd {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

func messageFromDoc(doc *firestore.DocumentSnapshot) (*entity.ChatMessage, error) {
	var stored firestoreMessage
	if err := doc.DataTo(&stored); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &entity.ChatMessage{
		ID:        stored.ID,
		OrderID:   stored.OrderID,
		Seq:       stored.Seq,
		SenderID:  stored.SenderID,
		Kind:      entity.MessageKind(stored.Kind),
		Body:      stored.Body,
		Metadata:  stored.Metadata,
		CreatedAt: stored.CreatedAt,
	}, nil
}

func (r *firestoreChatRepository) GetCursor(ctx context.Context, orderID, userID string) (*entity.ReadCursor, error) {
	doc, err := getDoc(ctx, r.cursors(orderID).Doc(userID))
	if err != nil {
		if isNotFound(err) {
			return &entity.ReadCursor{OrderID: orderID, UserID: userID}, nil
		}
		return nil, errors.Internal("Failed to get read cursor", err)
	}
	return cursorFromDoc(doc)
}

func (r *firestoreChatRepository) SaveCursor(ctx context.Context, cursor *entity.ReadCursor) error {
	err := setDoc(ctx, r.cursors(cursor.OrderID).Doc(cursor.UserID), firestoreCursor{
		OrderID:   cursor.OrderID,
		UserID:    cursor.UserID,
		MessageID: cursor.MessageID,
		Seq:       cursor.Seq,
		UpdatedAt: cursor.UpdatedAt,
	})
	if err != nil {
		return errors.Internal("Failed to save read cursor", err)
	}
	return nil
}

func (r *firestoreChatRepository) ListCursors(ctx context.Context, orderID string) ([]*entity.ReadCursor, error) {
	iter := queryDocs(ctx, r.cursors(orderID).Query)
	defer iter.Stop()

	var cursors []*entity.ReadCursor
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate read cursors", err)
		}
		c, err := cursorFromDoc(doc)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, nil
}

func cursorFromDoc(doc *firestore.DocumentSnapshot) (*entity.ReadCursor, error) {
	var stored firestoreCursor
	if err := doc.DataTo(&stored); err != nil {
		return nil, errors.Internal("Failed to parse read cursor", err)
	}
	return &entity.ReadCursor{
		OrderID:   stored.OrderID,
		UserID:    stored.UserID,
		MessageID: stored.MessageID,
		Seq:       stored.Seq,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}
