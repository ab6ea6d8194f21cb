package entity

import (
	"time"

	"gamescrow/pkg/errors"
)

type MessageKind string

const (
	MessageKindText   MessageKind = "TEXT"
	MessageKindSystem MessageKind = "SYSTEM"
	MessageKindImage  MessageKind = "IMAGE"
	MessageKindVideo  MessageKind = "VIDEO"
)

// MessageStatus is derived per viewer, never stored.
type MessageStatus string

const (
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// ChatMessage is one append-only entry in an order's log. SenderID is nil
// for system messages written by order transitions.
type ChatMessage struct {
	ID        string            `json:"id"`
	OrderID   string            `json:"orderId"`
	Seq       int64             `json:"seq"`
	SenderID  *string           `json:"senderId"`
	Kind      MessageKind       `json:"kind"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`

	Status MessageStatus `json:"status,omitempty"`
}

func (m *ChatMessage) IsSystem() bool {
	return m.SenderID == nil
}

func (m *ChatMessage) SentBy(userID string) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

func (m *ChatMessage) Clone() *ChatMessage {
	c := *m
	if m.SenderID != nil {
		s := *m.SenderID
		c.SenderID = &s
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// ClientMessageKind reports whether clients may author messages of kind k.
func ClientMessageKind(k MessageKind) bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindVideo:
		return true
	}
	return false
}

// ReadCursor points at the last message a user acknowledged in an order.
type ReadCursor struct {
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	MessageID string    `json:"messageId"`
	Seq       int64     `json:"seq"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Advance moves the cursor to msg. Cursors only move forward; an equal or
// older message yields StaleReadCursor and leaves the cursor untouched.
func (c *ReadCursor) Advance(msg *ChatMessage, now time.Time) error {
	if c.MessageID != "" && msg.Seq <= c.Seq {
		return errors.StaleReadCursor()
	}
	c.MessageID = msg.ID
	c.Seq = msg.Seq
	c.UpdatedAt = now
	return nil
}
