package entity

import "strings"

// Event names delivered on realtime topics.
const (
	EventReady       = "ready"
	EventPing        = "ping"
	EventOrderUpdate = "order.update"
	EventMessageNew  = "order.message.new"
	EventMessageRead = "order.message.read"
)

const (
	TopicKindOrder = "order"
	TopicKindUser  = "user"
)

func OrderTopic(orderID string) string {
	return TopicKindOrder + ":" + orderID
}

func UserTopic(userID string) string {
	return TopicKindUser + ":" + userID
}

// ParseTopic splits "order:<id>" or "user:<id>".
func ParseTopic(topic string) (kind, id string, ok bool) {
	kind, id, found := strings.Cut(topic, ":")
	if !found || id == "" {
		return "", "", false
	}
	if kind != TopicKindOrder && kind != TopicKindUser {
		return "", "", false
	}
	return kind, id, true
}

// OrderUpdate is the payload of order.update.
type OrderUpdate struct {
	Action  string       `json:"action"`
	Side    Side         `json:"side,omitempty"`
	Order   *Order       `json:"order"`
	Message *ChatMessage `json:"message,omitempty"`
}

// MessageNew is the payload of order.message.new.
type MessageNew struct {
	OrderID string       `json:"orderId"`
	Side    Side         `json:"side,omitempty"`
	Message *ChatMessage `json:"message"`
}

// MessageRead is the payload of order.message.read.
type MessageRead struct {
	OrderID   string `json:"orderId"`
	UserID    string `json:"userId"`
	MessageID string `json:"messageId"`
	Seq       int64  `json:"seq"`
}
