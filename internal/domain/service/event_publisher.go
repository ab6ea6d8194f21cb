package service

// EventPublisher delivers notification hints to realtime subscribers.
// Publish must not block and never fails the caller's operation.
type EventPublisher interface {
	Publish(topic, event string, payload interface{})
}
