package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gamescrow/internal/domain/entity"
)

// WriteSSE writes ev as one text/event-stream frame.
func WriteSSE(w io.Writer, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, body)
	return err
}

// StreamSSE writes a ready frame, then the subscription's events with a
// ping every heartbeat, until ctx ends or the subscription is closed.
func StreamSSE(ctx context.Context, w http.ResponseWriter, sub *Subscription, heartbeat time.Duration) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported by response writer")
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := WriteSSE(w, ControlEvent(entity.EventReady, sub.Topic())); err != nil {
		return err
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case ev := <-sub.Events():
			if err := WriteSSE(w, ev); err != nil {
				return err
			}
			flusher.Flush()
		case <-ticker.C:
			if err := WriteSSE(w, ControlEvent(entity.EventPing, sub.Topic())); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

// ControlEvent builds a ready or ping frame for topic.
func ControlEvent(name, topic string) Event {
	data, _ := json.Marshal(map[string]string{"topic": topic})
	return Event{Name: name, Topic: topic, Data: data, Timestamp: time.Now().UTC()}
}
