package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"gamescrow/pkg/logger"
)

const (
	pgChannel = "gamescrow_events"
	// NOTIFY payloads are capped at 8000 bytes by Postgres.
	maxNotifyPayload = 7900
)

type relayedEvent struct {
	Origin string `json:"origin"`
	Event
}

// PGBridge relays hub events between instances over Postgres LISTEN/NOTIFY.
// Every instance sends what it publishes and re-delivers what the others
// sent; its own notifications are recognised by origin and ignored.
type PGBridge struct {
	db  *sql.DB
	dsn string
	hub *Hub
}

func NewPGBridge(db *sql.DB, dsn string, hub *Hub) *PGBridge {
	return &PGBridge{db: db, dsn: dsn, hub: hub}
}

// Attach makes the hub forward its local publishes to Postgres.
func (b *PGBridge) Attach() {
	b.hub.SetForwarder(b.notify)
}

func (b *PGBridge) notify(ev Event) {
	payload, err := json.Marshal(relayedEvent{Origin: b.hub.Origin(), Event: ev})
	if err != nil {
		logger.Error("pg bridge: encode %s: %v", ev.Name, err)
		return
	}
	if len(payload) > maxNotifyPayload {
		logger.Warn("pg bridge: %s on %s is %d bytes, not relayed", ev.Name, ev.Topic, len(payload))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := b.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, pgChannel, string(payload)); err != nil {
		logger.Error("pg bridge: notify %s on %s: %v", ev.Name, ev.Topic, err)
	}
}

// Run listens until ctx is cancelled.
func (b *PGBridge) Run(ctx context.Context) error {
	listener := pq.NewListener(b.dsn, time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("pg bridge: listener event %d: %v", event, err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(pgChannel); err != nil {
		return err
	}
	logger.Info("pg bridge listening on %s", pgChannel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; events sent meanwhile are lost
			if n == nil {
				continue
			}
			b.handle(n.Extra)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				logger.Warn("pg bridge: ping failed: %v", err)
			}
		}
	}
}

func (b *PGBridge) handle(payload string) {
	var relayed relayedEvent
	if err := json.Unmarshal([]byte(payload), &relayed); err != nil {
		logger.Warn("pg bridge: bad payload: %v", err)
		return
	}
	if relayed.Origin == b.hub.Origin() {
		return
	}
	b.hub.Deliver(relayed.Event)
}
