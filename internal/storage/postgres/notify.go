package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pq "github.com/lib/pq"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/storage"
)

const (
	notifyChannel        = "daybook_documents"
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// notice is the pg_notify payload. Documents are re-read on receipt since a
// payload is capped at 8000 bytes.
type notice struct {
	Collection string `json:"c"`
	Key        string `json:"k"`
}

func encodeNotice(collection, key string) (string, error) {
	b, err := json.Marshal(notice{Collection: collection, Key: key})
	if err != nil {
		return "", fmt.Errorf("failed to encode notification: %w", err)
	}
	return string(b), nil
}

func (s *Store) startListener() error {
	var err error
	s.listenOnce.Do(func() {
		l := pq.NewListener(s.connStr, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("PostgreSQL listener event", "event", ev, "error", err)
			}
		})
		if err = l.Listen(notifyChannel); err != nil {
			_ = l.Close()
			return
		}
		s.listener = l
		go s.dispatch()
	})
	if err == nil && s.listener == nil {
		err = fmt.Errorf("listener unavailable")
	}
	return err
}

// dispatch re-reads each notified document and publishes it. Notifications
// are handled one at a time so a document's deliveries stay in commit order.
func (s *Store) dispatch() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case n := <-s.listener.Notify:
			if n == nil {
				// Reconnected: notifications may have been lost.
				logger.Debug("PostgreSQL listener reconnected")
				for _, c := range s.hub.Watched() {
					s.refresh(c.Collection, c.Key)
				}
				continue
			}
			var msg notice
			if err := json.Unmarshal([]byte(n.Extra), &msg); err != nil {
				logger.Warn("Ignoring malformed notification", "payload", n.Extra, "error", err)
				continue
			}
			s.refresh(msg.Collection, msg.Key)
		case <-time.After(pingInterval):
			go func() {
				if err := s.listener.Ping(); err != nil {
					logger.Debug("PostgreSQL listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (s *Store) refresh(collection, key string) {
	if s.hub.Subscribers(collection, key) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := s.Get(ctx, collection, key)
	if err != nil && !apperrors.IsNotFound(err) {
		logger.Warn("Failed to read notified document", "collection", collection, "key", key, "error", err)
		return
	}
	s.hub.Publish(storage.Change{Collection: collection, Key: key, Doc: doc})
}
