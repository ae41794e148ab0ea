package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrEmptyMessage = errors.New("notification message is empty")

// Fanout persists notifications and pushes them to the user's live channel.
// The stored row is the source of truth; live delivery may be lost.
type Fanout struct {
	Store  Store
	Broker Broker

	wg sync.WaitGroup
}

func Channel(userID string) string { return fmt.Sprintf(redisx.ChannelUser, userID) }

// Notify stores the notification and returns once it is durable.
// Publishing happens in the background.
func (f *Fanout) Notify(ctx context.Context, userID, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	if userID == "" {
		return errors.New("notification has no recipient")
	}

	n := Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.Store.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if f.Broker == nil {
		return nil
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		b, _ := json.Marshal(n)
		if err := f.Broker.Publish(ctx, Channel(userID), b); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("notification_id", n.ID).Msg("notify: live publish failed")
		}
	}()
	return nil
}

// Wait blocks until every pending publish has finished.
func (f *Fanout) Wait() { f.wg.Wait() }

func (f *Fanout) List(ctx context.Context, userID string) ([]Notification, error) {
	return f.Store.ListNotifications(ctx, Query{UserID: userID})
}

func (f *Fanout) Unread(ctx context.Context, userID string) ([]Notification, error) {
	return f.Store.ListNotifications(ctx, Query{UserID: userID, UnreadOnly: true})
}

func (f *Fanout) MarkRead(ctx context.Context, userID, id string) error {
	return f.Store.MarkNotificationRead(ctx, userID, id)
}

func (f *Fanout) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return f.Store.MarkAllNotificationsRead(ctx, userID)
}

// Stream sends the unread backlog oldest first and then every live
// notification for userID until ctx ends or send fails.
//
// The subscription is opened before the backlog is read, so a notification
// stored in between arrives on both paths; it is sent once.
func (f *Fanout) Stream(ctx context.Context, userID string, send func(Notification) error) error {
	sub, err := f.Broker.Subscribe(ctx, Channel(userID))
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	backlog, err := f.Store.ListNotifications(ctx, Query{UserID: userID, UnreadOnly: true, OldestFirst: true})
	if err != nil {
		return fmt.Errorf("backlog: %w", err)
	}
	sent := make(map[string]struct{}, len(backlog))
	for _, n := range backlog {
		if err := send(n); err != nil {
			return err
		}
		sent[n.ID] = struct{}{}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-sub.C():
			if !ok {
				return nil
			}
			var n Notification
			if err := json.Unmarshal(b, &n); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("notify: dropping malformed live message")
				continue
			}
			if _, dup := sent[n.ID]; dup {
				continue
			}
			if err := send(n); err != nil {
				return err
			}
		}
	}
}
