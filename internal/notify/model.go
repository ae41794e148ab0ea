package notify

import (
	"context"
	"time"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type Query struct {
	UserID      string
	UnreadOnly  bool
	OldestFirst bool
	Limit       int // 0 means no limit
}

type Store interface {
	InsertNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, q Query) ([]Notification, error)
	// MarkNotificationRead returns orders.ErrNotFound when id does not belong to userID.
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
}
