package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

func (s *Store) InsertNotification(ctx context.Context, n notify.Notification) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO notifications (id, user_id, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5)`, n.ID, n.UserID, n.Message, n.Read, n.CreatedAt)
	return mapErr(err)
}

func (s *Store) ListNotifications(ctx context.Context, q notify.Query) ([]notify.Notification, error) {
	var sb strings.Builder
	sb.WriteString(selectNotification)
	sb.WriteString(` WHERE user_id = $1`)
	if q.UnreadOnly {
		sb.WriteString(` AND NOT read`)
	}
	if q.OldestFirst {
		sb.WriteString(` ORDER BY created_at, id`)
	} else {
		sb.WriteString(` ORDER BY created_at DESC, id`)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, ` LIMIT %d`, q.Limit)
	}

	rows, err := s.DB.Query(ctx, sb.String(), q.UserID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]notify.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	ct, err := s.DB.Exec(ctx, `UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	ct, err := s.DB.Exec(ctx, `UPDATE notifications SET read = true WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}
