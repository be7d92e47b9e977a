// Package notifications exposes a user's notification inbox. Writing
// notifications happens inside the transactions of the services that cause
// them; this service only reads and acknowledges.
package notifications

import (
	"context"

	"github.com/pactpoint/backend/internal/app/domain/notification"
	"github.com/pactpoint/backend/internal/app/storage"
	"github.com/pactpoint/backend/pkg/logger"
)

const defaultListLimit = 50

// Service implements notification queries.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New constructs the service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{store: store, log: log}
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}
	return s.store.ListNotificationsForUser(ctx, userID, limit)
}

// CountUnread returns how many notifications the user has not read.
func (s *Service) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.store.CountUnreadNotifications(ctx, userID)
}

// MarkRead acknowledges a single notification owned by the user.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.MarkNotificationRead(ctx, id, userID)
}

// MarkAllRead acknowledges everything in the user's inbox.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}
