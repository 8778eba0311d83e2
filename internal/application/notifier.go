package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/platform/auth"
)

// Notifier delivers notification messages. Delivery is best-effort: callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, msgs ...notification.Message) error
}

// DirectNotifier stores notifications straight into the database. It is used when no message
// brokers are configured.
type DirectNotifier struct {
	service *NotificationService
}

// NewDirectNotifier creates a DirectNotifier.
func NewDirectNotifier(service *NotificationService) *DirectNotifier {
	return &DirectNotifier{service: service}
}

// Notify stores every message, continuing past individual failures.
func (n *DirectNotifier) Notify(ctx context.Context, msgs ...notification.Message) error {
	var firstErr error
	for _, m := range msgs {
		if err := n.service.Deliver(ctx, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// fanout builds and dispatches notifications after the state change they describe has committed.
type fanout struct {
	notifier Notifier
	users    interface {
		ListAdminIDs(ctx context.Context) ([]uuid.UUID, error)
	}
	logger *zap.Logger
}

// send delivers msgs, logging instead of failing.
func (f fanout) send(ctx context.Context, msgs []notification.Message) {
	if f.notifier == nil || len(msgs) == 0 {
		return
	}
	// Delivery must not be cut short by the request finishing.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := f.notifier.Notify(ctx, msgs...); err != nil {
		f.logger.Warn("failed to deliver notifications",
			zap.Int("count", len(msgs)),
			zap.Error(err),
		)
	}
}

// toAdmins addresses a message to every admin except the actor.
func (f fanout) toAdmins(ctx context.Context, except uuid.UUID, t notification.Type, title, message string, meta map[string]any) []notification.Message {
	ids, err := f.users.ListAdminIDs(ctx)
	if err != nil {
		f.logger.Warn("failed to load admins for notification", zap.Error(err))
		return nil
	}
	return to(ids, except, t, title, message, meta)
}

// to addresses a message to each recipient except one, skipping duplicates.
func to(recipients []uuid.UUID, except uuid.UUID, t notification.Type, title, message string, meta map[string]any) []notification.Message {
	seen := make(map[uuid.UUID]struct{}, len(recipients))
	var msgs []notification.Message
	for _, id := range recipients {
		if id == except || id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		msgs = append(msgs, notification.Message{ID: uuid.New(), UserID: id, Type: t, Title: title, Message: message, Meta: meta})
	}
	return msgs
}

// adminDirectory resolves admin recipients from the user repository.
type adminDirectory struct {
	repos Repositories
}

func (d adminDirectory) ListAdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	admins, err := d.repos.Users.ListByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(admins))
	for _, a := range admins {
		if !a.Blocked() {
			ids = append(ids, a.ID())
		}
	}
	return ids, nil
}

func newFanout(repos Repositories, notifier Notifier, logger *zap.Logger) fanout {
	return fanout{notifier: notifier, users: adminDirectory{repos: repos}, logger: logger}
}
