// Package notification models the per-user feed of state-change messages.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies what happened.
type Type string

const (
	TypeBookingCreated        Type = "BOOKING_CREATED"
	TypeConsultationRequested Type = "CONSULTATION_REQUESTED"
	TypeBookingAssigned       Type = "BOOKING_ASSIGNED"
	TypeBookingConfirmed      Type = "BOOKING_CONFIRMED"
	TypeBookingRejected       Type = "BOOKING_REJECTED"
	TypeBookingCancelled      Type = "BOOKING_CANCELLED"
	TypeBookingUpdated        Type = "BOOKING_UPDATED"
	TypeChangeRequested       Type = "CHANGE_REQUESTED"
	TypeChangeApproved        Type = "CHANGE_APPROVED"
	TypeChangeRejected        Type = "CHANGE_REJECTED"
	TypeJobStageUpdated       Type = "JOB_STAGE_UPDATED"
	TypeJobNoteAdded          Type = "JOB_NOTE_ADDED"
	TypeJobCompleted          Type = "JOB_COMPLETED"
	TypeQuoteGenerated        Type = "QUOTE_GENERATED"
	TypeQuoteAccepted         Type = "QUOTE_ACCEPTED"
	TypeQuoteRejected         Type = "QUOTE_REJECTED"
	TypePaymentRecorded       Type = "PAYMENT_RECORDED"
	TypeBillingPaid           Type = "BILLING_PAID"
)

// Message is a notification addressed to one user before it is stored.
type Message struct {
	ID      uuid.UUID      `json:"id"`
	UserID  uuid.UUID      `json:"userId"`
	Type    Type           `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Notification is a stored feed entry.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      Type
	Title     string
	Message   string
	Meta      map[string]any
	Read      bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

// FromMessage turns a delivered message into a stored notification. A message that already
// carries an ID keeps it, so redelivery stores it once.
func FromMessage(m Message, now time.Time) *Notification {
	id := m.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Notification{
		ID:        id,
		UserID:    m.UserID,
		Type:      m.Type,
		Title:     m.Title,
		Message:   m.Message,
		Meta:      m.Meta,
		CreatedAt: now.UTC(),
	}
}

// Repository defines the persistence contract for notifications.
type Repository interface {
	Save(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]*Notification, int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	// MarkRead marks one of the user's notifications read. It reports false if no such notification exists.
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}
