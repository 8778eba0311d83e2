package job

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

// Note is a free-text entry appended to a job by a technician, admin or the customer.
type Note struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	AuthorID  uuid.UUID
	Body      string
	CreatedAt time.Time
}

// NewNote validates and creates a job note.
func NewNote(jobID, authorID uuid.UUID, body string, now time.Time) (*Note, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.NewFieldValidationError(map[string]string{"note": "is required"})
	}
	return &Note{
		ID:        uuid.New(),
		JobID:     jobID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: now.UTC(),
	}, nil
}

// PartUsage is a part consumed by a job, priced at the moment of completion.
type PartUsage struct {
	ID             uuid.UUID
	JobID          uuid.UUID
	PartID         uuid.UUID
	PartName       string
	Quantity       int
	UnitPriceCents int64
	CreatedAt      time.Time
}

// TotalCents returns the line total of the usage.
func (p PartUsage) TotalCents() int64 {
	return p.UnitPriceCents * int64(p.Quantity)
}

// PartRequest is one {partId, quantity} entry of a completion request.
type PartRequest struct {
	PartID   uuid.UUID
	Quantity int
}

// MergePartRequests validates quantities and folds repeated part ids into one entry,
// keeping first-seen order.
func MergePartRequests(reqs []PartRequest) ([]PartRequest, error) {
	index := make(map[uuid.UUID]int, len(reqs))
	merged := make([]PartRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.PartID == uuid.Nil {
			return nil, domain.NewValidationError("part ID is required")
		}
		if r.Quantity <= 0 {
			return nil, domain.NewValidationError("part quantity must be positive")
		}
		if i, ok := index[r.PartID]; ok {
			merged[i].Quantity += r.Quantity
			continue
		}
		index[r.PartID] = len(merged)
		merged = append(merged, r)
	}
	return merged, nil
}
