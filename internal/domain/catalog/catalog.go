// Package catalog holds the services, packs and parts a workshop offers.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

// Service is a single bookable air-conditioning service.
type Service struct {
	ID                    uuid.UUID
	Name                  string
	Description           string
	PriceCents            int64
	DurationMinutes       int
	AllowTechnicianChoice bool
	Active                bool
	CreatedAt             time.Time
}

// Pack bundles several services at a single price.
type Pack struct {
	ID          uuid.UUID
	Name        string
	Description string
	PriceCents  int64
	ServiceIDs  []uuid.UUID
	Active      bool
	CreatedAt   time.Time
}

// Part is a stocked spare part consumed by jobs.
type Part struct {
	ID             uuid.UUID
	Name           string
	SKU            string
	Stock          int
	UnitPriceCents int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InventoryDirection tells whether stock entered or left the workshop.
type InventoryDirection string

const (
	InventoryIn  InventoryDirection = "IN"
	InventoryOut InventoryDirection = "OUT"
)

// InventoryLog records one stock movement.
type InventoryLog struct {
	ID        uuid.UUID
	PartID    uuid.UUID
	Type      InventoryDirection
	Quantity  int
	Reference *uuid.UUID // job id for OUT movements
	Note      string
	CreatedBy *uuid.UUID
	CreatedAt time.Time
}

// NewInventoryLog validates and creates a stock movement record.
func NewInventoryLog(partID uuid.UUID, dir InventoryDirection, qty int, ref *uuid.UUID, note string, by *uuid.UUID, now time.Time) (*InventoryLog, error) {
	if dir != InventoryIn && dir != InventoryOut {
		return nil, domain.NewValidationError("invalid inventory direction: " + string(dir))
	}
	if qty <= 0 {
		return nil, domain.NewFieldValidationError(map[string]string{"quantity": "must be positive"})
	}
	return &InventoryLog{
		ID:        uuid.New(),
		PartID:    partID,
		Type:      dir,
		Quantity:  qty,
		Reference: ref,
		Note:      note,
		CreatedBy: by,
		CreatedAt: now.UTC(),
	}, nil
}

// Repository defines the persistence contract for the catalog.
type Repository interface {
	FindService(ctx context.Context, id uuid.UUID) (*Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]*Service, error)
	SaveService(ctx context.Context, s *Service) error

	FindPack(ctx context.Context, id uuid.UUID) (*Pack, error)
	ListPacks(ctx context.Context, activeOnly bool) ([]*Pack, error)
	SavePack(ctx context.Context, p *Pack) error

	FindPart(ctx context.Context, id uuid.UUID) (*Part, error)
	ListParts(ctx context.Context) ([]*Part, error)
	SavePart(ctx context.Context, p *Part) error
	// DecrementStock removes qty units only if enough are on hand. It reports false when the
	// part has less than qty in stock.
	DecrementStock(ctx context.Context, partID uuid.UUID, qty int) (bool, error)
	IncrementStock(ctx context.Context, partID uuid.UUID, qty int) error

	AddInventoryLog(ctx context.Context, log *InventoryLog) error
	ListInventoryLogs(ctx context.Context, partID uuid.UUID) ([]*InventoryLog, error)
}
