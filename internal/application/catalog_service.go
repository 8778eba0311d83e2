package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/domain/catalog"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// CreateServiceRequest holds the data for a new catalog service.
type CreateServiceRequest struct {
	Name                  string `json:"name" binding:"required,max=100"`
	Description           string `json:"description" binding:"max=1000"`
	PriceCents            int64  `json:"priceCents" binding:"gte=0"`
	DurationMinutes       int    `json:"durationMinutes" binding:"required,gt=0"`
	AllowTechnicianChoice bool   `json:"allowTechnicianChoice"`
}

// CreatePackRequest holds the data for a new pack.
type CreatePackRequest struct {
	Name        string      `json:"name" binding:"required,max=100"`
	Description string      `json:"description" binding:"max=1000"`
	PriceCents  int64       `json:"priceCents" binding:"gte=0"`
	ServiceIDs  []uuid.UUID `json:"serviceIds" binding:"required,min=1"`
}

// CreatePartRequest holds the data for a new spare part.
type CreatePartRequest struct {
	Name           string `json:"name" binding:"required,max=100"`
	SKU            string `json:"sku" binding:"required,max=50"`
	Stock          int    `json:"stock" binding:"gte=0"`
	UnitPriceCents int64  `json:"unitPriceCents" binding:"gte=0"`
}

// RestockRequest adds stock to a part.
type RestockRequest struct {
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Note     string `json:"note" binding:"max=255"`
}

// InventoryLogDTO is the response representation of a stock movement.
type InventoryLogDTO struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Quantity  int        `json:"quantity"`
	Reference *uuid.UUID `json:"reference,omitempty"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CatalogService manages services, packs and the parts inventory.
type CatalogService struct {
	clock
	repo   catalog.Repository
	tx     TxRunner
	logger *zap.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo catalog.Repository, tx TxRunner, logger *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, tx: tx, logger: logger}
}

// WithClock replaces the time source.
func (s *CatalogService) WithClock(now func() time.Time) *CatalogService {
	s.now = now
	return s
}

// ListServices lists services; inactive ones only when all is set.
func (s *CatalogService) ListServices(ctx context.Context, all bool) ([]ServiceDTO, error) {
	services, err := s.repo.ListServices(ctx, !all)
	if err != nil {
		return nil, err
	}
	out := make([]ServiceDTO, len(services))
	for i, svc := range services {
		out[i] = toServiceDTO(svc)
	}
	return out, nil
}

// ListPacks lists packs; inactive ones only when all is set.
func (s *CatalogService) ListPacks(ctx context.Context, all bool) ([]PackDTO, error) {
	packs, err := s.repo.ListPacks(ctx, !all)
	if err != nil {
		return nil, err
	}
	out := make([]PackDTO, len(packs))
	for i, p := range packs {
		out[i] = toPackDTO(p)
	}
	return out, nil
}

// ListParts lists the parts inventory.
func (s *CatalogService) ListParts(ctx context.Context) ([]PartDTO, error) {
	parts, err := s.repo.ListParts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PartDTO, len(parts))
	for i, p := range parts {
		out[i] = toPartDTO(p)
	}
	return out, nil
}

// CreateService adds an active service to the catalog.
func (s *CatalogService) CreateService(ctx context.Context, req CreateServiceRequest) (*ServiceDTO, error) {
	svc := &catalog.Service{
		ID:                    uuid.New(),
		Name:                  strings.TrimSpace(req.Name),
		Description:           req.Description,
		PriceCents:            req.PriceCents,
		DurationMinutes:       req.DurationMinutes,
		AllowTechnicianChoice: req.AllowTechnicianChoice,
		Active:                true,
		CreatedAt:             s.current(),
	}
	if err := s.repo.SaveService(ctx, svc); err != nil {
		return nil, err
	}
	result := toServiceDTO(svc)
	return &result, nil
}

// CreatePack bundles existing services into an active pack.
func (s *CatalogService) CreatePack(ctx context.Context, req CreatePackRequest) (*PackDTO, error) {
	seen := make(map[uuid.UUID]struct{}, len(req.ServiceIDs))
	ids := make([]uuid.UUID, 0, len(req.ServiceIDs))
	for _, id := range req.ServiceIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.repo.FindService(ctx, id); err != nil {
			if domain.IsNotFound(err) {
				return nil, domain.NewFieldValidationError(map[string]string{"serviceIds": "unknown service " + id.String()})
			}
			return nil, err
		}
		ids = append(ids, id)
	}

	pack := &catalog.Pack{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		PriceCents:  req.PriceCents,
		ServiceIDs:  ids,
		Active:      true,
		CreatedAt:   s.current(),
	}
	if err := s.repo.SavePack(ctx, pack); err != nil {
		return nil, err
	}
	result := toPackDTO(pack)
	return &result, nil
}

// CreatePart adds a part to the inventory. Initial stock is logged as an IN movement.
func (s *CatalogService) CreatePart(ctx context.Context, actor Actor, req CreatePartRequest) (*PartDTO, error) {
	now := s.current()
	part := &catalog.Part{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(req.Name),
		SKU:            strings.ToUpper(strings.TrimSpace(req.SKU)),
		Stock:          req.Stock,
		UnitPriceCents: req.UnitPriceCents,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SavePart(ctx, part); err != nil {
			return err
		}
		if part.Stock == 0 {
			return nil
		}
		actorID := actor.ID
		entry, err := catalog.NewInventoryLog(part.ID, catalog.InventoryIn, part.Stock, nil, "initial stock", &actorID, now)
		if err != nil {
			return err
		}
		return s.repo.AddInventoryLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	result := toPartDTO(part)
	return &result, nil
}

// RestockPart adds stock and records the IN movement in one transaction.
func (s *CatalogService) RestockPart(ctx context.Context, actor Actor, partID uuid.UUID, req RestockRequest) (*PartDTO, error) {
	now := s.current()
	var part *catalog.Part
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		actorID := actor.ID
		entry, err := catalog.NewInventoryLog(partID, catalog.InventoryIn, req.Quantity, nil, req.Note, &actorID, now)
		if err != nil {
			return err
		}
		if err := s.repo.IncrementStock(ctx, partID, req.Quantity); err != nil {
			return err
		}
		if err := s.repo.AddInventoryLog(ctx, entry); err != nil {
			return err
		}
		part, err = s.repo.FindPart(ctx, partID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("part restocked",
		zap.String("part_id", part.ID.String()),
		zap.Int("quantity", req.Quantity),
		zap.Int("stock", part.Stock),
	)
	result := toPartDTO(part)
	return &result, nil
}

// ListInventoryLogs lists a part's stock movements, newest first.
func (s *CatalogService) ListInventoryLogs(ctx context.Context, partID uuid.UUID) ([]InventoryLogDTO, error) {
	if _, err := s.repo.FindPart(ctx, partID); err != nil {
		return nil, err
	}
	logs, err := s.repo.ListInventoryLogs(ctx, partID)
	if err != nil {
		return nil, err
	}
	out := make([]InventoryLogDTO, len(logs))
	for i, l := range logs {
		out[i] = InventoryLogDTO{
			ID:        l.ID,
			Type:      string(l.Type),
			Quantity:  l.Quantity,
			Reference: l.Reference,
			Note:      l.Note,
			CreatedAt: l.CreatedAt,
		}
	}
	return out, nil
}
