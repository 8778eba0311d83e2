package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chillcar/service-booking/internal/domain/catalog"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// ServiceModel is the GORM model for the services table.
type ServiceModel struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name                  string    `gorm:"size:200;not null"`
	Description           string    `gorm:"type:text"`
	PriceCents            int64     `gorm:"not null"`
	DurationMinutes       int       `gorm:"not null;default:60"`
	AllowTechnicianChoice bool      `gorm:"not null;default:false"`
	Active                bool      `gorm:"not null;index"`
	CreatedAt             time.Time `gorm:"not null"`
}

func (ServiceModel) TableName() string { return "services" }

// PackModel is the GORM model for the packs table.
type PackModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"size:200;not null"`
	Description string    `gorm:"type:text"`
	PriceCents  int64     `gorm:"not null"`
	Active      bool      `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (PackModel) TableName() string { return "packs" }

// PackServiceModel links a pack to the services it contains.
type PackServiceModel struct {
	PackID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ServiceID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (PackServiceModel) TableName() string { return "pack_services" }

// PartModel is the GORM model for the parts table.
type PartModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           string    `gorm:"size:200;not null"`
	SKU            string    `gorm:"column:sku;size:64;uniqueIndex;not null"`
	Stock          int       `gorm:"not null;default:0"`
	UnitPriceCents int64     `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (PartModel) TableName() string { return "parts" }

// InventoryLogModel is the GORM model for the inventory_logs table.
type InventoryLogModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PartID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	Type      string     `gorm:"size:3;not null"`
	Quantity  int        `gorm:"not null"`
	Reference *uuid.UUID `gorm:"type:uuid;index"`
	Note      string     `gorm:"size:500"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time  `gorm:"not null"`
}

func (InventoryLogModel) TableName() string { return "inventory_logs" }

// GormCatalogRepository is the GORM-based implementation of catalog.Repository.
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository.
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

func (r *GormCatalogRepository) FindService(ctx context.Context, id uuid.UUID) (*catalog.Service, error) {
	var m ServiceModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Service", id.String())
		}
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	return toDomainService(&m), nil
}

func (r *GormCatalogRepository) ListServices(ctx context.Context, activeOnly bool) ([]*catalog.Service, error) {
	q := database.Conn(ctx, r.db).Order("name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var models []ServiceModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	out := make([]*catalog.Service, len(models))
	for i := range models {
		out[i] = toDomainService(&models[i])
	}
	return out, nil
}

func (r *GormCatalogRepository) SaveService(ctx context.Context, s *catalog.Service) error {
	m := ServiceModel{
		ID:                    s.ID,
		Name:                  s.Name,
		Description:           s.Description,
		PriceCents:            s.PriceCents,
		DurationMinutes:       s.DurationMinutes,
		AllowTechnicianChoice: s.AllowTechnicianChoice,
		Active:                s.Active,
		CreatedAt:             s.CreatedAt,
	}
	if err := database.Conn(ctx, r.db).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

func (r *GormCatalogRepository) FindPack(ctx context.Context, id uuid.UUID) (*catalog.Pack, error) {
	var m PackModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Pack", id.String())
		}
		return nil, fmt.Errorf("failed to find pack: %w", err)
	}
	packs, err := r.withServices(ctx, []PackModel{m})
	if err != nil {
		return nil, err
	}
	return packs[0], nil
}

func (r *GormCatalogRepository) ListPacks(ctx context.Context, activeOnly bool) ([]*catalog.Pack, error) {
	q := database.Conn(ctx, r.db).Order("name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var models []PackModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	return r.withServices(ctx, models)
}

func (r *GormCatalogRepository) SavePack(ctx context.Context, p *catalog.Pack) error {
	m := PackModel{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
	}
	db := database.Conn(ctx, r.db)
	if err := db.Create(&m).Error; err != nil {
		return fmt.Errorf("failed to save pack: %w", err)
	}
	if len(p.ServiceIDs) == 0 {
		return nil
	}
	links := make([]PackServiceModel, len(p.ServiceIDs))
	for i, sid := range p.ServiceIDs {
		links[i] = PackServiceModel{PackID: p.ID, ServiceID: sid}
	}
	if err := db.Create(&links).Error; err != nil {
		return fmt.Errorf("failed to save pack services: %w", err)
	}
	return nil
}

func (r *GormCatalogRepository) withServices(ctx context.Context, models []PackModel) ([]*catalog.Pack, error) {
	out := make([]*catalog.Pack, len(models))
	if len(models) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var links []PackServiceModel
	if err := database.Conn(ctx, r.db).Where("pack_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to load pack services: %w", err)
	}
	byPack := make(map[uuid.UUID][]uuid.UUID)
	for _, l := range links {
		byPack[l.PackID] = append(byPack[l.PackID], l.ServiceID)
	}
	for i, m := range models {
		out[i] = &catalog.Pack{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			PriceCents:  m.PriceCents,
			ServiceIDs:  byPack[m.ID],
			Active:      m.Active,
			CreatedAt:   m.CreatedAt,
		}
	}
	return out, nil
}

func (r *GormCatalogRepository) FindPart(ctx context.Context, id uuid.UUID) (*catalog.Part, error) {
	var m PartModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Part", id.String())
		}
		return nil, fmt.Errorf("failed to find part: %w", err)
	}
	return toDomainPart(&m), nil
}

func (r *GormCatalogRepository) ListParts(ctx context.Context) ([]*catalog.Part, error) {
	var models []PartModel
	if err := database.Conn(ctx, r.db).Order("name ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}
	out := make([]*catalog.Part, len(models))
	for i := range models {
		out[i] = toDomainPart(&models[i])
	}
	return out, nil
}

func (r *GormCatalogRepository) SavePart(ctx context.Context, p *catalog.Part) error {
	m := PartModel{
		ID:             p.ID,
		Name:           p.Name,
		SKU:            p.SKU,
		Stock:          p.Stock,
		UnitPriceCents: p.UnitPriceCents,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if err := database.Conn(ctx, r.db).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("a part with SKU " + p.SKU + " already exists")
		}
		return fmt.Errorf("failed to save part: %w", err)
	}
	return nil
}

// DecrementStock subtracts qty in a single conditional UPDATE so concurrent completions cannot
// take the stock below zero.
func (r *GormCatalogRepository) DecrementStock(ctx context.Context, partID uuid.UUID, qty int) (bool, error) {
	result := database.Conn(ctx, r.db).
		Model(&PartModel{}).
		Where("id = ? AND stock >= ?", partID, qty).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *GormCatalogRepository) IncrementStock(ctx context.Context, partID uuid.UUID, qty int) error {
	result := database.Conn(ctx, r.db).
		Model(&PartModel{}).
		Where("id = ?", partID).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Part", partID.String())
	}
	return nil
}

func (r *GormCatalogRepository) AddInventoryLog(ctx context.Context, l *catalog.InventoryLog) error {
	m := InventoryLogModel{
		ID:        l.ID,
		PartID:    l.PartID,
		Type:      string(l.Type),
		Quantity:  l.Quantity,
		Reference: l.Reference,
		Note:      l.Note,
		CreatedBy: l.CreatedBy,
		CreatedAt: l.CreatedAt,
	}
	if err := database.Conn(ctx, r.db).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to save inventory log: %w", err)
	}
	return nil
}

func (r *GormCatalogRepository) ListInventoryLogs(ctx context.Context, partID uuid.UUID) ([]*catalog.InventoryLog, error) {
	var models []InventoryLogModel
	if err := database.Conn(ctx, r.db).Where("part_id = ?", partID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list inventory logs: %w", err)
	}
	out := make([]*catalog.InventoryLog, len(models))
	for i, m := range models {
		out[i] = &catalog.InventoryLog{
			ID:        m.ID,
			PartID:    m.PartID,
			Type:      catalog.InventoryDirection(m.Type),
			Quantity:  m.Quantity,
			Reference: m.Reference,
			Note:      m.Note,
			CreatedBy: m.CreatedBy,
			CreatedAt: m.CreatedAt,
		}
	}
	return out, nil
}

func toDomainService(m *ServiceModel) *catalog.Service {
	return &catalog.Service{
		ID:                    m.ID,
		Name:                  m.Name,
		Description:           m.Description,
		PriceCents:            m.PriceCents,
		DurationMinutes:       m.DurationMinutes,
		AllowTechnicianChoice: m.AllowTechnicianChoice,
		Active:                m.Active,
		CreatedAt:             m.CreatedAt,
	}
}

func toDomainPart(m *PartModel) *catalog.Part {
	return &catalog.Part{
		ID:             m.ID,
		Name:           m.Name,
		SKU:            m.SKU,
		Stock:          m.Stock,
		UnitPriceCents: m.UnitPriceCents,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
