package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	billingDomain "github.com/chillcar/service-booking/internal/domain/billing"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

// QuoteModel is the GORM model for the quotes table.
type QuoteModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingID  uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	Status     string          `gorm:"size:20;not null;index"`
	Lines      json.RawMessage `gorm:"type:jsonb;not null"`
	TotalCents int64           `gorm:"not null"`
	Currency   string          `gorm:"not null;size:3;default:'MYR'"`
	Notes      string          `gorm:"size:1000"`
	CreatedBy  uuid.UUID       `gorm:"type:uuid;not null"`
	ResolvedAt *time.Time      `gorm:""`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

func (QuoteModel) TableName() string { return "quotes" }

// BillingModel is the GORM model for the billings table.
type BillingModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	QuoteID    uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	BookingID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	CustomerID uuid.UUID  `gorm:"type:uuid;index;not null"`
	Status     string     `gorm:"size:20;not null;index"`
	TotalCents int64      `gorm:"not null"`
	PaidCents  int64      `gorm:"not null;default:0"`
	Currency   string     `gorm:"not null;size:3;default:'MYR'"`
	PaidAt     *time.Time `gorm:""`
	Version    int64      `gorm:"not null;default:1"`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
}

func (BillingModel) TableName() string { return "billings" }

// PaymentModel is the GORM model for the payments table.
type PaymentModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	BillingID   uuid.UUID `gorm:"type:uuid;index;not null"`
	AmountCents int64     `gorm:"not null"`
	Method      string    `gorm:"size:20;not null"`
	Reference   string    `gorm:"size:100"`
	RecordedBy  uuid.UUID `gorm:"type:uuid;not null"`
	PaidAt      time.Time `gorm:"not null"`
}

func (PaymentModel) TableName() string { return "payments" }

// GormQuoteRepository is the GORM-based implementation of QuoteRepository.
type GormQuoteRepository struct {
	db *gorm.DB
}

// NewGormQuoteRepository creates a new GormQuoteRepository.
func NewGormQuoteRepository(db *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: db}
}

func (r *GormQuoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*billingDomain.Quote, error) {
	return r.findOne(ctx, "id = ?", id, "Quote")
}

func (r *GormQuoteRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*billingDomain.Quote, error) {
	return r.findOne(ctx, "booking_id = ?", bookingID, "Quote for booking")
}

func (r *GormQuoteRepository) findOne(ctx context.Context, cond string, id uuid.UUID, entity string) (*billingDomain.Quote, error) {
	var m QuoteModel
	if err := database.Conn(ctx, r.db).Where(cond, id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError(entity, id.String())
		}
		return nil, fmt.Errorf("failed to find quote: %w", err)
	}
	return toDomainQuote(&m)
}

// Save persists a new quote. A second quote for the same booking is a conflict.
func (r *GormQuoteRepository) Save(ctx context.Context, q *billingDomain.Quote) error {
	m, err := toQuoteModel(q)
	if err != nil {
		return err
	}
	if err := database.Conn(ctx, r.db).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("a quote already exists for this booking")
		}
		return fmt.Errorf("failed to save quote: %w", err)
	}
	return nil
}

// Update persists a status change. Only pending quotes can change.
func (r *GormQuoteRepository) Update(ctx context.Context, q *billingDomain.Quote) error {
	result := database.Conn(ctx, r.db).
		Model(&QuoteModel{}).
		Where("id = ? AND status = ?", q.ID(), string(billingDomain.QuotePending)).
		Updates(map[string]interface{}{
			"status":      string(q.Status()),
			"resolved_at": q.ResolvedAt(),
			"updated_at":  q.UpdatedAt(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update quote: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("quote was already resolved")
	}
	return nil
}

// GormBillingRepository is the GORM-based implementation of BillingRepository.
type GormBillingRepository struct {
	db *gorm.DB
}

// NewGormBillingRepository creates a new GormBillingRepository.
func NewGormBillingRepository(db *gorm.DB) *GormBillingRepository {
	return &GormBillingRepository{db: db}
}

func (r *GormBillingRepository) FindByID(ctx context.Context, id uuid.UUID) (*billingDomain.Billing, error) {
	var m BillingModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Billing", id.String())
		}
		return nil, fmt.Errorf("failed to find billing: %w", err)
	}
	return toDomainBilling(&m), nil
}

func (r *GormBillingRepository) FindByQuoteID(ctx context.Context, quoteID uuid.UUID) (*billingDomain.Billing, error) {
	var m BillingModel
	if err := database.Conn(ctx, r.db).Where("quote_id = ?", quoteID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Billing for quote", quoteID.String())
		}
		return nil, fmt.Errorf("failed to find billing by quote: %w", err)
	}
	return toDomainBilling(&m), nil
}

func (r *GormBillingRepository) List(ctx context.Context, filter billingDomain.ListFilter, page, limit int) ([]*billingDomain.Billing, int64, error) {
	query := func() *gorm.DB {
		q := database.Conn(ctx, r.db).Model(&BillingModel{})
		if filter.CustomerID != nil {
			q = q.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.Status != nil {
			q = q.Where("status = ?", string(*filter.Status))
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count billings: %w", err)
	}
	var models []BillingModel
	if err := query().Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list billings: %w", err)
	}
	out := make([]*billingDomain.Billing, len(models))
	for i := range models {
		out[i] = toDomainBilling(&models[i])
	}
	return out, total, nil
}

func (r *GormBillingRepository) Save(ctx context.Context, b *billingDomain.Billing) error {
	if err := database.Conn(ctx, r.db).Create(toBillingModel(b)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("a billing already exists for this quote")
		}
		return fmt.Errorf("failed to save billing: %w", err)
	}
	return nil
}

// Update persists changes to an existing billing with optimistic locking.
func (r *GormBillingRepository) Update(ctx context.Context, b *billingDomain.Billing) error {
	m := toBillingModel(b)
	result := database.Conn(ctx, r.db).
		Model(&BillingModel{}).
		Where("id = ? AND version = ?", m.ID, b.Version()-1).
		Updates(map[string]interface{}{
			"status":     m.Status,
			"paid_cents": m.PaidCents,
			"paid_at":    m.PaidAt,
			"version":    m.Version,
			"updated_at": m.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update billing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("billing was modified by another transaction")
	}
	return nil
}

func (r *GormBillingRepository) AddPayment(ctx context.Context, p *billingDomain.Payment) error {
	m := PaymentModel{
		ID:          p.ID,
		BillingID:   p.BillingID,
		AmountCents: p.AmountCents,
		Method:      string(p.Method),
		Reference:   p.Reference,
		RecordedBy:  p.RecordedBy,
		PaidAt:      p.PaidAt,
	}
	if err := database.Conn(ctx, r.db).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

func (r *GormBillingRepository) ListPayments(ctx context.Context, billingID uuid.UUID) ([]*billingDomain.Payment, error) {
	var models []PaymentModel
	if err := database.Conn(ctx, r.db).Where("billing_id = ?", billingID).Order("paid_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	out := make([]*billingDomain.Payment, len(models))
	for i, m := range models {
		out[i] = &billingDomain.Payment{
			ID:          m.ID,
			BillingID:   m.BillingID,
			AmountCents: m.AmountCents,
			Method:      billingDomain.PaymentMethod(m.Method),
			Reference:   m.Reference,
			RecordedBy:  m.RecordedBy,
			PaidAt:      m.PaidAt,
		}
	}
	return out, nil
}

// --- Conversion Helpers ---

func toQuoteModel(q *billingDomain.Quote) (*QuoteModel, error) {
	lines, err := json.Marshal(q.Lines())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote lines: %w", err)
	}
	return &QuoteModel{
		ID:         q.ID(),
		BookingID:  q.BookingID(),
		Status:     string(q.Status()),
		Lines:      lines,
		TotalCents: q.TotalCents(),
		Currency:   q.Currency(),
		Notes:      q.Notes(),
		CreatedBy:  q.CreatedBy(),
		ResolvedAt: q.ResolvedAt(),
		CreatedAt:  q.CreatedAt(),
		UpdatedAt:  q.UpdatedAt(),
	}, nil
}

func toDomainQuote(m *QuoteModel) (*billingDomain.Quote, error) {
	var lines []billingDomain.Line
	if err := json.Unmarshal(m.Lines, &lines); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote lines: %w", err)
	}
	return billingDomain.ReconstructQuote(
		m.ID, m.BookingID,
		billingDomain.QuoteStatus(m.Status),
		lines,
		m.TotalCents,
		m.Currency, m.Notes,
		m.CreatedBy,
		m.ResolvedAt,
		m.CreatedAt, m.UpdatedAt,
	), nil
}

func toBillingModel(b *billingDomain.Billing) *BillingModel {
	return &BillingModel{
		ID:         b.ID(),
		QuoteID:    b.QuoteID(),
		BookingID:  b.BookingID(),
		CustomerID: b.CustomerID(),
		Status:     string(b.Status()),
		TotalCents: b.TotalCents(),
		PaidCents:  b.PaidCents(),
		Currency:   b.Currency(),
		PaidAt:     b.PaidAt(),
		Version:    b.Version(),
		CreatedAt:  b.CreatedAt(),
		UpdatedAt:  b.UpdatedAt(),
	}
}

func toDomainBilling(m *BillingModel) *billingDomain.Billing {
	return billingDomain.ReconstructBilling(
		m.ID, m.QuoteID, m.BookingID, m.CustomerID,
		billingDomain.Status(m.Status),
		m.TotalCents, m.PaidCents,
		m.Currency,
		m.PaidAt,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
