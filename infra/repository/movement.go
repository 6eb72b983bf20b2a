package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"gorm.io/gorm"
)

type movementRepository struct {
	db *gorm.DB
}

// NewMovementRepository creates the append-only movement repository.
func NewMovementRepository(db *gorm.DB) repository.MovementRepository {
	return &movementRepository{db: db}
}

func (r *movementRepository) Create(ctx context.Context, mv *ledger.LedgerMovement) error {
	newIDIfNil(&mv.ID)
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}
	m := mapMovementToModel(mv)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *movementRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.LedgerMovement, error) {
	var m LedgerMovement
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapGormErrorByID(err, "ledger movement", id)
	}
	return mapMovementToDomain(&m), nil
}

func (r *movementRepository) Find(ctx context.Context, f repository.MovementFilter) ([]*ledger.LedgerMovement, error) {
	q := r.db.WithContext(ctx)
	if len(f.AccountIDs) > 0 {
		q = q.Where("account_id IN ?", f.AccountIDs)
	}
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if len(f.PaymentIDs) > 0 {
		q = q.Where("payment_id IN ?", f.PaymentIDs)
	}
	if f.CreatedAfter != nil {
		q = q.Where("created_at > ?", f.CreatedAfter.UTC())
	}
	if f.CreatedUntil != nil {
		q = q.Where("created_at <= ?", f.CreatedUntil.UTC())
	}
	var rows []LedgerMovement
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.LedgerMovement, 0, len(rows))
	for i := range rows {
		out = append(out, mapMovementToDomain(&rows[i]))
	}
	return out, nil
}
