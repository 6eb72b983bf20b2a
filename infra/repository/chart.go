package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type chartAccountRepository struct {
	db *gorm.DB
}

// NewChartAccountRepository creates a chart of accounts repository.
func NewChartAccountRepository(db *gorm.DB) repository.ChartAccountRepository {
	return &chartAccountRepository{db: db}
}

func (r *chartAccountRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.ChartAccount, error) {
	var m ChartAccount
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapGormErrorByID(err, "chart account", id)
	}
	return mapChartToDomain(&m)
}

func (r *chartAccountRepository) GetByCode(ctx context.Context, code string) (*ledger.ChartAccount, error) {
	var m ChartAccount
	if err := r.db.WithContext(ctx).First(&m, "code = ?", code).Error; err != nil {
		return nil, mapGormError(err, "chart account", code)
	}
	return mapChartToDomain(&m)
}

func (r *chartAccountRepository) List(ctx context.Context) ([]*ledger.ChartAccount, error) {
	return r.find(r.db.WithContext(ctx))
}

func (r *chartAccountRepository) ListActiveLeaves(ctx context.Context) ([]*ledger.ChartAccount, error) {
	return r.find(r.db.WithContext(ctx).Where("leaf = ? AND active = ?", true, true))
}

func (r *chartAccountRepository) find(q *gorm.DB) ([]*ledger.ChartAccount, error) {
	var rows []ChartAccount
	if err := q.Order("code").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.ChartAccount, 0, len(rows))
	for i := range rows {
		c, err := mapChartToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SeedChart inserts the given chart nodes, skipping codes already present.
func SeedChart(ctx context.Context, db *gorm.DB, chart []ledger.ChartAccount) (int64, error) {
	rows := make([]ChartAccount, 0, len(chart))
	for i := range chart {
		m := mapChartToModel(&chart[i])
		newIDIfNil(&m.ID)
		rows = append(rows, m)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&rows)
	return res.RowsAffected, res.Error
}
