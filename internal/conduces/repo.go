package conduces

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heuristic-logix/backoffice/pkg/db/models"
	"github.com/heuristic-logix/backoffice/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a conduces repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, conduce *models.Conduce) (*models.Conduce, error) {
	if err := r.db.WithContext(ctx).Create(conduce).Error; err != nil {
		return nil, err
	}
	return conduce, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Conduce, error) {
	var conduce models.Conduce
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&conduce).Error
	if err != nil {
		return nil, err
	}
	return &conduce, nil
}

func (r *repository) List(ctx context.Context, filters ConduceFilters, limit, offset int) ([]models.Conduce, error) {
	query := r.db.WithContext(ctx).Model(&models.Conduce{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Query != "" {
		like := "%" + filters.Query + "%"
		query = query.Where("conduce_number LIKE ? OR client_name LIKE ?", like, like)
	}
	var rows []models.Conduce
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ConduceStatus) error {
	return r.db.WithContext(ctx).Model(&models.Conduce{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) UpdateTruck(ctx context.Context, id uuid.UUID, truckPlate string, status enums.ConduceStatus) error {
	return r.db.WithContext(ctx).Model(&models.Conduce{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"truck_plate": truckPlate,
			"status":      status,
		}).Error
}
