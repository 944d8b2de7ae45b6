package conduces

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heuristic-logix/backoffice/pkg/db/models"
	"github.com/heuristic-logix/backoffice/pkg/enums"
)

// Repository covers the persistence surface for conduces.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, conduce *models.Conduce) (*models.Conduce, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Conduce, error)
	List(ctx context.Context, filters ConduceFilters, limit, offset int) ([]models.Conduce, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ConduceStatus) error
	UpdateTruck(ctx context.Context, id uuid.UUID, truckPlate string, status enums.ConduceStatus) error
}
