package conduces

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/heuristic-logix/backoffice/pkg/db"
	"github.com/heuristic-logix/backoffice/pkg/db/models"
	"github.com/heuristic-logix/backoffice/pkg/enums"
	pkgerrors "github.com/heuristic-logix/backoffice/pkg/errors"
	"github.com/heuristic-logix/backoffice/pkg/outbox"
)

const conducesTopic = "logistics.conduces.v1"

type outboxWriter interface {
	AddEvent(ctx context.Context, tx *gorm.DB, params outbox.EventParams) (*models.OutboxEvent, error)
	Transact(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines conduce-level operations beyond repository reads.
type Service interface {
	Create(ctx context.Context, input CreateConduceInput) (*models.Conduce, error)
	AssignTruck(ctx context.Context, input AssignTruckInput) (*models.Conduce, error)
	Dispatch(ctx context.Context, id uuid.UUID, correlationID *string) (*models.Conduce, error)
	Deliver(ctx context.Context, id uuid.UUID, correlationID *string) (*models.Conduce, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Conduce, error)
	List(ctx context.Context, filters ConduceFilters, limit, offset int) ([]models.Conduce, error)
}

type service struct {
	repo   Repository
	writer outboxWriter
}

// NewService builds a conduce service with the required dependencies.
func NewService(repo Repository, writer outboxWriter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("conduces repository required")
	}
	if writer == nil {
		return nil, fmt.Errorf("outbox writer required")
	}
	return &service{repo: repo, writer: writer}, nil
}

func (s *service) Create(ctx context.Context, input CreateConduceInput) (*models.Conduce, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	conduce := &models.Conduce{
		ID:                  uuid.New(),
		ConduceNumber:       strings.TrimSpace(input.ConduceNumber),
		ClientName:          strings.TrimSpace(input.ClientName),
		DeliveryAddress:     strings.TrimSpace(input.DeliveryAddress),
		MaterialDescription: strings.TrimSpace(input.MaterialDescription),
		Quantity:            input.Quantity,
		Unit:                strings.TrimSpace(input.Unit),
		TotalWeightKg:       input.TotalWeightKg,
		Status:              enums.ConduceDraft,
		Notes:               input.Notes,
	}

	err := s.writer.Transact(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, conduce); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_conduces_number") {
				return pkgerrors.New(pkgerrors.CodeConflict, "conduce number already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create conduce")
		}
		return s.emit(ctx, tx, enums.EventConduceCreated, conduce.ID, input.CorrelationID, ConduceCreatedEvent{
			ConduceID:           conduce.ID,
			ConduceNumber:       conduce.ConduceNumber,
			ClientName:          conduce.ClientName,
			MaterialDescription: conduce.MaterialDescription,
			Quantity:            conduce.Quantity,
			Unit:                conduce.Unit,
			TotalWeightKg:       conduce.TotalWeightKg,
			CreatedAt:           conduce.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return conduce, nil
}

func (s *service) AssignTruck(ctx context.Context, input AssignTruckInput) (*models.Conduce, error) {
	if input.ConduceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conduce id required")
	}
	plate := strings.ToUpper(strings.TrimSpace(input.TruckPlate))
	if plate == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "truck plate required")
	}

	var updated *models.Conduce
	err := s.writer.Transact(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		conduce, err := loadConduce(ctx, repo, input.ConduceID)
		if err != nil {
			return err
		}
		if conduce.Status != enums.ConduceDraft {
			return pkgerrors.New(pkgerrors.CodeConflict, "truck can only be assigned to a draft conduce")
		}
		if err := repo.UpdateTruck(ctx, conduce.ID, plate, enums.ConduceAssigned); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign truck")
		}
		conduce.TruckPlate = &plate
		conduce.Status = enums.ConduceAssigned
		updated = conduce
		return s.emit(ctx, tx, enums.EventTruckAssigned, conduce.ID, input.CorrelationID, TruckAssignedEvent{
			ConduceID:     conduce.ID,
			ConduceNumber: conduce.ConduceNumber,
			TruckPlate:    plate,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Dispatch(ctx context.Context, id uuid.UUID, correlationID *string) (*models.Conduce, error) {
	return s.transition(ctx, id, correlationID, enums.ConduceAssigned, enums.ConduceDispatched, enums.EventConduceDispatched)
}

func (s *service) Deliver(ctx context.Context, id uuid.UUID, correlationID *string) (*models.Conduce, error) {
	return s.transition(ctx, id, correlationID, enums.ConduceDispatched, enums.ConduceDelivered, enums.EventConduceDelivered)
}

func (s *service) transition(ctx context.Context, id uuid.UUID, correlationID *string, from, to enums.ConduceStatus, eventType enums.OutboxEventType) (*models.Conduce, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conduce id required")
	}

	var updated *models.Conduce
	err := s.writer.Transact(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		conduce, err := loadConduce(ctx, repo, id)
		if err != nil {
			return err
		}
		if conduce.Status != from {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("conduce must be %s to become %s", from, to))
		}
		if err := repo.UpdateStatus(ctx, conduce.ID, to); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update conduce status")
		}
		conduce.Status = to
		updated = conduce
		return s.emit(ctx, tx, eventType, conduce.ID, correlationID, ConduceStatusEvent{
			ConduceID:     conduce.ID,
			ConduceNumber: conduce.ConduceNumber,
			Status:        to,
			TruckPlate:    conduce.TruckPlate,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Conduce, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conduce id required")
	}
	return loadConduce(ctx, s.repo, id)
}

func (s *service) List(ctx context.Context, filters ConduceFilters, limit, offset int) ([]models.Conduce, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.repo.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list conduces")
	}
	return rows, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, conduceID uuid.UUID, correlationID *string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event payload")
	}
	_, err = s.writer.AddEvent(ctx, tx, outbox.EventParams{
		EventType:     eventType,
		Topic:         conducesTopic,
		AggregateID:   conduceID.String(),
		Payload:       data,
		CorrelationID: correlationID,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue outbox event")
	}
	return nil
}

func loadConduce(ctx context.Context, repo Repository, id uuid.UUID) (*models.Conduce, error) {
	conduce, err := repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "conduce not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conduce")
	}
	return conduce, nil
}

func validateCreateInput(input CreateConduceInput) error {
	if strings.TrimSpace(input.ConduceNumber) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "conduce number required")
	}
	if strings.TrimSpace(input.ClientName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "client name required")
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if strings.TrimSpace(input.MaterialDescription) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "material description required")
	}
	if strings.TrimSpace(input.Unit) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit required")
	}
	if !input.Quantity.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.TotalWeightKg.LessThan(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "total weight must not be negative")
	}
	return nil
}
