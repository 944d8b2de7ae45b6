package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heuristic-logix/backoffice/api/middleware"
	"github.com/heuristic-logix/backoffice/api/responses"
	"github.com/heuristic-logix/backoffice/api/validators"
	"github.com/heuristic-logix/backoffice/internal/conduces"
	"github.com/heuristic-logix/backoffice/pkg/db/models"
	"github.com/heuristic-logix/backoffice/pkg/enums"
	pkgerrors "github.com/heuristic-logix/backoffice/pkg/errors"
	"github.com/heuristic-logix/backoffice/pkg/logger"
)

type createConduceRequest struct {
	ConduceNumber       string          `json:"conduce_number" validate:"required,max=64"`
	ClientName          string          `json:"client_name" validate:"required,max=255"`
	DeliveryAddress     string          `json:"delivery_address" validate:"required,max=500"`
	MaterialDescription string          `json:"material_description" validate:"required,max=500"`
	Quantity            decimal.Decimal `json:"quantity" validate:"required"`
	Unit                string          `json:"unit" validate:"required,max=32"`
	TotalWeightKg       decimal.Decimal `json:"total_weight_kg"`
	Notes               *string         `json:"notes" validate:"omitempty,max=2000"`
}

type assignTruckRequest struct {
	TruckPlate string `json:"truck_plate" validate:"required,max=32"`
}

func CreateConduce(svc conduces.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createConduceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		corr := correlationID(r)
		conduce, err := svc.Create(ctx, conduces.CreateConduceInput{
			ConduceNumber:       req.ConduceNumber,
			ClientName:          req.ClientName,
			DeliveryAddress:     req.DeliveryAddress,
			MaterialDescription: req.MaterialDescription,
			Quantity:            req.Quantity,
			Unit:                req.Unit,
			TotalWeightKg:       req.TotalWeightKg,
			Notes:               req.Notes,
			CorrelationID:       corr,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, conduce)
	}
}

func AssignTruck(svc conduces.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := conduceID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req assignTruckRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		conduce, err := svc.AssignTruck(ctx, conduces.AssignTruckInput{
			ConduceID:     id,
			TruckPlate:    req.TruckPlate,
			CorrelationID: correlationID(r),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, conduce)
	}
}

func DispatchConduce(svc conduces.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc.Dispatch, logg)
}

func DeliverConduce(svc conduces.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc.Deliver, logg)
}

func GetConduce(svc conduces.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := conduceID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		conduce, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, conduce)
	}
}

func ListConduces(svc conduces.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		filters := conduces.ConduceFilters{Query: r.URL.Query().Get("q")}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status := enums.ConduceStatus(raw)
			if !status.IsValid() {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid conduce status"))
				return
			}
			filters.Status = &status
		}

		rows, err := svc.List(ctx, filters, limit, offset)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteList(w, rows, limit, offset, len(rows))
	}
}

type transitionFunc func(ctx context.Context, id uuid.UUID, correlationID *string) (*models.Conduce, error)

func transitionHandler(fn transitionFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := conduceID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		conduce, err := fn(ctx, id, correlationID(r))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, conduce)
	}
}

func conduceID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid conduce id")
	}
	return id, nil
}

func correlationID(r *http.Request) *string {
	if reqID := middleware.RequestIDFrom(r); reqID != "" {
		return &reqID
	}
	return nil
}
