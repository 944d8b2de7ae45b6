package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heuristic-logix/backoffice/api/responses"
	"github.com/heuristic-logix/backoffice/api/validators"
	"github.com/heuristic-logix/backoffice/pkg/enums"
	pkgerrors "github.com/heuristic-logix/backoffice/pkg/errors"
	"github.com/heuristic-logix/backoffice/pkg/logger"
	"github.com/heuristic-logix/backoffice/pkg/outbox"
)

// Read-only visibility into the outbox table. Records are never mutated from
// here; failed events are retried by re-inserting, not by editing rows.

func ListOutboxEvents(repo *outbox.Repository, logg *logger.Logger) http.HandlerFunc {
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

		status := enums.OutboxPending
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseOutboxStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid outbox status"))
				return
			}
			status = parsed
		}

		rows, err := repo.ListByStatus(ctx, status, limit, offset)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list outbox events"))
			return
		}
		responses.WriteList(w, rows, limit, offset, len(rows))
	}
}

func GetOutboxEvent(repo *outbox.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "invalid event id"))
			return
		}

		event, err := repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeNotFound, "outbox event not found"))
				return
			}
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load outbox event"))
			return
		}
		responses.WriteSuccess(w, event)
	}
}

func OutboxStats(repo *outbox.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		counts, err := repo.CountByStatus(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count outbox events"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"pending":   counts[enums.OutboxPending],
			"published": counts[enums.OutboxPublished],
			"failed":    counts[enums.OutboxFailed],
		})
	}
}
