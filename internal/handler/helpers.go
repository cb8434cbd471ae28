package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/card-advisor-bfa-go/internal/billing"
	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Response helpers
// ============================================================

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// pendingKey builds the requester key from the route.
func pendingKey(r *http.Request) (domain.PendingKey, error) {
	key := domain.PendingKey{
		ChatID: chi.URLParam(r, "chatId"),
		UserID: chi.URLParam(r, "userId"),
	}
	if key.ChatID == "" {
		return key, &domain.ErrValidation{Field: "chatId", Message: "required"}
	}
	if key.UserID == "" {
		return key, &domain.ErrValidation{Field: "userId", Message: "required"}
	}
	return key, nil
}

// handleServiceError maps domain errors to HTTP statuses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var noPending *domain.ErrNoPendingEntry
	var expired *domain.ErrExpired
	var persistence *domain.ErrPersistence
	var notFound *domain.ErrNotFound
	var unauthorized *domain.ErrUnauthorized
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &noPending):
		logger.Debug("nothing pending", zap.String("chat_id", noPending.Key.ChatID), zap.String("user_id", noPending.Key.UserID))
		writeError(w, http.StatusNotFound, "No hay ninguna compra pendiente de confirmación.")
	case errors.As(err, &expired):
		logger.Debug("pending expired", zap.String("pending_id", expired.PendingID), zap.Duration("age", expired.Age))
		writeError(w, http.StatusGone, "La confirmación expiró. Registra la compra de nuevo.")
	case errors.As(err, &persistence):
		logger.Warn("persistence error",
			zap.String("pending_id", persistence.PendingID),
			zap.Bool("retryable", persistence.Retryable),
			zap.Error(err),
		)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:     "No se pudo registrar la compra. Intenta confirmar de nuevo.",
			Retryable: persistence.Retryable,
		})
	case errors.Is(err, billing.ErrNotConfigured):
		logger.Debug("card not configured", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
