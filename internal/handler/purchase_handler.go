package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/boddenberg/card-advisor-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Pending purchase confirmation
// /v1/chats/{chatId}/users/{userId}/pending
// ============================================================

func beginPurchaseHandler(svc *service.ConfirmationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.BeginPurchase")
		defer span.End()

		key, err := pendingKey(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("chat.id", key.ChatID), attribute.String("user.id", key.UserID))

		var draft domain.PurchaseDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		preview, err := svc.Begin(ctx, key, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("purchase awaiting confirmation",
			zap.String("caller", CallerFromContext(ctx)),
			zap.String("chat_id", key.ChatID),
			zap.String("user_id", key.UserID),
			zap.String("pending_id", preview.PendingID),
			zap.String("stage", string(preview.Stage)),
		)
		writeJSON(w, http.StatusCreated, preview)
	}
}

func getPendingHandler(svc *service.ConfirmationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.GetPending")
		defer span.End()

		key, err := pendingKey(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		preview, err := svc.Pending(ctx, key)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, preview)
	}
}

func confirmHandler(svc *service.ConfirmationService, logger *zap.Logger) http.HandlerFunc {
	return outcomeHandler("Handler.Confirm", svc.Confirm, logger)
}

func confirmAnywayHandler(svc *service.ConfirmationService, logger *zap.Logger) http.HandlerFunc {
	return outcomeHandler("Handler.ConfirmAnyway", svc.ConfirmAnyway, logger)
}

func cancelHandler(svc *service.ConfirmationService, logger *zap.Logger) http.HandlerFunc {
	return outcomeHandler("Handler.Cancel", svc.Cancel, logger)
}

type outcomeFunc func(ctx context.Context, key domain.PendingKey) (*domain.Outcome, error)

// outcomeHandler serves the three user actions; they share request and
// response shapes.
func outcomeHandler(spanName string, action outcomeFunc, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), spanName)
		defer span.End()

		key, err := pendingKey(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("chat.id", key.ChatID), attribute.String("user.id", key.UserID))

		out, err := action(ctx, key)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		caller := CallerFromContext(ctx)
		span.SetAttributes(attribute.String("caller", caller), attribute.String("outcome", out.Status))
		logger.Info("purchase action handled",
			zap.String("caller", caller),
			zap.String("chat_id", key.ChatID),
			zap.String("user_id", key.UserID),
			zap.String("pending_id", out.PendingID),
			zap.String("outcome", out.Status),
		)
		writeJSON(w, http.StatusOK, out)
	}
}
