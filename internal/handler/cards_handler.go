package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/card-advisor-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// GET /v1/cards/ranking?date=YYYY-MM-DD&exclude=NU,BBVA
func rankingHandler(svc *service.CardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.Ranking")
		defer span.End()

		ref, err := svc.ParseReference(r.URL.Query().Get("date"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var exclude []string
		if raw := r.URL.Query().Get("exclude"); raw != "" {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					exclude = append(exclude, id)
				}
			}
		}

		resp, err := svc.Ranking(ctx, ref, exclude)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("ranking.size", len(resp.Cards)))
		writeJSON(w, http.StatusOK, resp)
	}
}

// GET /v1/cards/{cardId}/window?date=YYYY-MM-DD
func windowHandler(svc *service.CardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.Window")
		defer span.End()

		cardID := chi.URLParam(r, "cardId")
		span.SetAttributes(attribute.String("card.id", cardID))

		ref, err := svc.ParseReference(r.URL.Query().Get("date"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := svc.Window(ctx, cardID, ref)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
