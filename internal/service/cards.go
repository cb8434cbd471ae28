package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/billing"
	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/card-advisor-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReferenceDateLayout is the layout of the ?date= query parameter.
const ReferenceDateLayout = "2006-01-02"

// CardService answers read-only questions about the card catalog.
type CardService struct {
	advisor *billing.Advisor
	cache   port.Cache[domain.RankingResponse]
	loc     *time.Location
	clock   func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCardService creates the catalog query service. A nil clock uses time.Now.
func NewCardService(
	advisor *billing.Advisor,
	cache port.Cache[domain.RankingResponse],
	loc *time.Location,
	clock func() time.Time,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CardService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &CardService{
		advisor: advisor,
		cache:   cache,
		loc:     loc,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// ParseReference parses a YYYY-MM-DD date in the configured zone.
// An empty string means today.
func (s *CardService) ParseReference(raw string) (time.Time, error) {
	if raw == "" {
		return s.clock().In(s.loc), nil
	}
	ref, err := time.ParseInLocation(ReferenceDateLayout, raw, s.loc)
	if err != nil {
		return time.Time{}, &domain.ErrValidation{Field: "date", Message: "expected YYYY-MM-DD"}
	}
	return ref, nil
}

// CatalogSize returns the number of configured cards.
func (s *CardService) CatalogSize() int { return s.advisor.Catalog().Len() }

// Window returns the payment window of one card. Unknown cards yield an
// error wrapping billing.ErrNotConfigured; exempt cards have no window and
// yield *domain.ErrNotFound.
func (s *CardService) Window(ctx context.Context, cardID string, ref time.Time) (*domain.WindowResponse, error) {
	_, span := tracer.Start(ctx, "CardService.Window")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	if s.advisor.IsExempt(cardID) {
		return nil, &domain.ErrNotFound{Resource: "payment window", ID: domain.NormalizeCardID(cardID)}
	}

	w, err := s.advisor.Catalog().ComputeWindow(cardID, ref)
	if err != nil {
		return nil, err
	}
	resp := domain.NewWindowResponse(ref, w)
	return &resp, nil
}

// Ranking ranks every non-exempt card not in exclude. Results are cached per
// reference day and exclusion set.
func (s *CardService) Ranking(ctx context.Context, ref time.Time, exclude []string) (*domain.RankingResponse, error) {
	_, span := tracer.Start(ctx, "CardService.Ranking")
	defer span.End()

	cacheKey := rankingCacheKey(ref, exclude)
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit()
		// Entries are shared; callers get their own Cards slice.
		cached.Cards = cloneCards(cached.Cards)
		return &cached, nil
	}
	s.metrics.IncrCacheMiss()

	ranking := s.advisor.Rank(ref, exclude...)
	resp := domain.RankingResponse{
		Reference: ref.Format(ReferenceDateLayout),
		Cards:     make([]domain.WindowResponse, 0, len(ranking)),
	}
	for _, rc := range ranking {
		resp.Cards = append(resp.Cards, domain.NewWindowResponse(ref, rc.Window))
	}

	s.cache.Set(cacheKey, domain.RankingResponse{
		Reference: resp.Reference,
		Cards:     cloneCards(resp.Cards),
	})
	s.logger.Debug("ranking computed",
		zap.String("reference", resp.Reference),
		zap.Int("cards", len(resp.Cards)),
	)
	return &resp, nil
}

func cloneCards(cards []domain.WindowResponse) []domain.WindowResponse {
	out := make([]domain.WindowResponse, len(cards))
	copy(out, cards)
	return out
}

func rankingCacheKey(ref time.Time, exclude []string) string {
	ids := make([]string, 0, len(exclude))
	for _, id := range exclude {
		if id = domain.NormalizeCardID(id); id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return fmt.Sprintf("ranking:%s:%s", ref.Format(ReferenceDateLayout), strings.Join(ids, ","))
}
