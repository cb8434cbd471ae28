package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/billing"
	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/pending"
	"github.com/boddenberg/card-advisor-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// DefaultRowStatus is written to the status column of every new row.
const DefaultRowStatus = "Activo"

// ConfirmationConfig groups the tunables of the workflow.
type ConfirmationConfig struct {
	TTL       time.Duration
	Location  *time.Location
	RowStatus string
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// ConfirmationService drives a purchase from intent to spreadsheet row:
// PREVIEW → (WARNED) → COMMITTED, or CANCELLED / EXPIRED at any point.
type ConfirmationService struct {
	advisor   *billing.Advisor
	store     *pending.Store
	recorder  port.PurchaseRecorder
	ttl       time.Duration
	loc       *time.Location
	rowStatus string
	clock     func() time.Time
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewConfirmationService creates the workflow service with all dependencies injected.
func NewConfirmationService(
	advisor *billing.Advisor,
	store *pending.Store,
	recorder port.PurchaseRecorder,
	cfg ConfirmationConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ConfirmationService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RowStatus == "" {
		cfg.RowStatus = DefaultRowStatus
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &ConfirmationService{
		advisor:   advisor,
		store:     store,
		recorder:  recorder,
		ttl:       cfg.TTL,
		loc:       cfg.Location,
		rowStatus: cfg.RowStatus,
		clock:     cfg.Clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// TTL returns how long a pending confirmation stays actionable.
func (s *ConfirmationService) TTL() time.Duration { return s.ttl }

// PendingCount returns the number of held confirmations, expired or not.
func (s *ConfirmationService) PendingCount() int { return s.store.Len() }

// Begin validates a new purchase and holds it as PREVIEW, replacing whatever
// the same chat and user had pending.
func (s *ConfirmationService) Begin(ctx context.Context, key domain.PendingKey, draft domain.PurchaseDraft) (*domain.Preview, error) {
	_, span := tracer.Start(ctx, "ConfirmationService.Begin")
	defer span.End()
	span.SetAttributes(attribute.String("chat.id", key.ChatID), attribute.String("user.id", key.UserID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("begin", time.Since(start)) }()

	now := s.clock()
	intent, err := domain.NewPurchaseIntent(draft, now, s.loc)
	if err != nil {
		return nil, err
	}

	p := s.store.Put(key, intent, now)
	span.SetAttributes(attribute.String("pending.id", p.ID))

	s.logger.Info("purchase pending confirmation",
		zap.String("chat_id", key.ChatID),
		zap.String("user_id", key.UserID),
		zap.String("pending_id", p.ID),
		zap.String("bank", intent.Bank),
		zap.String("amount", intent.Amount.StringFixed(2)),
	)
	return s.preview(p, now), nil
}

// Pending returns the live pending confirmation of key.
func (s *ConfirmationService) Pending(ctx context.Context, key domain.PendingKey) (*domain.Preview, error) {
	_, span := tracer.Start(ctx, "ConfirmationService.Pending")
	defer span.End()

	now := s.clock()
	p, res := s.store.Lookup(key, now, s.ttl)
	if err := s.lookupError(key, p, res, now); err != nil {
		return nil, err
	}
	return s.preview(p, now), nil
}

// Confirm approves the pending purchase. A PREVIEW entry is checked against
// the other cards once: when a clearly better card exists the entry moves to
// WARNED and nothing is written. A WARNED entry, an exempt card or a card
// without cycle data is committed.
func (s *ConfirmationService) Confirm(ctx context.Context, key domain.PendingKey) (*domain.Outcome, error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.Confirm")
	defer span.End()

	return s.confirm(ctx, key, "confirm")
}

// ConfirmAnyway commits a WARNED entry. On a PREVIEW entry the user has not
// been warned yet, so it behaves exactly like Confirm.
func (s *ConfirmationService) ConfirmAnyway(ctx context.Context, key domain.PendingKey) (*domain.Outcome, error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.ConfirmAnyway")
	defer span.End()

	return s.confirm(ctx, key, "confirm_anyway")
}

// Cancel discards the pending purchase.
func (s *ConfirmationService) Cancel(ctx context.Context, key domain.PendingKey) (*domain.Outcome, error) {
	_, span := tracer.Start(ctx, "ConfirmationService.Cancel")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("cancel", time.Since(start)) }()

	now := s.clock()
	p, res := s.store.Decide(key, now, s.ttl, func(domain.PendingConfirmation) pending.Decision {
		return pending.Take
	})
	if err := s.lookupError(key, p, res, now); err != nil {
		return nil, err
	}

	s.metrics.IncrOutcome(domain.OutcomeCancelled)
	s.logger.Info("purchase cancelled",
		zap.String("chat_id", key.ChatID),
		zap.String("user_id", key.UserID),
		zap.String("pending_id", p.ID),
	)
	return &domain.Outcome{
		Status:    domain.OutcomeCancelled,
		Message:   fmt.Sprintf("Compra cancelada: %s.", p.Purchase.Description),
		PendingID: p.ID,
		Purchase:  p.Purchase,
	}, nil
}

func (s *ConfirmationService) confirm(ctx context.Context, key domain.PendingKey, op string) (*domain.Outcome, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(op, time.Since(start)) }()

	now := s.clock()
	ref := now.In(s.loc)

	// ── Read, decide and write under one store lock ──
	var (
		advice   billing.Advice
		decision pending.Decision
	)
	p, res := s.store.Decide(key, now, s.ttl, func(cur domain.PendingConfirmation) pending.Decision {
		if cur.Stage == domain.StageWarned {
			decision = pending.Take
			return decision
		}
		advice = s.advisor.Evaluate(cur.Purchase.Bank, ref)
		decision = pending.Take
		if advice.Warn {
			decision = pending.Warn
		}
		return decision
	})
	if err := s.lookupError(key, p, res, now); err != nil {
		return nil, err
	}

	if decision == pending.Warn {
		return s.warned(p, ref, advice), nil
	}
	return s.commit(ctx, p, ref, advice)
}

// commit writes the row outside the store lock. The entry was already taken,
// so no concurrent action can commit it a second time; on failure it is put
// back for a retry.
func (s *ConfirmationService) commit(ctx context.Context, p domain.PendingConfirmation, ref time.Time, advice billing.Advice) (*domain.Outcome, error) {
	row := domain.NewPurchaseRow(p.Purchase, s.rowStatus)
	if err := s.recorder.AppendPurchase(ctx, row); err != nil {
		restored := s.store.Restore(p)
		s.metrics.IncrPersistenceError()
		var ext *domain.ErrExternalService
		if errors.As(err, &ext) {
			s.metrics.IncrExternalError(ext.Service)
		}
		s.logger.Error("purchase append failed",
			zap.String("chat_id", p.Key.ChatID),
			zap.String("user_id", p.Key.UserID),
			zap.String("pending_id", p.ID),
			zap.Bool("restored", restored),
			zap.Error(err),
		)
		return nil, &domain.ErrPersistence{PendingID: p.ID, Retryable: restored, Err: err}
	}

	s.metrics.IncrOutcome(domain.OutcomeCommitted)
	s.logger.Info("purchase committed",
		zap.String("chat_id", p.Key.ChatID),
		zap.String("user_id", p.Key.UserID),
		zap.String("pending_id", p.ID),
		zap.String("stage", string(p.Stage)),
		zap.String("bank", p.Purchase.Bank),
	)

	out := &domain.Outcome{
		Status:    domain.OutcomeCommitted,
		Message:   committedMessage(p.Purchase),
		PendingID: p.ID,
		Purchase:  p.Purchase,
	}
	if advice.Configured {
		w := domain.NewWindowResponse(ref, advice.Window)
		out.Window = &w
	}
	return out, nil
}

func (s *ConfirmationService) warned(p domain.PendingConfirmation, ref time.Time, advice billing.Advice) *domain.Outcome {
	s.metrics.IncrOutcome(domain.OutcomeWarned)

	alts := advice.Alternatives(s.advisor.Top())
	best := alts[0]
	s.logger.Info("purchase held: better card available",
		zap.String("chat_id", p.Key.ChatID),
		zap.String("user_id", p.Key.UserID),
		zap.String("pending_id", p.ID),
		zap.String("chosen", advice.CardID),
		zap.Int("chosen_days", advice.Window.DaysToPay),
		zap.String("best", best.CardID),
		zap.Int("best_days", best.Window.DaysToPay),
	)

	w := domain.NewWindowResponse(ref, advice.Window)
	out := &domain.Outcome{
		Status: domain.OutcomeWarned,
		Message: fmt.Sprintf(
			"Con %s tienes %d días para pagar; con %s tendrías %d. Confirma de todos modos o cancela.",
			advice.CardID, advice.Window.DaysToPay, best.CardID, best.Window.DaysToPay,
		),
		PendingID:    p.ID,
		Purchase:     p.Purchase,
		Window:       &w,
		Alternatives: make([]domain.WindowResponse, 0, len(alts)),
	}
	for _, alt := range alts {
		out.Alternatives = append(out.Alternatives, domain.NewWindowResponse(ref, alt.Window))
	}
	return out
}

// lookupError maps a non-Found lookup to the workflow error.
func (s *ConfirmationService) lookupError(key domain.PendingKey, p domain.PendingConfirmation, res pending.Lookup, now time.Time) error {
	switch res {
	case pending.Missing:
		return &domain.ErrNoPendingEntry{Key: key}
	case pending.Expired:
		s.metrics.IncrExpired(observability.ExpiryLazy, 1)
		s.logger.Info("pending confirmation expired",
			zap.String("chat_id", key.ChatID),
			zap.String("user_id", key.UserID),
			zap.String("pending_id", p.ID),
		)
		return &domain.ErrExpired{Key: key, PendingID: p.ID, Age: now.Sub(p.CreatedAt)}
	}
	return nil
}

func (s *ConfirmationService) preview(p domain.PendingConfirmation, now time.Time) *domain.Preview {
	out := &domain.Preview{
		PendingID: p.ID,
		Stage:     p.Stage,
		Purchase:  p.Purchase,
		ExpiresAt: p.CreatedAt.Add(s.ttl),
		Exempt:    s.advisor.IsExempt(p.Purchase.Bank),
	}
	if out.Exempt {
		return out
	}
	ref := now.In(s.loc)
	if w, err := s.advisor.Catalog().ComputeWindow(p.Purchase.Bank, ref); err == nil {
		wr := domain.NewWindowResponse(ref, w)
		out.Window = &wr
	}
	return out
}

func committedMessage(p domain.PurchaseIntent) string {
	if p.Months == 1 {
		return fmt.Sprintf("Compra registrada: %s por %s con %s.", p.Description, p.Amount.StringFixed(2), p.Bank)
	}
	return fmt.Sprintf("Compra registrada: %s por %s en %d cuotas con %s.", p.Description, p.Amount.StringFixed(2), p.Months, p.Bank)
}
