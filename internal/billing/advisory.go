package billing

import (
	"errors"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
)

// DefaultThresholdDays is the minimum advantage, in days, that makes a
// better card worth mentioning.
const DefaultThresholdDays = 5

// DefaultTopAlternatives caps how many alternatives a warning lists.
const DefaultTopAlternatives = 3

// ShouldWarn reports whether the best card in ranking beats chosen by at
// least thresholdDays. The comparison is inclusive and an empty ranking
// never warns.
func ShouldWarn(chosen domain.PaymentWindow, ranking []domain.RankedCard, thresholdDays int) bool {
	if len(ranking) == 0 {
		return false
	}
	return ranking[0].Window.DaysToPay >= chosen.DaysToPay+thresholdDays
}

// Advice is the verdict for one card on one day.
type Advice struct {
	CardID     string
	Exempt     bool
	Configured bool
	Window     domain.PaymentWindow
	// Ranking holds every other eligible card, best first.
	Ranking []domain.RankedCard
	Warn    bool
}

// Alternatives returns the first n entries of the ranking.
func (a Advice) Alternatives(n int) []domain.RankedCard {
	if n <= 0 || len(a.Ranking) == 0 {
		return nil
	}
	if n > len(a.Ranking) {
		n = len(a.Ranking)
	}
	return a.Ranking[:n]
}

// Advisor combines the catalog, the exempt set and the warning policy.
type Advisor struct {
	catalog       *Catalog
	exempt        ExemptSet
	thresholdDays int
	top           int
}

// NewAdvisor builds an advisor. A non-positive top falls back to
// DefaultTopAlternatives; thresholdDays is used as given.
func NewAdvisor(catalog *Catalog, exempt ExemptSet, thresholdDays, top int) *Advisor {
	if exempt == nil {
		exempt = ExemptSet{}
	}
	if top <= 0 {
		top = DefaultTopAlternatives
	}
	return &Advisor{catalog: catalog, exempt: exempt, thresholdDays: thresholdDays, top: top}
}

// Catalog exposes the underlying catalog for read-only queries.
func (a *Advisor) Catalog() *Catalog { return a.catalog }

// Top returns how many alternatives a warning lists.
func (a *Advisor) Top() int { return a.top }

// ThresholdDays returns the configured warning threshold.
func (a *Advisor) ThresholdDays() int { return a.thresholdDays }

// IsExempt reports whether cardID skips the advisory.
func (a *Advisor) IsExempt(cardID string) bool { return a.exempt.Contains(cardID) }

// ExemptIDs lists the exempt cards.
func (a *Advisor) ExemptIDs() []string { return a.exempt.IDs() }

// Evaluate applies the policy to a purchase on cardID made on ref.
// Exempt and unconfigured cards never warn and carry no ranking.
func (a *Advisor) Evaluate(cardID string, ref time.Time) Advice {
	id := domain.NormalizeCardID(cardID)
	adv := Advice{CardID: id}

	if a.exempt.Contains(id) {
		adv.Exempt = true
		return adv
	}

	w, err := a.catalog.ComputeWindow(id, ref)
	if errors.Is(err, ErrNotConfigured) {
		return adv
	}
	adv.Configured = true
	adv.Window = w

	exclude := append(a.exempt.IDs(), id)
	adv.Ranking = a.catalog.Rank(ref, exclude...)
	adv.Warn = ShouldWarn(w, adv.Ranking, a.thresholdDays)
	return adv
}

// Rank ranks every non-exempt card for ref, skipping exclude.
func (a *Advisor) Rank(ref time.Time, exclude ...string) []domain.RankedCard {
	return a.catalog.Rank(ref, append(a.exempt.IDs(), exclude...)...)
}
