// Package billing computes interest-free payment windows for credit cards
// and ranks cards by how long a purchase made today can wait to be paid.
//
// Everything here is a pure function of the catalog and the reference date:
// no clocks are read and nothing is cached.
package billing

import (
	"errors"
	"fmt"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
)

// ErrNotConfigured signals a card without a cycle definition.
// It is a routing signal (skip the advisory and commit), not a failure.
var ErrNotConfigured = errors.New("card cycle not configured")

// Catalog is the immutable, ordered set of card cycles.
// Order is the configuration order and breaks ranking ties.
type Catalog struct {
	cycles []domain.CycleConfig
	index  map[string]int
}

// NewCatalog validates and normalizes the given cycles.
// Card ids are upper-cased; duplicates and out-of-range days are rejected.
func NewCatalog(cycles []domain.CycleConfig) (*Catalog, error) {
	c := &Catalog{
		cycles: make([]domain.CycleConfig, 0, len(cycles)),
		index:  make(map[string]int, len(cycles)),
	}
	for i, cy := range cycles {
		cy.CardID = domain.NormalizeCardID(cy.CardID)
		if err := validateCycle(cy); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if _, dup := c.index[cy.CardID]; dup {
			return nil, &domain.ErrValidation{Field: "cards[" + cy.CardID + "]", Message: "duplicate card id"}
		}
		c.index[cy.CardID] = len(c.cycles)
		c.cycles = append(c.cycles, cy)
	}
	return c, nil
}

func validateCycle(cy domain.CycleConfig) error {
	switch {
	case cy.CardID == "":
		return &domain.ErrValidation{Field: "id", Message: "required"}
	case cy.CutDay < 1 || cy.CutDay > 31:
		return &domain.ErrValidation{Field: "cut_day", Message: fmt.Sprintf("%d out of range 1-31 for %s", cy.CutDay, cy.CardID)}
	case cy.DueDay < 1 || cy.DueDay > 31:
		return &domain.ErrValidation{Field: "due_day", Message: fmt.Sprintf("%d out of range 1-31 for %s", cy.DueDay, cy.CardID)}
	case cy.DueOffset != 0 && cy.DueOffset != 1:
		return &domain.ErrValidation{Field: "due_offset", Message: fmt.Sprintf("%d must be 0 or 1 for %s", cy.DueOffset, cy.CardID)}
	}
	return nil
}

// Lookup returns the cycle of a card (case-insensitive).
func (c *Catalog) Lookup(cardID string) (domain.CycleConfig, bool) {
	i, ok := c.index[domain.NormalizeCardID(cardID)]
	if !ok {
		return domain.CycleConfig{}, false
	}
	return c.cycles[i], true
}

// Cycles returns a copy of the catalog in configuration order.
func (c *Catalog) Cycles() []domain.CycleConfig {
	out := make([]domain.CycleConfig, len(c.cycles))
	copy(out, c.cycles)
	return out
}

// Len returns the number of configured cards.
func (c *Catalog) Len() int { return len(c.cycles) }

// ExemptSet holds cards that skip cycle validation (debit, non-revolving).
type ExemptSet map[string]struct{}

// NewExemptSet builds a set from card ids, normalizing case.
func NewExemptSet(ids ...string) ExemptSet {
	s := make(ExemptSet, len(ids))
	for _, id := range ids {
		if id = domain.NormalizeCardID(id); id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Contains reports whether cardID is exempt.
func (s ExemptSet) Contains(cardID string) bool {
	_, ok := s[domain.NormalizeCardID(cardID)]
	return ok
}

// IDs returns the exempt ids (unordered).
func (s ExemptSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}
