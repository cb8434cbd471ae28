package billing

import (
	"sort"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
)

// Rank returns every catalog card not in exclude, ordered by DaysToPay
// descending. Ties keep catalog order.
func (c *Catalog) Rank(ref time.Time, exclude ...string) []domain.RankedCard {
	skip := NewExemptSet(exclude...)

	ranking := make([]domain.RankedCard, 0, len(c.cycles))
	for _, cy := range c.cycles {
		if skip.Contains(cy.CardID) {
			continue
		}
		ranking = append(ranking, domain.RankedCard{CardID: cy.CardID, Window: WindowFor(cy, ref)})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Window.DaysToPay > ranking[j].Window.DaysToPay
	})
	return ranking
}
