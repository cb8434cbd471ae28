package billing

import (
	"fmt"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
)

// ComputeWindow returns the payment window of cardID for a purchase made on ref.
// A card missing from the catalog yields ErrNotConfigured.
func (c *Catalog) ComputeWindow(cardID string, ref time.Time) (domain.PaymentWindow, error) {
	cycle, ok := c.Lookup(cardID)
	if !ok {
		return domain.PaymentWindow{}, fmt.Errorf("%w: %s", ErrNotConfigured, domain.NormalizeCardID(cardID))
	}
	return WindowFor(cycle, ref), nil
}

// WindowFor computes the window of one cycle.
//
// A purchase on the cut day itself still belongs to this month's cut; any
// later day rolls to next month's cut. The due date sits DueOffset months
// after the cut month and is pushed one more month when it would not fall
// strictly after the cut, so CutDate < DueDate holds for every config.
func WindowFor(cycle domain.CycleConfig, ref time.Time) domain.PaymentWindow {
	today := CalendarDay(ref)

	cut := DayInMonth(today.Year(), today.Month(), cycle.CutDay)
	if today.After(cut) {
		cut = DayInMonth(today.Year(), today.Month()+1, cycle.CutDay)
	}

	dueMonth := cut.Month() + time.Month(cycle.DueOffset)
	due := DayInMonth(cut.Year(), dueMonth, cycle.DueDay)
	if !due.After(cut) {
		due = DayInMonth(cut.Year(), dueMonth+1, cycle.DueDay)
	}

	days := DaysBetween(today, due)
	if days < 0 {
		days = 0
	}

	return domain.PaymentWindow{
		CardID:    cycle.CardID,
		CutDate:   cut,
		DueDate:   due,
		DaysToPay: days,
		Cycle:     cycle,
	}
}
