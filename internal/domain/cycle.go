package domain

import "time"

// ============================================================
// Billing cycles
// ============================================================

// CycleConfig is the billing cycle of one card: the statement closes on
// CutDay and payment is due on DueDay, DueOffset months after the cut.
type CycleConfig struct {
	CardID    string `json:"cardId" mapstructure:"id"`
	CutDay    int    `json:"cutDay" mapstructure:"cut_day"`
	DueDay    int    `json:"dueDay" mapstructure:"due_day"`
	DueOffset int    `json:"dueOffset" mapstructure:"due_offset"`
}

// PaymentWindow is the window that applies to a purchase made on a given day.
// CutDate and DueDate are UTC midnights.
type PaymentWindow struct {
	CardID    string      `json:"cardId"`
	CutDate   time.Time   `json:"cutDate"`
	DueDate   time.Time   `json:"dueDate"`
	DaysToPay int         `json:"daysToPay"`
	Cycle     CycleConfig `json:"cycle"`
}

// RankedCard pairs a card with its window for one reference date.
type RankedCard struct {
	CardID string        `json:"cardId"`
	Window PaymentWindow `json:"window"`
}

// ============================================================
// API responses
// ============================================================

// WindowResponse is returned by GET /v1/cards/{cardId}/window.
type WindowResponse struct {
	CardID    string `json:"cardId"`
	Reference string `json:"referenceDate"`
	CutDate   string `json:"cutDate"`
	DueDate   string `json:"dueDate"`
	DaysToPay int    `json:"daysToPay"`
}

// RankingResponse is returned by GET /v1/cards/ranking.
type RankingResponse struct {
	Reference string           `json:"referenceDate"`
	Cards     []WindowResponse `json:"cards"`
}

// NewWindowResponse formats a window for the front end (dates as YYYY-MM-DD).
func NewWindowResponse(ref time.Time, w PaymentWindow) WindowResponse {
	return WindowResponse{
		CardID:    w.CardID,
		Reference: ref.Format("2006-01-02"),
		CutDate:   w.CutDate.Format("2006-01-02"),
		DueDate:   w.DueDate.Format("2006-01-02"),
		DaysToPay: w.DaysToPay,
	}
}
