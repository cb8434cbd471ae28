package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Purchase intent
// ============================================================

// PurchaseDateLayout is the day/month/year layout written to the sheet.
const PurchaseDateLayout = "02/01/2006"

// MaxInstallments is the longest installment plan a purchase may declare.
const MaxInstallments = 60

// PurchaseDraft is the body sent by the chat front end on PUT .../pending.
// The front end already parsed the user's command; fields are validated again here.
type PurchaseDraft struct {
	Amount      decimal.Decimal `json:"amount"`
	Months      int             `json:"months"`
	Bank        string          `json:"bank"`
	Description string          `json:"description"`
	User        string          `json:"user"`
}

// PurchaseIntent is a validated purchase. Built only by NewPurchaseIntent and
// never mutated afterwards.
type PurchaseIntent struct {
	Amount      decimal.Decimal `json:"amount"`
	Months      int             `json:"months"`
	Bank        string          `json:"bank"`
	Description string          `json:"description"`
	User        string          `json:"user"`
	Date        string          `json:"date"`
}

// NewPurchaseIntent validates a draft and stamps it with the creation date.
// now is converted to loc before formatting, so the date is the user's calendar day.
func NewPurchaseIntent(d PurchaseDraft, now time.Time, loc *time.Location) (PurchaseIntent, error) {
	if !d.Amount.IsPositive() {
		return PurchaseIntent{}, &ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if d.Months < 1 || d.Months > MaxInstallments {
		return PurchaseIntent{}, &ErrValidation{Field: "months", Message: "must be between 1 and 60"}
	}
	bank := NormalizeCardID(d.Bank)
	if bank == "" {
		return PurchaseIntent{}, &ErrValidation{Field: "bank", Message: "required"}
	}
	desc := strings.TrimSpace(d.Description)
	if desc == "" {
		return PurchaseIntent{}, &ErrValidation{Field: "description", Message: "required"}
	}
	user := strings.TrimSpace(d.User)
	if user == "" {
		return PurchaseIntent{}, &ErrValidation{Field: "user", Message: "required"}
	}
	if loc == nil {
		loc = time.UTC
	}

	return PurchaseIntent{
		Amount:      d.Amount,
		Months:      d.Months,
		Bank:        bank,
		Description: desc,
		User:        user,
		Date:        now.In(loc).Format(PurchaseDateLayout),
	}, nil
}

// NormalizeCardID trims and upper-cases a card identifier.
func NormalizeCardID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ============================================================
// Pending confirmation
// ============================================================

// PendingKey identifies the requester: one pending purchase per chat and user.
type PendingKey struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// Stage is the non-terminal state of a pending confirmation.
type Stage string

const (
	StagePreview Stage = "PREVIEW"
	StageWarned  Stage = "WARNED"
)

// PendingConfirmation is a purchase awaiting explicit approval.
type PendingConfirmation struct {
	ID        string         `json:"id"`
	Key       PendingKey     `json:"key"`
	Purchase  PurchaseIntent `json:"purchase"`
	CreatedAt time.Time      `json:"createdAt"`
	Stage     Stage          `json:"stage"`
}

// Expired reports whether the entry is older than ttl at now.
func (p PendingConfirmation) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}

// ============================================================
// Outbound row
// ============================================================

// PurchaseRow is one spreadsheet row. Derived financial columns (balance,
// monthly payment, start/end) are computed by the sheet itself.
type PurchaseRow struct {
	Description string
	User        string
	Date        string
	Status      string
	Amount      decimal.Decimal
	Months      int
	Bank        string
}

// NewPurchaseRow maps a confirmed purchase to its row.
func NewPurchaseRow(p PurchaseIntent, status string) PurchaseRow {
	return PurchaseRow{
		Description: p.Description,
		User:        p.User,
		Date:        p.Date,
		Status:      status,
		Amount:      p.Amount,
		Months:      p.Months,
		Bank:        p.Bank,
	}
}

// Values returns the row cells in sheet column order.
func (r PurchaseRow) Values() []any {
	return []any{
		r.Description,
		r.User,
		r.Date,
		r.Status,
		r.Amount.StringFixed(2),
		r.Months,
		r.Bank,
	}
}

// ============================================================
// Workflow payloads
// ============================================================

// Outcome status values returned to the front end.
const (
	OutcomeCommitted = "committed"
	OutcomeWarned    = "warned"
	OutcomeCancelled = "cancelled"
)

// Preview is returned when a purchase enters (or is read back from) the pending state.
type Preview struct {
	PendingID string          `json:"pendingId"`
	Stage     Stage           `json:"stage"`
	Purchase  PurchaseIntent  `json:"purchase"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Exempt    bool            `json:"exempt"`
	Window    *WindowResponse `json:"window,omitempty"`
}

// Outcome is the result of confirm / confirm-anyway / cancel.
type Outcome struct {
	Status       string           `json:"status"`
	Message      string           `json:"message"`
	PendingID    string           `json:"pendingId"`
	Purchase     PurchaseIntent   `json:"purchase"`
	Window       *WindowResponse  `json:"window,omitempty"`
	Alternatives []WindowResponse `json:"alternatives,omitempty"`
}
