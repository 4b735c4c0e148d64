package core

import (
	"errors"
	"strings"
	"time"
)

// Entry types stored in the ledger.
const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

// Expense statuses.
const (
	Instant   ExpenseStatus = "instant"
	Recurring ExpenseStatus = "recurring"
	Planned   ExpenseStatus = "planned"
)

// Recurrence frequencies.
const (
	Weekly   Frequency = "weekly"
	BiWeekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Yearly   Frequency = "yearly"
)

// Payment methods.
const (
	Cash     PaymentMethod = "cash"
	Card     PaymentMethod = "card"
	Blik     PaymentMethod = "blik"
	Transfer PaymentMethod = "transfer"
	Other    PaymentMethod = "other"
)

// Budget membership roles.
const (
	Owner  Role = "owner"
	Member Role = "member"
)

type (
	EntryType     string
	ExpenseStatus string
	Frequency     string
	PaymentMethod string
	Role          string

	Money struct {
		Cents int64
	}

	Budget struct {
		ID   int64
		Name string
	}

	Membership struct {
		BudgetID int64
		UserID   int64
		Role     Role
	}

	// LedgerEntry is a single income or expense record attached to a budget.
	// Expense-only attributes are pointers and stay nil for incomes.
	LedgerEntry struct {
		ID       int64
		BudgetID int64

		Type   EntryType
		Title  string
		Amount Money
		Date   time.Time

		// Expense-only fields.
		CategoryID      *int64
		PaymentMethod   *PaymentMethod
		Status          *ExpenseStatus
		Frequency       *Frequency
		EndDate         *time.Time
		ReceiptImageURL *string

		CreatedAt       time.Time
		CreatedByUserID int64
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyTitle        = errors.New("empty title")
	ErrZeroDate          = errors.New("date cannot be zero")
	ErrInvalidType       = errors.New("invalid entry type")
	ErrInvalidStatus     = errors.New("invalid expense status")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidPayment    = errors.New("invalid payment method")
	ErrFrequencyMissing  = errors.New("recurring expense requires a frequency")
	ErrUnexpectedFields  = errors.New("entry carries fields its type or status does not allow")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (s ExpenseStatus) Valid() bool {
	switch s {
	case Instant, Recurring, Planned:
		return true
	}
	return false
}

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, BiWeekly, Monthly, Yearly:
		return true
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case Cash, Card, Blik, Transfer, Other:
		return true
	}
	return false
}

// Validate checks the internal consistency rules for a ledger entry:
// positive amount, non-empty title, a real date, and for expenses the
// status/frequency pairing (recurring entries always carry a frequency,
// instant and planned entries never do).
func (e LedgerEntry) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if e.Date.IsZero() {
		return ErrZeroDate
	}

	switch e.Type {
	case Income:
		// Incomes never carry expense attributes.
		if e.Status != nil || e.Frequency != nil || e.CategoryID != nil ||
			e.PaymentMethod != nil || e.EndDate != nil {
			return ErrUnexpectedFields
		}
		return nil
	case Expense:
	default:
		return ErrInvalidType
	}

	if e.Status == nil || !e.Status.Valid() {
		return ErrInvalidStatus
	}
	if e.PaymentMethod != nil && !e.PaymentMethod.Valid() {
		return ErrInvalidPayment
	}

	switch *e.Status {
	case Recurring:
		if e.Frequency == nil {
			return ErrFrequencyMissing
		}
		if !e.Frequency.Valid() {
			return ErrInvalidFrequency
		}
	default:
		if e.Frequency != nil || e.EndDate != nil {
			return ErrUnexpectedFields
		}
	}

	return nil
}

// Normalize clears attributes that are meaningless for the entry's type or
// status. Instant and planned expenses drop frequency and end date even when
// a caller supplied them.
func (e *LedgerEntry) Normalize() {
	if e.Type == Income {
		e.Status = nil
		e.Frequency = nil
		e.EndDate = nil
		e.CategoryID = nil
		e.PaymentMethod = nil
		e.ReceiptImageURL = nil
		return
	}
	if e.Status != nil && *e.Status != Recurring {
		e.Frequency = nil
		e.EndDate = nil
	}
}

// DateOnly truncates t to its calendar day in UTC. Dueness comparisons work
// on whole days.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Helpers for building the optional expense fields.

func StatusPtr(s ExpenseStatus) *ExpenseStatus { return &s }

func FrequencyPtr(f Frequency) *Frequency { return &f }

func PaymentPtr(p PaymentMethod) *PaymentMethod { return &p }
