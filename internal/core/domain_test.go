package core

import (
	"errors"
	"testing"
	"time"
)

func validExpense() LedgerEntry {
	return LedgerEntry{
		BudgetID: 1,
		Type:     Expense,
		Title:    "groceries",
		Amount:   Money{Cents: 1500},
		Date:     date(2024, 1, 10),
		Status:   StatusPtr(Instant),
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -50}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestLedgerEntryValidate(t *testing.T) {
	end := date(2024, 12, 31)

	cases := []struct {
		name    string
		mutate  func(*LedgerEntry)
		wantErr error
	}{
		{"valid instant expense", func(e *LedgerEntry) {}, nil},
		{"zero amount", func(e *LedgerEntry) { e.Amount.Cents = 0 }, ErrInvalidAmount},
		{"blank title", func(e *LedgerEntry) { e.Title = "  " }, ErrEmptyTitle},
		{"zero date", func(e *LedgerEntry) { e.Date = time.Time{} }, ErrZeroDate},
		{"missing status", func(e *LedgerEntry) { e.Status = nil }, ErrInvalidStatus},
		{"bad status", func(e *LedgerEntry) { e.Status = StatusPtr("someday") }, ErrInvalidStatus},
		{"bad payment method", func(e *LedgerEntry) { e.PaymentMethod = PaymentPtr("cheque") }, ErrInvalidPayment},
		{
			"recurring without frequency",
			func(e *LedgerEntry) { e.Status = StatusPtr(Recurring) },
			ErrFrequencyMissing,
		},
		{
			"recurring with bad frequency",
			func(e *LedgerEntry) {
				e.Status = StatusPtr(Recurring)
				e.Frequency = FrequencyPtr("hourly")
			},
			ErrInvalidFrequency,
		},
		{
			"instant with frequency",
			func(e *LedgerEntry) { e.Frequency = FrequencyPtr(Monthly) },
			ErrUnexpectedFields,
		},
		{
			"planned with end date",
			func(e *LedgerEntry) {
				e.Status = StatusPtr(Planned)
				e.EndDate = &end
			},
			ErrUnexpectedFields,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validExpense()
			tc.mutate(&e)
			err := e.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLedgerEntryValidate_Income(t *testing.T) {
	income := LedgerEntry{
		BudgetID: 1,
		Type:     Income,
		Title:    "salary",
		Amount:   Money{Cents: 100000},
		Date:     date(2024, 1, 1),
	}
	if err := income.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	income.Status = StatusPtr(Instant)
	if !errors.Is(income.Validate(), ErrUnexpectedFields) {
		t.Fatalf("income with status should be rejected")
	}
}

func TestLedgerEntryValidate_RecurringWithEndDate(t *testing.T) {
	e := validExpense()
	e.Status = StatusPtr(Recurring)
	e.Frequency = FrequencyPtr(Weekly)
	end := date(2025, 1, 1)
	e.EndDate = &end
	if err := e.Validate(); err != nil {
		t.Fatalf("recurring with end date should validate, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	end := date(2024, 12, 31)

	t.Run("instant drops recurrence fields", func(t *testing.T) {
		e := validExpense()
		e.Frequency = FrequencyPtr(Monthly)
		e.EndDate = &end
		e.Normalize()
		if e.Frequency != nil || e.EndDate != nil {
			t.Fatalf("instant expense kept recurrence fields: %+v", e)
		}
	})

	t.Run("recurring keeps recurrence fields", func(t *testing.T) {
		e := validExpense()
		e.Status = StatusPtr(Recurring)
		e.Frequency = FrequencyPtr(Monthly)
		e.EndDate = &end
		e.Normalize()
		if e.Frequency == nil || e.EndDate == nil {
			t.Fatalf("recurring expense lost recurrence fields: %+v", e)
		}
	})

	t.Run("income drops all expense fields", func(t *testing.T) {
		e := validExpense()
		e.Type = Income
		e.Normalize()
		if e.Status != nil || e.CategoryID != nil || e.PaymentMethod != nil {
			t.Fatalf("income kept expense fields: %+v", e)
		}
	})
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2024, 6, 15, 23, 45, 12, 999, time.UTC)
	got := DateOnly(ts)
	if got != date(2024, 6, 15) {
		t.Fatalf("DateOnly(%v) = %v", ts, got)
	}
}
