package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// IncomeInput carries the caller-editable fields of an income entry.
type IncomeInput struct {
	Title  string
	Amount core.Money
	Date   time.Time // zero means "now" on add, "unchanged" on edit
}

// ExpenseInput carries the caller-editable fields of an expense entry.
type ExpenseInput struct {
	Title           string
	Amount          core.Money
	StartDate       *time.Time // nil means "now" on add, "unchanged" on edit
	CategoryID      *int64
	PaymentMethod   *core.PaymentMethod
	Status          core.ExpenseStatus
	Frequency       *core.Frequency
	EndDate         *time.Time
	ReceiptImageURL *string
}

// TransactionService is the only user-facing writer of the ledger. Every
// operation verifies budget membership first and enforces the non-negative
// balance invariant on expense writes.
type TransactionService struct {
	store ledger.Store
	now   func() time.Time
}

// NewTransactionService builds the service. now may be nil, in which case
// time.Now is used; tests inject a fixed clock.
func NewTransactionService(store ledger.Store, now func() time.Time) *TransactionService {
	if now == nil {
		now = time.Now
	}
	return &TransactionService{store: store, now: now}
}

func (s *TransactionService) requireMember(ctx context.Context, budgetID, userID int64) error {
	ok, err := s.store.IsMember(ctx, budgetID, userID)
	if err != nil {
		slog.ErrorContext(ctx, "Membership check failed",
			"budget_id", budgetID, "user_id", userID, "error", err)
		return ErrFetchFailed
	}
	if !ok {
		return ErrNoAccess
	}
	return nil
}

// failure passes typed failures through untouched and converts anything else
// (a persistence error) into fallback after logging it with correlation data.
func failure(ctx context.Context, err error, fallback *Failure, args ...any) error {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	slog.ErrorContext(ctx, "Ledger operation failed", append(args, "error", err)...)
	return fallback
}

// --- incomes ---

// AddIncome records an income for the budget. Incomes only increase the
// balance, so no balance check is made.
func (s *TransactionService) AddIncome(ctx context.Context, budgetID int64, in IncomeInput, userID int64) (*core.LedgerEntry, error) {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	e := core.LedgerEntry{
		BudgetID:        budgetID,
		Type:            core.Income,
		Title:           in.Title,
		Amount:          in.Amount,
		Date:            date,
		CreatedAt:       s.now(),
		CreatedByUserID: userID,
	}
	if err := e.Validate(); err != nil {
		return nil, invalidEntry(err)
	}

	err := s.store.Atomic(ctx, func(st ledger.Store) error {
		_, err := st.CreateEntry(ctx, &e)
		return err
	})
	if err != nil {
		return nil, failure(ctx, err, ErrCreateFailed,
			"budget_id", budgetID, "user_id", userID, "operation", "add_income")
	}

	slog.InfoContext(ctx, "Income added",
		"budget_id", budgetID, "entry_id", e.ID, "amount_cents", e.Amount.Cents)
	return &e, nil
}

// GetIncomeDetails fetches one income entry scoped to the budget.
func (s *TransactionService) GetIncomeDetails(ctx context.Context, budgetID, entryID, userID int64) (*core.LedgerEntry, error) {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return nil, err
	}
	e, err := s.store.GetEntry(ctx, budgetID, entryID, core.Income)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, incomeNotFound(entryID)
	}
	if err != nil {
		return nil, failure(ctx, err, ErrFetchFailed,
			"budget_id", budgetID, "entry_id", entryID)
	}
	return e, nil
}

// EditIncome overwrites an income's title, amount and date. Edits are
// unconditionally accepted: no balance re-check is made even when the
// amount shrinks, an inherited behavior of the original design.
func (s *TransactionService) EditIncome(ctx context.Context, budgetID, entryID int64, in IncomeInput, userID int64) (*core.LedgerEntry, error) {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return nil, err
	}

	var updated *core.LedgerEntry
	err := s.store.Atomic(ctx, func(st ledger.Store) error {
		e, err := st.GetEntry(ctx, budgetID, entryID, core.Income)
		if errors.Is(err, ledger.ErrNotFound) {
			return incomeNotFound(entryID)
		}
		if err != nil {
			return err
		}

		e.Title = in.Title
		e.Amount = in.Amount
		if !in.Date.IsZero() {
			e.Date = in.Date
		}
		if err := e.Validate(); err != nil {
			return invalidEntry(err)
		}
		if err := st.UpdateEntry(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, failure(ctx, err, ErrUpdateFailed,
			"budget_id", budgetID, "entry_id", entryID, "user_id", userID)
	}
	return updated, nil
}

// DeleteIncome removes an income. Existing expenses are not re-validated
// against the shrunken balance; the budget may end up negative (accepted
// gap, see DESIGN.md).
func (s *TransactionService) DeleteIncome(ctx context.Context, budgetID, entryID, userID int64) error {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return err
	}

	err := s.store.Atomic(ctx, func(st ledger.Store) error {
		if _, err := st.GetEntry(ctx, budgetID, entryID, core.Income); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return incomeNotFound(entryID)
			}
			return err
		}
		return st.DeleteEntry(ctx, budgetID, entryID)
	})
	if err != nil {
		return failure(ctx, err, ErrDeleteFailed,
			"budget_id", budgetID, "entry_id", entryID, "user_id", userID)
	}

	slog.InfoContext(ctx, "Income deleted", "budget_id", budgetID, "entry_id", entryID)
	return nil
}

// --- expenses ---

func expenseFromInput(budgetID int64, in ExpenseInput, date time.Time) core.LedgerEntry {
	status := in.Status
	return core.LedgerEntry{
		BudgetID:        budgetID,
		Type:            core.Expense,
		Title:           in.Title,
		Amount:          in.Amount,
		Date:            date,
		CategoryID:      in.CategoryID,
		PaymentMethod:   in.PaymentMethod,
		Status:          &status,
		Frequency:       in.Frequency,
		EndDate:         in.EndDate,
		ReceiptImageURL: in.ReceiptImageURL,
	}
}

// AddExpense records an expense after checking it is covered by the current
// balance. The balance check and the insert run in one storage transaction
// so concurrent additions cannot jointly overdraw the budget.
func (s *TransactionService) AddExpense(ctx context.Context, budgetID int64, in ExpenseInput, userID int64) (*core.LedgerEntry, error) {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return nil, err
	}

	now := s.now()
	date := now
	if in.StartDate != nil {
		date = *in.StartDate
	}
	e := expenseFromInput(budgetID, in, date)
	e.CreatedAt = now
	e.CreatedByUserID = userID
	e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, invalidEntry(err)
	}

	err := s.store.Atomic(ctx, func(st ledger.Store) error {
		balance, err := ComputeBalance(ctx, st, budgetID)
		if err != nil {
			return err
		}
		if e.Amount.Cents > balance.Cents {
			return ErrInsufficientFunds
		}
		_, err = st.CreateEntry(ctx, &e)
		return err
	})
	if err != nil {
		return nil, failure(ctx, err, ErrCreateFailed,
			"budget_id", budgetID, "user_id", userID, "operation", "add_expense")
	}

	slog.InfoContext(ctx, "Expense added",
		"budget_id", budgetID, "entry_id", e.ID,
		"amount_cents", e.Amount.Cents, "status", *e.Status)
	return &e, nil
}

// GetExpenseDetails fetches one expense entry scoped to the budget.
func (s *TransactionService) GetExpenseDetails(ctx context.Context, budgetID, entryID, userID int64) (*core.LedgerEntry, error) {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return nil, err
	}
	e, err := s.store.GetEntry(ctx, budgetID, entryID, core.Expense)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, expenseNotFound(entryID)
	}
	if err != nil {
		return nil, failure(ctx, err, ErrFetchFailed,
			"budget_id", budgetID, "entry_id", entryID)
	}
	return e, nil
}

// EditExpense overwrites an expense's mutable fields. The new amount must
// fit within the balance available once the edited entry itself is excluded:
// all incomes minus all other expenses.
func (s *TransactionService) EditExpense(ctx context.Context, budgetID, entryID int64, in ExpenseInput, userID int64) (*core.LedgerEntry, error) {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return nil, err
	}

	var updated *core.LedgerEntry
	err := s.store.Atomic(ctx, func(st ledger.Store) error {
		old, err := st.GetEntry(ctx, budgetID, entryID, core.Expense)
		if errors.Is(err, ledger.ErrNotFound) {
			return expenseNotFound(entryID)
		}
		if err != nil {
			return err
		}

		incomes, err := st.SumByType(ctx, budgetID, core.Income)
		if err != nil {
			return err
		}
		expenses, err := st.SumByType(ctx, budgetID, core.Expense)
		if err != nil {
			return err
		}
		available := incomes - (expenses - old.Amount.Cents)
		if in.Amount.Cents > available {
			return ErrBalanceChangeDenied
		}

		date := old.Date
		if in.StartDate != nil {
			date = *in.StartDate
		}
		e := expenseFromInput(budgetID, in, date)
		e.ID = old.ID
		e.CreatedAt = old.CreatedAt
		e.CreatedByUserID = old.CreatedByUserID
		e.Normalize()
		if err := e.Validate(); err != nil {
			return invalidEntry(err)
		}
		if err := st.UpdateEntry(ctx, &e); err != nil {
			return err
		}
		updated = &e
		return nil
	})
	if err != nil {
		return nil, failure(ctx, err, ErrUpdateFailed,
			"budget_id", budgetID, "entry_id", entryID, "user_id", userID)
	}

	slog.InfoContext(ctx, "Expense edited",
		"budget_id", budgetID, "entry_id", entryID, "amount_cents", updated.Amount.Cents)
	return updated, nil
}

// DeleteExpense removes an expense.
func (s *TransactionService) DeleteExpense(ctx context.Context, budgetID, entryID, userID int64) error {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return err
	}

	err := s.store.Atomic(ctx, func(st ledger.Store) error {
		if _, err := st.GetEntry(ctx, budgetID, entryID, core.Expense); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return expenseNotFound(entryID)
			}
			return err
		}
		return st.DeleteEntry(ctx, budgetID, entryID)
	})
	if err != nil {
		return failure(ctx, err, ErrDeleteFailed,
			"budget_id", budgetID, "entry_id", entryID, "user_id", userID)
	}

	slog.InfoContext(ctx, "Expense deleted", "budget_id", budgetID, "entry_id", entryID)
	return nil
}

// --- listing ---

// SearchTransactions returns one page of the budget's entries with total
// and filtered counts.
func (s *TransactionService) SearchTransactions(ctx context.Context, budgetID int64, q core.SearchQuery, userID int64) (*core.SearchResult, error) {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return nil, err
	}
	res, err := s.store.Search(ctx, budgetID, q)
	if err != nil {
		return nil, failure(ctx, err, ErrFetchFailed,
			"budget_id", budgetID, "user_id", userID, "operation", "search")
	}
	return res, nil
}

// Balance reports the budget's current balance.
func (s *TransactionService) Balance(ctx context.Context, budgetID, userID int64) (core.Money, error) {
	if err := s.requireMember(ctx, budgetID, userID); err != nil {
		return core.Money{}, err
	}
	balance, err := ComputeBalance(ctx, s.store, budgetID)
	if err != nil {
		return core.Money{}, failure(ctx, err, ErrFetchFailed,
			"budget_id", budgetID, "operation", "balance")
	}
	return balance, nil
}
