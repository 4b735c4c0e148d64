// Package ledger declares the outbound ports of the budget ledger engine.
// Implementations live in internal/storage (SQLite), internal/memory and
// internal/notify.
package ledger

import (
	"context"
	"errors"
	"time"

	"bilancio/internal/core"
)

// ErrNotFound reports a lookup that matched no record. Store implementations
// wrap it with the entity and id.
var ErrNotFound = errors.New("record not found")

type (
	// Store is the persistence abstraction over budgets, memberships and
	// ledger entries. Entry lookups are always scoped by budget and type.
	Store interface {
		GetBudget(ctx context.Context, id int64) (*core.Budget, error)
		IsMember(ctx context.Context, budgetID, userID int64) (bool, error)
		// UserEmail returns the user's email, or "" when the user has none.
		UserEmail(ctx context.Context, userID int64) (string, error)

		GetEntry(ctx context.Context, budgetID, entryID int64, typ core.EntryType) (*core.LedgerEntry, error)
		CreateEntry(ctx context.Context, e *core.LedgerEntry) (int64, error)
		UpdateEntry(ctx context.Context, e *core.LedgerEntry) error
		DeleteEntry(ctx context.Context, budgetID, entryID int64) error

		// SumByType totals amount cents over the budget's whole history.
		SumByType(ctx context.Context, budgetID int64, typ core.EntryType) (int64, error)

		// ListDue returns recurring and planned expenses whose date has
		// arrived and whose end date, if any, has not passed, ordered by
		// budget.
		ListDue(ctx context.Context, asOf time.Time) ([]core.LedgerEntry, error)

		Search(ctx context.Context, budgetID int64, q core.SearchQuery) (*core.SearchResult, error)

		// Atomic runs fn against a store whose writes commit or roll back
		// as one unit.
		Atomic(ctx context.Context, fn func(Store) error) error
	}

	// Notifier delivers per-expense processing outcomes to a creator.
	// Delivery is fire-and-forget: a failure is for the caller to log, never
	// to act on.
	Notifier interface {
		NotifyExpenseFailed(ctx context.Context, recipient, budgetName, title string, amount core.Money, reason string) error
		NotifyExpenseSucceeded(ctx context.Context, recipient, budgetName, title string, amount core.Money) error
	}
)
