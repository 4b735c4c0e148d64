package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// ComputeBalance derives a budget's balance as total incomes minus total
// expenses over the entire stored history. The balance is never stored;
// every writer re-derives it before committing.
func ComputeBalance(ctx context.Context, store ledger.Store, budgetID int64) (core.Money, error) {
	incomes, err := store.SumByType(ctx, budgetID, core.Income)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum incomes for budget %d: %w", budgetID, err)
	}
	expenses, err := store.SumByType(ctx, budgetID, core.Expense)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses for budget %d: %w", budgetID, err)
	}
	return core.Money{Cents: incomes - expenses}, nil
}
