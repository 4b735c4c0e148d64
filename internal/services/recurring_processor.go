package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// RecurringProcessor advances due recurring and planned expenses once per
// Run invocation. It is the only writer that mutates the ledger without a
// direct user action, and it never deletes.
type RecurringProcessor struct {
	store    ledger.Store
	notifier ledger.Notifier // nil degrades to log-only outcomes
}

func NewRecurringProcessor(store ledger.Store, notifier ledger.Notifier) *RecurringProcessor {
	return &RecurringProcessor{store: store, notifier: notifier}
}

// Report summarizes one processor run.
type Report struct {
	RunID        string
	Candidates   int
	Materialized int
	Deferred     int // insufficient funds, left for a later run
	Skipped      int // creator has no resolvable email
	Failed       int // per-candidate errors, logged and isolated
}

// Run processes every due recurring/planned expense exactly once. Failures
// on individual candidates are logged and never abort the run; only a
// failure of the initial selection aborts, as there is nothing left to
// process without the candidate set.
//
// Candidates are processed strictly sequentially: the per-budget balance
// cache is a running total that is only correct under sequential access.
func (p *RecurringProcessor) Run(ctx context.Context, now time.Time) (Report, error) {
	report := Report{RunID: uuid.NewString()}

	due, err := p.store.ListDue(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Due-expense selection failed",
			"run_id", report.RunID, "error", err)
		return report, ErrRunFailed
	}
	report.Candidates = len(due)

	slog.InfoContext(ctx, "Processing due expenses",
		"run_id", report.RunID,
		"candidates", len(due),
		"as_of", now.Format("2006-01-02"))

	// Caches live for this run only. Balances are computed once per budget
	// on first encounter and decremented as occurrences materialize.
	balances := make(map[int64]int64)
	budgetNames := make(map[int64]string)
	emails := make(map[int64]string)

	for _, candidate := range due {
		p.processCandidate(ctx, candidate, now, balances, budgetNames, emails, &report)
	}

	slog.InfoContext(ctx, "Due-expense processing complete",
		"run_id", report.RunID,
		"candidates", report.Candidates,
		"materialized", report.Materialized,
		"deferred", report.Deferred,
		"skipped", report.Skipped,
		"failed", report.Failed)

	return report, nil
}

func (p *RecurringProcessor) processCandidate(
	ctx context.Context,
	e core.LedgerEntry,
	now time.Time,
	balances map[int64]int64,
	budgetNames map[int64]string,
	emails map[int64]string,
	report *Report,
) {
	log := slog.With(
		"run_id", report.RunID,
		"entry_id", e.ID,
		"budget_id", e.BudgetID,
		"status", statusOf(e))

	email, ok := emails[e.CreatedByUserID]
	if !ok {
		var err error
		email, err = p.store.UserEmail(ctx, e.CreatedByUserID)
		if err != nil {
			log.ErrorContext(ctx, "Creator lookup failed",
				"user_id", e.CreatedByUserID, "error", err)
			report.Failed++
			return
		}
		emails[e.CreatedByUserID] = email
	}
	if email == "" {
		// Nobody to notify, nothing materializes.
		log.InfoContext(ctx, "Skipping candidate, creator has no email",
			"user_id", e.CreatedByUserID)
		report.Skipped++
		return
	}

	budgetName, ok := budgetNames[e.BudgetID]
	if !ok {
		budget, err := p.store.GetBudget(ctx, e.BudgetID)
		if err != nil {
			log.ErrorContext(ctx, "Budget lookup failed", "error", err)
			report.Failed++
			return
		}
		budgetName = budget.Name
		budgetNames[e.BudgetID] = budgetName
	}

	balance, ok := balances[e.BudgetID]
	if !ok {
		money, err := ComputeBalance(ctx, p.store, e.BudgetID)
		if err != nil {
			log.ErrorContext(ctx, "Balance computation failed", "error", err)
			report.Failed++
			return
		}
		balance = money.Cents
		balances[e.BudgetID] = balance
	}

	if e.Amount.Cents > balance {
		p.handleInsufficientFunds(ctx, log, e, email, budgetName, report)
		return
	}

	if err := p.materialize(ctx, e, now); err != nil {
		log.ErrorContext(ctx, "Materialization failed",
			"amount_cents", e.Amount.Cents, "error", err)
		report.Failed++
		return
	}

	balances[e.BudgetID] = balance - e.Amount.Cents
	report.Materialized++

	log.InfoContext(ctx, "Expense materialized",
		"amount_cents", e.Amount.Cents,
		"cached_balance_cents", balances[e.BudgetID])

	p.notifySucceeded(ctx, log, email, budgetName, e)
}

// handleInsufficientFunds notifies the creator and reschedules planned
// expenses for tomorrow. Recurring expenses keep their date: they stay due
// on every subsequent run until funds suffice.
func (p *RecurringProcessor) handleInsufficientFunds(
	ctx context.Context,
	log *slog.Logger,
	e core.LedgerEntry,
	email, budgetName string,
	report *Report,
) {
	const reason = "insufficient funds"

	log.InfoContext(ctx, "Expense deferred, balance too low",
		"amount_cents", e.Amount.Cents)

	if p.notifier != nil {
		if err := p.notifier.NotifyExpenseFailed(ctx, email, budgetName, e.Title, e.Amount, reason); err != nil {
			log.WarnContext(ctx, "Failure notification not delivered", "error", err)
		}
	}

	if e.Status != nil && *e.Status == core.Planned {
		// Retry tomorrow.
		e.Date = e.Date.AddDate(0, 0, 1)
		if err := p.store.UpdateEntry(ctx, &e); err != nil {
			log.ErrorContext(ctx, "Planned expense reschedule failed", "error", err)
			report.Failed++
			return
		}
	}

	report.Deferred++
}

// materialize turns a due candidate into a realized ledger effect. A
// recurring parent spawns an instant child dated now and advances its own
// date, both in one storage transaction; a planned expense flips to instant
// in place. Advancing the parent past today is what keeps a same-day re-run
// from selecting it again.
func (p *RecurringProcessor) materialize(ctx context.Context, e core.LedgerEntry, now time.Time) error {
	if e.Status != nil && *e.Status == core.Recurring {
		if e.Frequency == nil {
			return fmt.Errorf("recurring entry %d has no frequency", e.ID)
		}

		child := core.LedgerEntry{
			BudgetID:        e.BudgetID,
			Type:            core.Expense,
			Title:           e.Title,
			Amount:          e.Amount,
			Date:            now,
			CategoryID:      e.CategoryID,
			PaymentMethod:   e.PaymentMethod,
			Status:          core.StatusPtr(core.Instant),
			CreatedAt:       now,
			CreatedByUserID: e.CreatedByUserID,
		}
		parent := e
		parent.Date = core.NextOccurrence(e.Date, *e.Frequency)

		return p.store.Atomic(ctx, func(st ledger.Store) error {
			if _, err := st.CreateEntry(ctx, &child); err != nil {
				return fmt.Errorf("create occurrence: %w", err)
			}
			if err := st.UpdateEntry(ctx, &parent); err != nil {
				return fmt.Errorf("advance parent date: %w", err)
			}
			return nil
		})
	}

	// Planned: single-shot, becomes instant.
	e.Status = core.StatusPtr(core.Instant)
	e.Date = now
	e.Frequency = nil
	e.EndDate = nil
	return p.store.Atomic(ctx, func(st ledger.Store) error {
		return st.UpdateEntry(ctx, &e)
	})
}

func (p *RecurringProcessor) notifySucceeded(ctx context.Context, log *slog.Logger, email, budgetName string, e core.LedgerEntry) {
	if p.notifier == nil {
		return
	}
	// Fire-and-forget: the ledger mutation is already committed.
	if err := p.notifier.NotifyExpenseSucceeded(ctx, email, budgetName, e.Title, e.Amount); err != nil {
		log.WarnContext(ctx, "Success notification not delivered", "error", err)
	}
}

func statusOf(e core.LedgerEntry) string {
	if e.Status == nil {
		return ""
	}
	return string(*e.Status)
}
