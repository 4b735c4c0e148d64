package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

type testData struct {
	budgetID   int64
	userID     int64
	categoryID int64
}

func seed(t *testing.T, repo *Repository) testData {
	t.Helper()
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "Anna", "anna@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	budgetID, err := repo.CreateBudget(ctx, "Household")
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	if err := repo.AddMember(ctx, budgetID, userID, core.Owner); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	categoryID, err := repo.CreateCategory(ctx, "groceries")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	return testData{budgetID: budgetID, userID: userID, categoryID: categoryID}
}

func testEntry(d testData, typ core.EntryType, cents int64, date time.Time) core.LedgerEntry {
	e := core.LedgerEntry{
		BudgetID:        d.budgetID,
		Type:            typ,
		Title:           "entry",
		Amount:          core.Money{Cents: cents},
		Date:            date,
		CreatedAt:       date,
		CreatedByUserID: d.userID,
	}
	if typ == core.Expense {
		e.Status = core.StatusPtr(core.Instant)
	}
	return e
}

func TestRepository_EntryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	d := seed(t, repo)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	end := date.AddDate(1, 0, 0)
	receipt := "https://example.com/receipt.jpg"
	e := core.LedgerEntry{
		BudgetID:        d.budgetID,
		Type:            core.Expense,
		Title:           "netflix",
		Amount:          core.Money{Cents: 2900},
		Date:            date,
		CategoryID:      &d.categoryID,
		PaymentMethod:   core.PaymentPtr(core.Card),
		Status:          core.StatusPtr(core.Recurring),
		Frequency:       core.FrequencyPtr(core.Monthly),
		EndDate:         &end,
		ReceiptImageURL: &receipt,
		CreatedAt:       date,
		CreatedByUserID: d.userID,
	}

	id, err := repo.CreateEntry(ctx, &e)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if id == 0 || e.ID != id {
		t.Fatalf("CreateEntry id = %d, entry id = %d", id, e.ID)
	}

	got, err := repo.GetEntry(ctx, d.budgetID, id, core.Expense)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Title != "netflix" || got.Amount.Cents != 2900 {
		t.Errorf("got %q/%d, want netflix/2900", got.Title, got.Amount.Cents)
	}
	if !got.Date.Equal(date) {
		t.Errorf("Date = %v, want %v", got.Date, date)
	}
	if got.Status == nil || *got.Status != core.Recurring {
		t.Errorf("Status = %v, want recurring", got.Status)
	}
	if got.Frequency == nil || *got.Frequency != core.Monthly {
		t.Errorf("Frequency = %v, want monthly", got.Frequency)
	}
	if got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Errorf("EndDate = %v, want %v", got.EndDate, end)
	}
	if got.CategoryID == nil || *got.CategoryID != d.categoryID {
		t.Errorf("CategoryID = %v, want %d", got.CategoryID, d.categoryID)
	}
	if got.ReceiptImageURL == nil || *got.ReceiptImageURL != receipt {
		t.Errorf("ReceiptImageURL = %v, want %q", got.ReceiptImageURL, receipt)
	}

	// Optional fields stay nil on a plain income.
	income := testEntry(d, core.Income, 100000, date)
	if _, err := repo.CreateEntry(ctx, &income); err != nil {
		t.Fatalf("CreateEntry income: %v", err)
	}
	got, err = repo.GetEntry(ctx, d.budgetID, income.ID, core.Income)
	if err != nil {
		t.Fatalf("GetEntry income: %v", err)
	}
	if got.Status != nil || got.Frequency != nil || got.CategoryID != nil || got.EndDate != nil {
		t.Errorf("income carries expense fields: %+v", got)
	}
}

func TestRepository_GetEntryScoping(t *testing.T) {
	repo := newTestRepo(t)
	d := seed(t, repo)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	e := testEntry(d, core.Expense, 1000, date)
	if _, err := repo.CreateEntry(ctx, &e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	otherBudget, err := repo.CreateBudget(ctx, "Second")
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	tests := []struct {
		name     string
		budgetID int64
		entryID  int64
		typ      core.EntryType
		wantErr  bool
	}{
		{"match", d.budgetID, e.ID, core.Expense, false},
		{"wrong type", d.budgetID, e.ID, core.Income, true},
		{"wrong budget", otherBudget, e.ID, core.Expense, true},
		{"missing id", d.budgetID, 999, core.Expense, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.GetEntry(ctx, tt.budgetID, tt.entryID, tt.typ)
			if tt.wantErr != (err != nil) {
				t.Fatalf("GetEntry error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("GetEntry error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestRepository_UpdateAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	d := seed(t, repo)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	e := testEntry(d, core.Expense, 1000, date)
	if _, err := repo.CreateEntry(ctx, &e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	e.Title = "renamed"
	e.Amount.Cents = 2500
	if err := repo.UpdateEntry(ctx, &e); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	got, err := repo.GetEntry(ctx, d.budgetID, e.ID, core.Expense)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Title != "renamed" || got.Amount.Cents != 2500 {
		t.Errorf("after update got %q/%d, want renamed/2500", got.Title, got.Amount.Cents)
	}

	missing := e
	missing.ID = 999
	if err := repo.UpdateEntry(ctx, &missing); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("UpdateEntry missing: got %v, want ErrNotFound", err)
	}

	if err := repo.DeleteEntry(ctx, d.budgetID, e.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if err := repo.DeleteEntry(ctx, d.budgetID, e.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("DeleteEntry twice: got %v, want ErrNotFound", err)
	}
}

func TestRepository_SumByType(t *testing.T) {
	repo := newTestRepo(t)
	d := seed(t, repo)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	// Empty budget sums to zero, not an error.
	total, err := repo.SumByType(ctx, d.budgetID, core.Income)
	if err != nil {
		t.Fatalf("SumByType empty: %v", err)
	}
	if total != 0 {
		t.Errorf("empty sum = %d, want 0", total)
	}

	for _, cents := range []int64{100000, 50000} {
		e := testEntry(d, core.Income, cents, date)
		if _, err := repo.CreateEntry(ctx, &e); err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
	}
	exp := testEntry(d, core.Expense, 30000, date)
	if _, err := repo.CreateEntry(ctx, &exp); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	total, err = repo.SumByType(ctx, d.budgetID, core.Income)
	if err != nil {
		t.Fatalf("SumByType: %v", err)
	}
	if total != 150000 {
		t.Errorf("income sum = %d, want 150000", total)
	}
	total, err = repo.SumByType(ctx, d.budgetID, core.Expense)
	if err != nil {
		t.Fatalf("SumByType: %v", err)
	}
	if total != 30000 {
		t.Errorf("expense sum = %d, want 30000", total)
	}
}

func TestRepository_ListDue(t *testing.T) {
	repo := newTestRepo(t)
	d := seed(t, repo)
	ctx := context.Background()
	asOf := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

	add := func(title string, date time.Time, status core.ExpenseStatus, freq *core.Frequency, end *time.Time) {
		t.Helper()
		e := core.LedgerEntry{
			BudgetID:        d.budgetID,
			Type:            core.Expense,
			Title:           title,
			Amount:          core.Money{Cents: 1000},
			Date:            date,
			Status:          core.StatusPtr(status),
			Frequency:       freq,
			EndDate:         end,
			CreatedAt:       date,
			CreatedByUserID: d.userID,
		}
		if _, err := repo.CreateEntry(ctx, &e); err != nil {
			t.Fatalf("CreateEntry(%s): %v", title, err)
		}
	}

	monthly := core.FrequencyPtr(core.Monthly)
	yesterday := asOf.AddDate(0, 0, -1)
	tomorrow := asOf.AddDate(0, 0, 1)
	endToday := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	add("due recurring", yesterday, core.Recurring, monthly, nil)
	add("due planned", yesterday, core.Planned, nil, nil)
	add("due today later hour", asOf.Add(5*time.Hour), core.Recurring, monthly, nil)
	add("ends today", yesterday, core.Recurring, monthly, &endToday)
	add("future", tomorrow, core.Planned, nil, nil)
	add("ended", yesterday, core.Recurring, monthly, &yesterday)
	add("instant", yesterday, core.Instant, nil, nil)
	income := testEntry(d, core.Income, 1000, yesterday)
	if _, err := repo.CreateEntry(ctx, &income); err != nil {
		t.Fatalf("CreateEntry income: %v", err)
	}

	due, err := repo.ListDue(ctx, asOf)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}

	want := map[string]bool{
		"due recurring":        true,
		"due planned":          true,
		"due today later hour": true, // dueness is day-granular
		"ends today":           true, // the end date is inclusive
	}
	if len(due) != len(want) {
		t.Fatalf("ListDue returned %d entries, want %d: %+v", len(due), len(want), titles(due))
	}
	for _, e := range due {
		if !want[e.Title] {
			t.Errorf("unexpected candidate %q", e.Title)
		}
	}
}

func TestRepository_ListDueOrderedByBudget(t *testing.T) {
	repo := newTestRepo(t)
	d := seed(t, repo)
	ctx := context.Background()
	asOf := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	second, err := repo.CreateBudget(ctx, "Second")
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	// Insert in reverse budget order to prove the ordering comes from SQL.
	for _, budgetID := range []int64{second, d.budgetID, second} {
		e := core.LedgerEntry{
			BudgetID:        budgetID,
			Type:            core.Expense,
			Title:           "planned",
			Amount:          core.Money{Cents: 100},
			Date:            asOf,
			Status:          core.StatusPtr(core.Planned),
			CreatedAt:       asOf,
			CreatedByUserID: d.userID,
		}
		if _, err := repo.CreateEntry(ctx, &e); err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
	}

	due, err := repo.ListDue(ctx, asOf)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("ListDue returned %d entries, want 3", len(due))
	}
	for i := 1; i < len(due); i++ {
		if due[i].BudgetID < due[i-1].BudgetID {
			t.Fatalf("candidates not grouped by budget: %d after %d", due[i].BudgetID, due[i-1].BudgetID)
		}
	}
}

func TestRepository_AtomicRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	d := seed(t, repo)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	sentinel := errors.New("abort")
	err := repo.Atomic(ctx, func(st ledger.Store) error {
		e := testEntry(d, core.Expense, 1000, date)
		if _, err := st.CreateEntry(ctx, &e); err != nil {
			return err
		}
		// Nested Atomic reuses the open transaction.
		if nested := st.Atomic(ctx, func(inner ledger.Store) error {
			e2 := testEntry(d, core.Expense, 2000, date)
			_, err := inner.CreateEntry(ctx, &e2)
			return err
		}); nested != nil {
			return nested
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Atomic: got %v, want the callback error", err)
	}

	total, err := repo.SumByType(ctx, d.budgetID, core.Expense)
	if err != nil {
		t.Fatalf("SumByType: %v", err)
	}
	if total != 0 {
		t.Errorf("sum after rollback = %d, want 0", total)
	}
}

func titles(entries []core.LedgerEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}
