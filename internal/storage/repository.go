package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"

	_ "modernc.org/sqlite"
)

// ErrNotFound is re-exported for callers that only import storage.
var ErrNotFound = ledger.ErrNotFound

// dbtx is the common surface of *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is the SQLite-backed ledger store. Inside Atomic it wraps a
// transaction instead of the pooled connection.
type Repository struct {
	db *sql.DB // nil when the repository wraps a transaction
	q  dbtx
}

var _ ledger.Store = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// _time_format=sqlite stores time.Time values in a form the date()
	// SQL function understands; dueness queries depend on it.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, q: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Atomic runs fn against a transactional view of the repository. Any error
// from fn rolls the whole unit back. Nested calls reuse the open transaction.
func (r *Repository) Atomic(ctx context.Context, fn func(ledger.Store) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Repository{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// --- budgets, members, users ---

func (r *Repository) CreateUser(ctx context.Context, name, email string) (int64, error) {
	var mail any
	if email != "" {
		mail = email
	}
	res, err := r.q.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, name, mail)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) UserEmail(ctx context.Context, userID int64) (string, error) {
	var email sql.NullString
	err := r.q.QueryRowContext(ctx, `SELECT email FROM users WHERE id = ?`, userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get user email: %w", err)
	}
	return email.String, nil
}

func (r *Repository) CreateBudget(ctx context.Context, name string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO budgets (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("create budget: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) GetBudget(ctx context.Context, id int64) (*core.Budget, error) {
	b := core.Budget{ID: id}
	err := r.q.QueryRowContext(ctx, `SELECT name FROM budgets WHERE id = ?`, id).Scan(&b.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return &b, nil
}

func (r *Repository) AddMember(ctx context.Context, budgetID, userID int64, role core.Role) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO budget_members (budget_id, user_id, role) VALUES (?, ?, ?)`,
		budgetID, userID, string(role))
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *Repository) IsMember(ctx context.Context, budgetID, userID int64) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM budget_members WHERE budget_id = ? AND user_id = ?`,
		budgetID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

func (r *Repository) CreateCategory(ctx context.Context, name string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	return res.LastInsertId()
}

// --- ledger entries ---

const entryColumns = `id, budget_id, entry_type, title, amount_cents, entry_date,
	category_id, payment_method, status, frequency, end_date, receipt_image_url,
	created_at, created_by`

func scanEntry(row interface{ Scan(...any) error }) (*core.LedgerEntry, error) {
	var (
		e        core.LedgerEntry
		typ      string
		category sql.NullInt64
		payment  sql.NullString
		status   sql.NullString
		freq     sql.NullString
		endDate  sql.NullTime
		receipt  sql.NullString
	)
	err := row.Scan(&e.ID, &e.BudgetID, &typ, &e.Title, &e.Amount.Cents, &e.Date,
		&category, &payment, &status, &freq, &endDate, &receipt,
		&e.CreatedAt, &e.CreatedByUserID)
	if err != nil {
		return nil, err
	}

	e.Type = core.EntryType(typ)
	if category.Valid {
		e.CategoryID = &category.Int64
	}
	if payment.Valid {
		p := core.PaymentMethod(payment.String)
		e.PaymentMethod = &p
	}
	if status.Valid {
		s := core.ExpenseStatus(status.String)
		e.Status = &s
	}
	if freq.Valid {
		f := core.Frequency(freq.String)
		e.Frequency = &f
	}
	if endDate.Valid {
		t := endDate.Time
		e.EndDate = &t
	}
	if receipt.Valid {
		e.ReceiptImageURL = &receipt.String
	}
	return &e, nil
}

func entryArgs(e *core.LedgerEntry) []any {
	var category, payment, status, freq, endDate, receipt any
	if e.CategoryID != nil {
		category = *e.CategoryID
	}
	if e.PaymentMethod != nil {
		payment = string(*e.PaymentMethod)
	}
	if e.Status != nil {
		status = string(*e.Status)
	}
	if e.Frequency != nil {
		freq = string(*e.Frequency)
	}
	if e.EndDate != nil {
		endDate = *e.EndDate
	}
	if e.ReceiptImageURL != nil {
		receipt = *e.ReceiptImageURL
	}
	return []any{
		e.BudgetID, string(e.Type), e.Title, e.Amount.Cents, e.Date,
		category, payment, status, freq, endDate, receipt,
	}
}

func (r *Repository) GetEntry(ctx context.Context, budgetID, entryID int64, typ core.EntryType) (*core.LedgerEntry, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE id = ? AND budget_id = ? AND entry_type = ?`,
		entryID, budgetID, string(typ))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", typ, entryID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (r *Repository) CreateEntry(ctx context.Context, e *core.LedgerEntry) (int64, error) {
	args := append(entryArgs(e), e.CreatedAt, e.CreatedByUserID)
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO ledger_entries (budget_id, entry_type, title, amount_cents, entry_date,
			category_id, payment_method, status, frequency, end_date, receipt_image_url,
			created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return 0, fmt.Errorf("create entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("entry id: %w", err)
	}
	e.ID = id

	slog.DebugContext(ctx, "Ledger entry saved",
		"entry_id", id,
		"budget_id", e.BudgetID,
		"type", e.Type,
		"amount_cents", e.Amount.Cents)

	return id, nil
}

func (r *Repository) UpdateEntry(ctx context.Context, e *core.LedgerEntry) error {
	args := append(entryArgs(e), e.ID, e.BudgetID)
	res, err := r.q.ExecContext(ctx,
		`UPDATE ledger_entries SET budget_id = ?, entry_type = ?, title = ?, amount_cents = ?,
			entry_date = ?, category_id = ?, payment_method = ?, status = ?, frequency = ?,
			end_date = ?, receipt_image_url = ?
		 WHERE id = ? AND budget_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("entry %d: %w", e.ID, ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteEntry(ctx context.Context, budgetID, entryID int64) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM ledger_entries WHERE id = ? AND budget_id = ?`, entryID, budgetID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("entry %d: %w", entryID, ErrNotFound)
	}
	return nil
}

func (r *Repository) SumByType(ctx context.Context, budgetID int64, typ core.EntryType) (int64, error) {
	var total int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries
		 WHERE budget_id = ? AND entry_type = ?`,
		budgetID, string(typ)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum %s: %w", typ, err)
	}
	return total, nil
}

// ListDue selects the processor's candidate set: recurring and planned
// expenses whose date has arrived and whose end date, if present, has not
// passed. Ordered by budget so the per-budget balance cache gets locality.
func (r *Repository) ListDue(ctx context.Context, asOf time.Time) ([]core.LedgerEntry, error) {
	day := core.DateOnly(asOf)
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE entry_type = 'expense'
		   AND status IN ('recurring', 'planned')
		   AND (end_date IS NULL OR date(end_date) >= date(?))
		   AND date(entry_date) <= date(?)
		 ORDER BY budget_id, id`, day, day)
	if err != nil {
		return nil, fmt.Errorf("list due entries: %w", err)
	}
	defer rows.Close()

	var due []core.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due entry: %w", err)
		}
		due = append(due, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due entries: %w", err)
	}
	return due, nil
}
