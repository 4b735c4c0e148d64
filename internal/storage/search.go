package storage

import (
	"context"
	"database/sql"
	"fmt"

	"bilancio/internal/core"
)

// sortColumns whitelists the sortable fields. Anything else falls back to
// the entry date.
var sortColumns = map[string]string{
	core.SortByDate:     "e.entry_date",
	core.SortByTitle:    "e.title COLLATE NOCASE",
	core.SortByAmount:   "e.amount_cents",
	core.SortByType:     "e.entry_type",
	core.SortByCategory: "c.name COLLATE NOCASE",
	core.SortByStatus:   "e.status",
	core.SortByPayment:  "e.payment_method",
	core.SortByCreator:  "u.name COLLATE NOCASE",
}

const searchFrom = `
	FROM ledger_entries e
	LEFT JOIN categories c ON c.id = e.category_id
	LEFT JOIN users u ON u.id = e.created_by
	WHERE e.budget_id = ?
	  AND (? = ''
	       OR e.title LIKE '%' || ? || '%' COLLATE NOCASE
	       OR c.name LIKE '%' || ? || '%' COLLATE NOCASE
	       OR e.payment_method LIKE '%' || ? || '%' COLLATE NOCASE)`

// Search returns one page of a budget's entries together with the budget's
// total and filtered entry counts.
func (r *Repository) Search(ctx context.Context, budgetID int64, q core.SearchQuery) (*core.SearchResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	result := &core.SearchResult{}

	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE budget_id = ?`, budgetID).
		Scan(&result.TotalCount)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}

	filterArgs := []any{budgetID, q.Text, q.Text, q.Text, q.Text}

	err = r.q.QueryRowContext(ctx, `SELECT COUNT(*)`+searchFrom, filterArgs...).
		Scan(&result.FilteredCount)
	if err != nil {
		return nil, fmt.Errorf("count filtered entries: %w", err)
	}

	sortExpr, ok := sortColumns[q.SortBy]
	if !ok {
		sortExpr = sortColumns[core.SortByDate]
	}
	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}

	query := `SELECT e.id, e.budget_id, e.entry_type, e.title, e.amount_cents, e.entry_date,
		e.category_id, e.payment_method, e.status, e.frequency, e.end_date, e.receipt_image_url,
		e.created_at, e.created_by, COALESCE(c.name, ''), COALESCE(u.name, '')` +
		searchFrom +
		fmt.Sprintf(` ORDER BY %s %s, e.id %s LIMIT ? OFFSET ?`, sortExpr, dir, dir)

	args := append(filterArgs, pageSize, (page-1)*pageSize)
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e        core.LedgerEntry
			typ      string
			category sql.NullInt64
			payment  sql.NullString
			status   sql.NullString
			freq     sql.NullString
			endDate  sql.NullTime
			receipt  sql.NullString
			row      core.SearchRow
		)
		err := rows.Scan(&e.ID, &e.BudgetID, &typ, &e.Title, &e.Amount.Cents, &e.Date,
			&category, &payment, &status, &freq, &endDate, &receipt,
			&e.CreatedAt, &e.CreatedByUserID, &row.CategoryName, &row.CreatorName)
		if err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
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
		row.Entry = e
		result.Items = append(result.Items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}

	return result, nil
}
