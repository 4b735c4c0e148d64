// Package memory provides a mutex-guarded in-memory ledger store. It backs
// the service and processor tests and the CLI's throwaway backend; data does
// not survive the process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

type user struct {
	id    int64
	name  string
	email string
}

type Store struct {
	// txMu serializes Atomic blocks; mu guards the maps.
	txMu sync.Mutex
	mu   sync.Mutex

	nextID     int64
	users      map[int64]user
	budgets    map[int64]core.Budget
	members    map[int64]map[int64]core.Role // budgetID -> userID -> role
	categories map[int64]string
	entries    map[int64]core.LedgerEntry
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[int64]user),
		budgets:    make(map[int64]core.Budget),
		members:    make(map[int64]map[int64]core.Role),
		categories: make(map[int64]string),
		entries:    make(map[int64]core.LedgerEntry),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Atomic serializes the callback against other Atomic blocks. The memory
// store has no rollback; tests that need real transactional behavior use the
// SQLite repository.
func (s *Store) Atomic(_ context.Context, fn func(ledger.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(atomicView{s})
}

// atomicView is the store as seen inside Atomic; its Atomic is a no-op
// passthrough so nested calls do not deadlock on txMu.
type atomicView struct{ *Store }

func (v atomicView) Atomic(_ context.Context, fn func(ledger.Store) error) error {
	return fn(v)
}

// --- seed helpers (mirror the SQLite repository) ---

func (s *Store) CreateUser(_ context.Context, name, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.users[id] = user{id: id, name: name, email: email}
	return id, nil
}

func (s *Store) CreateBudget(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.budgets[id] = core.Budget{ID: id, Name: name}
	return id, nil
}

func (s *Store) AddMember(_ context.Context, budgetID, userID int64, role core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[budgetID] == nil {
		s.members[budgetID] = make(map[int64]core.Role)
	}
	s.members[budgetID][userID] = role
	return nil
}

func (s *Store) CreateCategory(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.categories[id] = name
	return id, nil
}

// --- ledger.Store ---

func (s *Store) GetBudget(_ context.Context, id int64) (*core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return nil, fmt.Errorf("budget %d: %w", id, ledger.ErrNotFound)
	}
	return &b, nil
}

func (s *Store) IsMember(_ context.Context, budgetID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[budgetID][userID]
	return ok, nil
}

func (s *Store) UserEmail(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return "", fmt.Errorf("user %d: %w", userID, ledger.ErrNotFound)
	}
	return u.email, nil
}

func (s *Store) GetEntry(_ context.Context, budgetID, entryID int64, typ core.EntryType) (*core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.BudgetID != budgetID || e.Type != typ {
		return nil, fmt.Errorf("%s %d: %w", typ, entryID, ledger.ErrNotFound)
	}
	return &e, nil
}

func (s *Store) CreateEntry(_ context.Context, e *core.LedgerEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	s.entries[e.ID] = *e
	return e.ID, nil
}

func (s *Store) UpdateEntry(_ context.Context, e *core.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.entries[e.ID]
	if !ok || old.BudgetID != e.BudgetID {
		return fmt.Errorf("entry %d: %w", e.ID, ledger.ErrNotFound)
	}
	s.entries[e.ID] = *e
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, budgetID, entryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.BudgetID != budgetID {
		return fmt.Errorf("entry %d: %w", entryID, ledger.ErrNotFound)
	}
	delete(s.entries, entryID)
	return nil
}

func (s *Store) SumByType(_ context.Context, budgetID int64, typ core.EntryType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, e := range s.entries {
		if e.BudgetID == budgetID && e.Type == typ {
			total += e.Amount.Cents
		}
	}
	return total, nil
}

func (s *Store) ListDue(_ context.Context, asOf time.Time) ([]core.LedgerEntry, error) {
	day := core.DateOnly(asOf)
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []core.LedgerEntry
	for _, e := range s.entries {
		if e.Type != core.Expense || e.Status == nil {
			continue
		}
		if *e.Status != core.Recurring && *e.Status != core.Planned {
			continue
		}
		if e.EndDate != nil && core.DateOnly(*e.EndDate).Before(day) {
			continue
		}
		if core.DateOnly(e.Date).After(day) {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].BudgetID != due[j].BudgetID {
			return due[i].BudgetID < due[j].BudgetID
		}
		return due[i].ID < due[j].ID
	})
	return due, nil
}

func (s *Store) Search(_ context.Context, budgetID int64, q core.SearchQuery) (*core.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := strings.ToLower(strings.TrimSpace(q.Text))
	result := &core.SearchResult{}
	var rows []core.SearchRow

	for _, e := range s.entries {
		if e.BudgetID != budgetID {
			continue
		}
		result.TotalCount++

		row := core.SearchRow{Entry: e}
		if e.CategoryID != nil {
			row.CategoryName = s.categories[*e.CategoryID]
		}
		if u, ok := s.users[e.CreatedByUserID]; ok {
			row.CreatorName = u.name
		}

		if text != "" {
			payment := ""
			if e.PaymentMethod != nil {
				payment = string(*e.PaymentMethod)
			}
			if !strings.Contains(strings.ToLower(e.Title), text) &&
				!strings.Contains(strings.ToLower(row.CategoryName), text) &&
				!strings.Contains(strings.ToLower(payment), text) {
				continue
			}
		}
		rows = append(rows, row)
	}
	result.FilteredCount = int64(len(rows))

	sort.Slice(rows, func(i, j int) bool {
		less := searchLess(rows[i], rows[j], q.SortBy)
		if q.SortDesc {
			return !less
		}
		return less
	})

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start > len(rows) {
		start = len(rows)
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	result.Items = rows[start:end]
	return result, nil
}

func searchLess(a, b core.SearchRow, sortBy string) bool {
	ea, eb := a.Entry, b.Entry
	switch sortBy {
	case core.SortByTitle:
		if ea.Title != eb.Title {
			return strings.ToLower(ea.Title) < strings.ToLower(eb.Title)
		}
	case core.SortByAmount:
		if ea.Amount.Cents != eb.Amount.Cents {
			return ea.Amount.Cents < eb.Amount.Cents
		}
	case core.SortByType:
		if ea.Type != eb.Type {
			return ea.Type < eb.Type
		}
	case core.SortByCategory:
		if a.CategoryName != b.CategoryName {
			return a.CategoryName < b.CategoryName
		}
	case core.SortByStatus:
		sa, sb := "", ""
		if ea.Status != nil {
			sa = string(*ea.Status)
		}
		if eb.Status != nil {
			sb = string(*eb.Status)
		}
		if sa != sb {
			return sa < sb
		}
	case core.SortByPayment:
		pa, pb := "", ""
		if ea.PaymentMethod != nil {
			pa = string(*ea.PaymentMethod)
		}
		if eb.PaymentMethod != nil {
			pb = string(*eb.PaymentMethod)
		}
		if pa != pb {
			return pa < pb
		}
	case core.SortByCreator:
		if a.CreatorName != b.CreatorName {
			return a.CreatorName < b.CreatorName
		}
	default: // date
		if !ea.Date.Equal(eb.Date) {
			return ea.Date.Before(eb.Date)
		}
	}
	return ea.ID < eb.ID
}
