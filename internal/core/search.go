package core

// Sort keys accepted by entry searches.
const (
	SortByDate     = "date"
	SortByTitle    = "title"
	SortByAmount   = "amount"
	SortByType     = "type"
	SortByCategory = "category"
	SortByStatus   = "status"
	SortByPayment  = "payment"
	SortByCreator  = "creator"
)

// SearchQuery describes a paginated, filterable entry listing. Text matches
// case-insensitively against title, category name and payment method.
type SearchQuery struct {
	Text     string
	SortBy   string
	SortDesc bool
	Page     int // 1-based; values below 1 are treated as 1
	PageSize int
}

// SearchRow is one listing row with the display names the ledger table only
// stores ids for.
type SearchRow struct {
	Entry        LedgerEntry
	CategoryName string
	CreatorName  string
}

// SearchResult carries one page of rows plus the unfiltered and filtered
// totals for the budget.
type SearchResult struct {
	TotalCount    int64
	FilteredCount int64
	Items         []SearchRow
}
