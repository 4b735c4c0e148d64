package services

import "fmt"

// Failure is a typed operation result error. Code is stable and
// machine-readable so callers can branch on it; Message is displayable.
// Persistence details never leak into either — they are logged at the
// failure site instead.
type Failure struct {
	Code    string
	Message string
}

func (f *Failure) Error() string {
	return f.Code + ": " + f.Message
}

// Is matches failures by code, so errors.Is(err, ErrIncomeNotFound) works
// for failures built with a specific entry id.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Code == f.Code
}

var (
	ErrNoAccess = &Failure{
		Code:    "Transaction.NoAccess",
		Message: "user is not a member of this budget",
	}
	ErrInsufficientFunds = &Failure{
		Code:    "Transaction.InsufficientFunds",
		Message: "expense amount exceeds the budget balance",
	}
	ErrBalanceChangeDenied = &Failure{
		Code:    "Transaction.BalanceChangeDenied",
		Message: "new amount is not covered by the available balance",
	}
	ErrIncomeNotFound = &Failure{
		Code:    "Transaction.IncomeNotFound",
		Message: "income not found",
	}
	ErrExpenseNotFound = &Failure{
		Code:    "Transaction.ExpenseNotFound",
		Message: "expense not found",
	}
	ErrInvalidEntry = &Failure{
		Code:    "Transaction.InvalidEntry",
		Message: "entry failed validation",
	}

	ErrCreateFailed = &Failure{
		Code:    "Transaction.CreateFailed",
		Message: "could not create the entry",
	}
	ErrUpdateFailed = &Failure{
		Code:    "Transaction.UpdateFailed",
		Message: "could not update the entry",
	}
	ErrDeleteFailed = &Failure{
		Code:    "Transaction.DeleteFailed",
		Message: "could not delete the entry",
	}
	ErrFetchFailed = &Failure{
		Code:    "Transaction.FetchFailed",
		Message: "could not fetch the entry",
	}

	// ErrRunFailed is the batch job's single top-level failure, distinct
	// from per-candidate errors which are logged and swallowed.
	ErrRunFailed = &Failure{
		Code:    "Scheduling.RunFailed",
		Message: "recurring expense run aborted",
	}
)

func incomeNotFound(id int64) *Failure {
	return &Failure{Code: ErrIncomeNotFound.Code, Message: fmt.Sprintf("income %d not found", id)}
}

func expenseNotFound(id int64) *Failure {
	return &Failure{Code: ErrExpenseNotFound.Code, Message: fmt.Sprintf("expense %d not found", id)}
}

func invalidEntry(err error) *Failure {
	return &Failure{Code: ErrInvalidEntry.Code, Message: err.Error()}
}
