package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"bilancio/internal/cli"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/memory"
	"bilancio/internal/services"
)

const usage = `Usage: bilancio <command> [flags]

Commands:
  seed         create a user, budget, membership and default categories
  add-income   record an income entry
  add-expense  record an expense entry (instant, recurring or planned)
  edit-expense update an expense entry
  delete       delete an entry by id and type
  balance      print the budget balance
  search       list entries with filtering, sorting and paging
  process      run one recurring-processor pass
`

// store is the superset the CLI needs: the ledger port plus the seeding
// methods both backends expose.
type store interface {
	ledger.Store
	CreateUser(ctx context.Context, name, email string) (int64, error)
	CreateBudget(ctx context.Context, name string) (int64, error)
	AddMember(ctx context.Context, budgetID, userID int64, role core.Role) error
	CreateCategory(ctx context.Context, name string) (int64, error)
}

func main() {
	logger := cli.Setup(log.ComponentCLI)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)

	var st store
	switch cfg.DataBackend {
	case "memory":
		// Ephemeral, useful for trying commands without a database file.
		st = memory.New()
	default:
		repo := cli.OpenStore(logger, cfg.SQLiteDBPath)
		defer repo.Close()
		st = repo
	}

	ctx := context.Background()
	if err := run(ctx, st, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		logger.Error("Command failed", "command", os.Args[1], log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, st store, command string, args []string, out io.Writer) error {
	svc := services.NewTransactionService(st, nil)

	switch command {
	case "seed":
		return runSeed(ctx, st, args, out)
	case "add-income":
		return runAddIncome(ctx, svc, args, out)
	case "add-expense":
		return runAddExpense(ctx, svc, args, out)
	case "edit-expense":
		return runEditExpense(ctx, svc, args, out)
	case "delete":
		return runDelete(ctx, svc, args, out)
	case "balance":
		return runBalance(ctx, svc, args, out)
	case "search":
		return runSearch(ctx, svc, args, out)
	case "process":
		return runProcess(ctx, st, out)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runSeed(ctx context.Context, st store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	name := fs.String("name", "Owner", "user display name")
	email := fs.String("email", "", "user email for outcome notifications")
	budget := fs.String("budget", "Household", "budget name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := st.CreateUser(ctx, *name, *email)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	budgetID, err := st.CreateBudget(ctx, *budget)
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	if err := st.AddMember(ctx, budgetID, userID, core.Owner); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	for _, c := range []string{"groceries", "rent", "utilities", "transport", "other"} {
		if _, err := st.CreateCategory(ctx, c); err != nil {
			return fmt.Errorf("create category %q: %w", c, err)
		}
	}
	fmt.Fprintf(out, "seeded user=%d budget=%d\n", userID, budgetID)
	return nil
}

func runAddIncome(ctx context.Context, svc *services.TransactionService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-income", flag.ExitOnError)
	budgetID := fs.Int64("budget", 0, "budget id")
	userID := fs.Int64("user", 0, "acting user id")
	title := fs.String("title", "", "entry title")
	amount := fs.String("amount", "", "amount, e.g. 1200.50")
	date := fs.String("date", "", "entry date YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cents, err := core.ParseDecimalToCents(*amount)
	if err != nil {
		return err
	}
	in := services.IncomeInput{Title: *title, Amount: core.Money{Cents: cents}}
	if *date != "" {
		d, err := time.Parse("2006-01-02", *date)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
		in.Date = d
	}

	entry, err := svc.AddIncome(ctx, *budgetID, in, *userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "income %d created: %s %s on %s\n",
		entry.ID, entry.Title, entry.Amount, entry.Date.Format("2006-01-02"))
	return nil
}

func expenseFlags(fs *flag.FlagSet) (title, amount, date, status, frequency, endDate, payment *string, category *int64) {
	title = fs.String("title", "", "entry title")
	amount = fs.String("amount", "", "amount, e.g. 59.99")
	date = fs.String("date", "", "start date YYYY-MM-DD (default today)")
	status = fs.String("status", "instant", "instant, recurring or planned")
	frequency = fs.String("frequency", "", "weekly, biweekly, monthly or yearly (recurring only)")
	endDate = fs.String("end", "", "recurrence end date YYYY-MM-DD")
	payment = fs.String("payment", "", "cash, card, blik, transfer or other")
	category = fs.Int64("category", 0, "category id (0 for none)")
	return
}

func expenseInput(title, amount, date, status, frequency, endDate, payment string, category int64) (services.ExpenseInput, error) {
	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	in := services.ExpenseInput{
		Title:  title,
		Amount: core.Money{Cents: cents},
		Status: core.ExpenseStatus(status),
	}
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return services.ExpenseInput{}, fmt.Errorf("invalid date: %w", err)
		}
		in.StartDate = &d
	}
	if frequency != "" {
		in.Frequency = core.FrequencyPtr(core.Frequency(frequency))
	}
	if endDate != "" {
		d, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return services.ExpenseInput{}, fmt.Errorf("invalid end date: %w", err)
		}
		in.EndDate = &d
	}
	if payment != "" {
		in.PaymentMethod = core.PaymentPtr(core.PaymentMethod(payment))
	}
	if category != 0 {
		in.CategoryID = &category
	}
	return in, nil
}

func runAddExpense(ctx context.Context, svc *services.TransactionService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-expense", flag.ExitOnError)
	budgetID := fs.Int64("budget", 0, "budget id")
	userID := fs.Int64("user", 0, "acting user id")
	title, amount, date, status, frequency, endDate, payment, category := expenseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	in, err := expenseInput(*title, *amount, *date, *status, *frequency, *endDate, *payment, *category)
	if err != nil {
		return err
	}
	entry, err := svc.AddExpense(ctx, *budgetID, in, *userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "expense %d created: %s %s (%s) on %s\n",
		entry.ID, entry.Title, entry.Amount, *entry.Status, entry.Date.Format("2006-01-02"))
	return nil
}

func runEditExpense(ctx context.Context, svc *services.TransactionService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("edit-expense", flag.ExitOnError)
	budgetID := fs.Int64("budget", 0, "budget id")
	userID := fs.Int64("user", 0, "acting user id")
	entryID := fs.Int64("id", 0, "expense id")
	title, amount, date, status, frequency, endDate, payment, category := expenseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	in, err := expenseInput(*title, *amount, *date, *status, *frequency, *endDate, *payment, *category)
	if err != nil {
		return err
	}
	entry, err := svc.EditExpense(ctx, *budgetID, *entryID, in, *userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "expense %d updated: %s %s (%s)\n", entry.ID, entry.Title, entry.Amount, *entry.Status)
	return nil
}

func runDelete(ctx context.Context, svc *services.TransactionService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	budgetID := fs.Int64("budget", 0, "budget id")
	userID := fs.Int64("user", 0, "acting user id")
	entryID := fs.Int64("id", 0, "entry id")
	typ := fs.String("type", "expense", "income or expense")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	switch core.EntryType(*typ) {
	case core.Income:
		err = svc.DeleteIncome(ctx, *budgetID, *entryID, *userID)
	case core.Expense:
		err = svc.DeleteExpense(ctx, *budgetID, *entryID, *userID)
	default:
		return fmt.Errorf("unknown entry type %q", *typ)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %d deleted\n", *typ, *entryID)
	return nil
}

func runBalance(ctx context.Context, svc *services.TransactionService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	budgetID := fs.Int64("budget", 0, "budget id")
	userID := fs.Int64("user", 0, "acting user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	balance, err := svc.Balance(ctx, *budgetID, *userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "balance: %s\n", balance)
	return nil
}

func runSearch(ctx context.Context, svc *services.TransactionService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	budgetID := fs.Int64("budget", 0, "budget id")
	userID := fs.Int64("user", 0, "acting user id")
	text := fs.String("text", "", "match against title, category and payment method")
	sortBy := fs.String("sort", core.SortByDate, "date, title, amount, type, category, status, payment or creator")
	desc := fs.Bool("desc", false, "sort descending")
	page := fs.Int("page", 1, "page number")
	pageSize := fs.Int("page-size", 20, "results per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := svc.SearchTransactions(ctx, *budgetID, core.SearchQuery{
		Text:     *text,
		SortBy:   *sortBy,
		SortDesc: *desc,
		Page:     *page,
		PageSize: *pageSize,
	}, *userID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%d of %d entries match\n", result.FilteredCount, result.TotalCount)
	for _, row := range result.Items {
		status := ""
		if row.Entry.Status != nil {
			status = " " + string(*row.Entry.Status)
		}
		fmt.Fprintf(out, "%6d  %s  %-7s%s  %10s  %s\n",
			row.Entry.ID,
			row.Entry.Date.Format("2006-01-02"),
			row.Entry.Type,
			status,
			row.Entry.Amount,
			row.Entry.Title)
	}
	return nil
}

func runProcess(ctx context.Context, st store, out io.Writer) error {
	processor := services.NewRecurringProcessor(st, nil)
	report, err := processor.Run(ctx, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run %s: %d candidates, %d materialized, %d deferred, %d skipped, %d failed\n",
		report.RunID, report.Candidates, report.Materialized, report.Deferred, report.Skipped, report.Failed)
	return nil
}
