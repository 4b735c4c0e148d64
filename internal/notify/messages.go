package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

// OutcomeMessage tells the mail worker what happened to one due expense.
// The consumer renders and delivers the email; this side only records the
// facts of the outcome.
type OutcomeMessage struct {
	ID          string    `json:"id"`
	Recipient   string    `json:"recipient"`
	BudgetName  string    `json:"budget_name"`
	Title       string    `json:"title"`
	AmountCents int64     `json:"amount_cents"`
	Succeeded   bool      `json:"succeeded"`
	Reason      string    `json:"reason,omitempty"` // set on failures only
	Timestamp   time.Time `json:"timestamp"`
}

func newOutcome(recipient, budgetName, title string, amount core.Money, succeeded bool, reason string) *OutcomeMessage {
	return &OutcomeMessage{
		ID:          uuid.NewString(),
		Recipient:   recipient,
		BudgetName:  budgetName,
		Title:       title,
		AmountCents: amount.Cents,
		Succeeded:   succeeded,
		Reason:      reason,
		Timestamp:   time.Now(),
	}
}

func (m *OutcomeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func OutcomeMessageFromJSON(data []byte) (*OutcomeMessage, error) {
	var msg OutcomeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
