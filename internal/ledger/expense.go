package ledger

import (
	"fmt"
	"time"
)

// ExpenseCategory identifies what an operating expense was spent on.
type ExpenseCategory string

const (
	CategoryGmail       ExpenseCategory = "Gmail"
	CategoryFacebookAds ExpenseCategory = "Facebook Ads"
	CategoryPoster      ExpenseCategory = "Poster"
	CategoryOther       ExpenseCategory = "Other"
)

// ExpenseCategories lists every valid category, in display order.
func ExpenseCategories() []ExpenseCategory {
	return []ExpenseCategory{CategoryGmail, CategoryFacebookAds, CategoryPoster, CategoryOther}
}

func (c ExpenseCategory) Valid() bool {
	switch c {
	case CategoryGmail, CategoryFacebookAds, CategoryPoster, CategoryOther:
		return true
	}

	return false
}

// Expense records marketing or operational spend for a period. Amount is the
// total spend, not a per-sale allocation.
type Expense struct {
	ID          string          `json:"id,omitempty"`
	OwnerID     string          `json:"ownerId,omitempty"`
	Date        string          `json:"date"`
	Category    ExpenseCategory `json:"category"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description,omitempty"`
}

func (e Expense) EntityID() string { return e.ID }

func (e Expense) WithID(id string) Expense {
	e.ID = id
	return e
}

func (e Expense) WithOwner(ownerID string) Expense {
	e.OwnerID = ownerID
	return e
}

func (e Expense) Normalized() Expense { return e }

func (e Expense) Validate() error {
	if !e.Category.Valid() {
		return fmt.Errorf("%w: unknown expense category %q", ErrInvalidRecord, e.Category)
	}

	if _, err := time.Parse(time.DateOnly, e.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRecord)
	}

	if e.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidRecord)
	}

	return nil
}
