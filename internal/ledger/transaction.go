package ledger

import (
	"fmt"
	"time"
)

// PlanType identifies the subscription tier sold to a customer.
type PlanType string

const (
	PlanPlus        PlanType = "Plus"
	PlanGo          PlanType = "Go"
	PlanGoogleAIPro PlanType = "Google AI Pro"
)

// PlanTypes lists every valid plan, in display order.
func PlanTypes() []PlanType {
	return []PlanType{PlanPlus, PlanGo, PlanGoogleAIPro}
}

func (p PlanType) Valid() bool {
	switch p {
	case PlanPlus, PlanGo, PlanGoogleAIPro:
		return true
	}

	return false
}

// Transaction records a single sale. CostPrice and SalePrice are totals
// (unit value times Quantity), not per-unit amounts.
type Transaction struct {
	ID           string   `json:"id,omitempty"`
	OwnerID      string   `json:"ownerId,omitempty"`
	Date         string   `json:"date"`
	CustomerName string   `json:"customerName,omitempty"`
	PlanType     PlanType `json:"planType"`
	CostPrice    float64  `json:"costPrice"`
	SalePrice    float64  `json:"salePrice"`
	Quantity     int      `json:"quantity"`
	Currency     string   `json:"currency"`
	IsHistorical bool     `json:"isHistorical"`
	Notes        string   `json:"notes,omitempty"`
}

func (t Transaction) EntityID() string { return t.ID }

func (t Transaction) WithID(id string) Transaction {
	t.ID = id
	return t
}

func (t Transaction) WithOwner(ownerID string) Transaction {
	t.OwnerID = ownerID
	return t
}

// Normalized fills defaults the caller may omit: a zero quantity becomes 1.
func (t Transaction) Normalized() Transaction {
	if t.Quantity == 0 {
		t.Quantity = 1
	}

	return t
}

func (t Transaction) Validate() error {
	if t.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidRecord)
	}

	if !t.PlanType.Valid() {
		return fmt.Errorf("%w: unknown plan type %q", ErrInvalidRecord, t.PlanType)
	}

	if _, err := time.Parse(time.DateOnly, t.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRecord)
	}

	if t.CostPrice < 0 || t.SalePrice < 0 {
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidRecord)
	}

	return nil
}

// UnitCost is the per-unit cost attributed to this sale.
func (t Transaction) UnitCost() float64 {
	if t.Quantity < 1 {
		return t.CostPrice
	}

	return t.CostPrice / float64(t.Quantity)
}

// UnitSale is the per-unit sale price.
func (t Transaction) UnitSale() float64 {
	if t.Quantity < 1 {
		return t.SalePrice
	}

	return t.SalePrice / float64(t.Quantity)
}

// Rescale changes the quantity while holding unit economics fixed: both
// totals are scaled proportionally so UnitCost and UnitSale round-trip.
func (t Transaction) Rescale(quantity int) Transaction {
	if quantity < 1 || t.Quantity < 1 {
		return t
	}

	unitCost := t.UnitCost()
	unitSale := t.UnitSale()

	t.Quantity = quantity
	t.CostPrice = unitCost * float64(quantity)
	t.SalePrice = unitSale * float64(quantity)

	return t
}

// GrossProfit is the sale's margin before operating expenses.
func (t Transaction) GrossProfit() float64 {
	return t.SalePrice - t.CostPrice
}
