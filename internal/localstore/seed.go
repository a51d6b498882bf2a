package localstore

import "github.com/rudro-kalix/business-management/internal/ledger"

// SeedTransactions is the first-run dataset, so a fresh install does not open
// onto an empty dashboard. Not production data.
func SeedTransactions() []ledger.Transaction {
	return []ledger.Transaction{
		{
			ID:           "seed-t1",
			Date:         "2023-10-24",
			CustomerName: "Alice Johnson",
			PlanType:     ledger.PlanPlus,
			CostPrice:    20,
			SalePrice:    28,
			Quantity:     1,
			Currency:     "USD",
		},
		{
			ID:           "seed-t2",
			Date:         "2023-10-25",
			CustomerName: "TechCorp Inc",
			PlanType:     ledger.PlanGoogleAIPro,
			CostPrice:    50,
			SalePrice:    80,
			Quantity:     1,
			Currency:     "USD",
		},
		{
			ID:           "seed-t3",
			Date:         "2023-10-25",
			CustomerName: "Bob Smith",
			PlanType:     ledger.PlanPlus,
			CostPrice:    20,
			SalePrice:    28,
			Quantity:     1,
			Currency:     "USD",
		},
		{
			ID:           "seed-t4",
			Date:         "2023-10-26",
			CustomerName: "Charlie Brown",
			PlanType:     ledger.PlanGo,
			CostPrice:    100,
			SalePrice:    140,
			Quantity:     2,
			Currency:     "USD",
		},
	}
}

// SeedExpenses mirrors SeedTransactions for the expense ledger.
func SeedExpenses() []ledger.Expense {
	return []ledger.Expense{
		{
			ID:          "seed-e1",
			Date:        "2023-10-24",
			Category:    ledger.CategoryFacebookAds,
			Amount:      15,
			Description: "Launch campaign",
		},
		{
			ID:          "seed-e2",
			Date:        "2023-10-26",
			Category:    ledger.CategoryGmail,
			Amount:      4.5,
			Description: "3 fresh accounts",
		},
	}
}
