// Package metrics derives profitability figures from the in-memory ledger
// collections. Everything here is a pure function over a snapshot: no I/O,
// no cached aggregate state. Full recompute per call is fine at this volume.
package metrics

import (
	"math"
	"sort"

	"github.com/rudro-kalix/business-management/internal/ledger"
)

// Summary carries the lifetime totals shown on the dashboard cards. These
// are computed over the entire collection, historical records included.
type Summary struct {
	TotalRevenue float64 `json:"totalRevenue"`
	TotalCOGS    float64 `json:"totalCogs"`
	TotalOpEx    float64 `json:"totalOpEx"`
	NetProfit    float64 `json:"netProfit"`
	Margin       float64 `json:"margin"`
	SalesCount   int     `json:"salesCount"`
}

// Summarize computes lifetime totals. Margin is a percentage, defined as 0
// when there is no revenue. SalesCount sums quantities, not record count.
func Summarize(transactions []ledger.Transaction, expenses []ledger.Expense) Summary {
	var s Summary

	for _, t := range transactions {
		s.TotalRevenue += t.SalePrice
		s.TotalCOGS += t.CostPrice
		s.SalesCount += t.Normalized().Quantity
	}

	for _, e := range expenses {
		s.TotalOpEx += e.Amount
	}

	s.NetProfit = s.TotalRevenue - s.TotalCOGS - s.TotalOpEx

	if s.TotalRevenue > 0 {
		s.Margin = s.NetProfit / s.TotalRevenue * 100
	}

	return s
}

// BreakEven returns how many unit sales cover the given operating expenses.
// A contribution margin (unit sale minus unit cost) of zero or less makes
// the break-even point unreachable, reported via ok=false rather than a
// division error.
func BreakEven(unitSale, unitCost, totalOpEx float64) (sales int, ok bool) {
	contribution := unitSale - unitCost
	if contribution <= 0 {
		return 0, false
	}

	return int(math.Ceil(totalOpEx / contribution)), true
}

// TrendPoint is one date bucket of the profit trend chart.
type TrendPoint struct {
	Date   string  `json:"date"`
	Profit float64 `json:"profit"`
}

// ProfitTrend buckets gross profit by date, chronologically, truncated to
// the most recent n buckets. Historical records are bookkeeping backfill and
// are excluded from every trend series.
func ProfitTrend(transactions []ledger.Transaction, n int) []TrendPoint {
	byDate := make(map[string]float64)

	for _, t := range transactions {
		if t.IsHistorical {
			continue
		}

		byDate[t.Date] += t.GrossProfit()
	}

	points := make([]TrendPoint, 0, len(byDate))
	for date, profit := range byDate {
		points = append(points, TrendPoint{Date: date, Profit: profit})
	}

	// ISO dates sort chronologically as strings.
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	if n > 0 && len(points) > n {
		points = points[len(points)-n:]
	}

	return points
}

// PlanCount is one slice of the sales-by-plan breakdown.
type PlanCount struct {
	Plan  ledger.PlanType `json:"plan"`
	Count int             `json:"count"`
}

// SalesByPlan counts unit sales per plan type for the breakdown view,
// excluding historical records like every trend series. Plans with no sales
// are omitted.
func SalesByPlan(transactions []ledger.Transaction) []PlanCount {
	byPlan := make(map[ledger.PlanType]int)

	for _, t := range transactions {
		if t.IsHistorical {
			continue
		}

		byPlan[t.PlanType] += t.Normalized().Quantity
	}

	counts := make([]PlanCount, 0, len(byPlan))

	for _, plan := range ledger.PlanTypes() {
		if n := byPlan[plan]; n > 0 {
			counts = append(counts, PlanCount{Plan: plan, Count: n})
		}
	}

	return counts
}
