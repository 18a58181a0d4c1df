package record

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "2006-01-02"
	maxDailyTotals = 7
)

// dailyTotals groups records by calendar date in loc and keeps the newest limit dates
func dailyTotals(records []*Record, loc *time.Location, limit int) []DailyTotal {
	byDate := make(map[string]*DailyTotal)
	for _, r := range records {
		date := r.CapturedAt.In(loc).Format(dateLayout)
		total, ok := byDate[date]
		if !ok {
			total = &DailyTotal{Date: date, TotalCash: decimal.Zero}
			byDate[date] = total
		}
		total.Total += r.BreadCount
		total.TotalCash = total.TotalCash.Add(r.CashAmount)
	}

	totals := make([]DailyTotal, 0, len(byDate))
	for _, t := range byDate {
		totals = append(totals, *t)
	}
	// The layout sorts lexically in date order
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Date > totals[j].Date
	})

	if len(totals) > limit {
		totals = totals[:limit]
	}
	return totals
}

// employeeTotals groups records by employee name across all time
func employeeTotals(records []*Record) []EmployeeTotal {
	byName := make(map[string]*EmployeeTotal)
	for _, r := range records {
		total, ok := byName[r.EmployeeName]
		if !ok {
			total = &EmployeeTotal{EmployeeName: r.EmployeeName, TotalCash: decimal.Zero}
			byName[r.EmployeeName] = total
		}
		total.Total += r.BreadCount
		total.TotalCash = total.TotalCash.Add(r.CashAmount)
	}

	totals := make([]EmployeeTotal, 0, len(byName))
	for _, t := range byName {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].EmployeeName < totals[j].EmployeeName
	})
	return totals
}
