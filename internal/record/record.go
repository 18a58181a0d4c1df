package record

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one counted bread delivery. Records are never modified after creation.
type Record struct {
	ID           uint64          `json:"id"`
	EmployeeID   string          `json:"employee_id"`
	EmployeeName string          `json:"employee_name"` // snapshot at submission time
	ProviderName string          `json:"provider_name"`
	BreadCount   int             `json:"bread_count"`
	CashAmount   decimal.Decimal `json:"cash_amount"`
	ImagePayload string          `json:"image"`
	CapturedAt   time.Time       `json:"captured_at"`
}

// Role is the privilege level of a user
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Identity is a verified caller, resolved server-side by an IdentityResolver
type Identity struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Role         Role   `json:"role"`
}

// Privileged reports whether the caller may see every record
func (i Identity) Privileged() bool {
	return i.Role == RoleAdmin
}

// Submission carries the capture metadata sent by the caller
type Submission struct {
	ProviderName string
	CashAmount   decimal.Decimal
	ImagePayload string
}

// DailyTotal is the rollup of all records captured on one calendar date
type DailyTotal struct {
	Date      string          `json:"date"` // YYYY-MM-DD
	Total     int             `json:"total"`
	TotalCash decimal.Decimal `json:"total_cash"`
}

// EmployeeTotal is the rollup of all records submitted under one employee name
type EmployeeTotal struct {
	EmployeeName string          `json:"employee_name"`
	Total        int             `json:"total"`
	TotalCash    decimal.Decimal `json:"total_cash"`
}

// Statistics bundles both rollups
type Statistics struct {
	DailyTotals    []DailyTotal    `json:"daily_totals"`
	EmployeeTotals []EmployeeTotal `json:"employee_totals"`
}
