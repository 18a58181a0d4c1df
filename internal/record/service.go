package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/bread-tally/internal/counting"
	"github.com/zombor/bread-tally/internal/metrics"
)

var (
	// ErrInvalidSubmission is returned when the employee ID is missing or the image is missing or unreadable
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrNotConfigured is returned when the vision service is not configured
	ErrNotConfigured = errors.New("vision service is not configured")

	// ErrProcessing is returned when the vision service call fails
	ErrProcessing = errors.New("could not process image")
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles record ingestion and reporting
type Service struct {
	db         DB
	counter    counting.Counter
	timeSource TimeSource
	location   *time.Location
}

// NewService creates a new Service; loc sets the day boundary for daily totals
func NewService(db DB, counter counting.Counter, loc *time.Location) *Service {
	return NewServiceWithDeps(db, counter, &defaultTimeSource{}, loc)
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, counter counting.Counter, timeSrc TimeSource, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		db:         db,
		counter:    counter,
		timeSource: timeSrc,
		location:   loc,
	}
}

// Submit counts the bread in the captured image and persists a record.
// Nothing is written unless the count succeeds.
func (s *Service) Submit(ctx context.Context, who Identity, sub Submission) (*Record, error) {
	if who.EmployeeID == "" {
		metrics.IngestionFailuresTotal.WithLabelValues(metrics.ReasonInvalid).Inc()
		return nil, fmt.Errorf("%w: employee id is required", ErrInvalidSubmission)
	}
	if sub.ImagePayload == "" {
		metrics.IngestionFailuresTotal.WithLabelValues(metrics.ReasonInvalid).Inc()
		return nil, fmt.Errorf("%w: image is required", ErrInvalidSubmission)
	}
	if s.counter == nil {
		metrics.IngestionFailuresTotal.WithLabelValues(metrics.ReasonConfiguration).Inc()
		return nil, ErrNotConfigured
	}

	start := time.Now()
	count, err := s.counter.Count(ctx, sub.ImagePayload)
	metrics.EstimateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, counting.ErrMissingCredentials) {
			metrics.IngestionFailuresTotal.WithLabelValues(metrics.ReasonConfiguration).Inc()
			return nil, fmt.Errorf("%w: %w", ErrNotConfigured, err)
		}
		if errors.Is(err, counting.ErrEmptyImage) || errors.Is(err, counting.ErrInvalidImage) {
			metrics.IngestionFailuresTotal.WithLabelValues(metrics.ReasonInvalid).Inc()
			return nil, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
		}
		slog.Error("Failed to count bread",
			"employee_id", who.EmployeeID,
			"payload_size", len(sub.ImagePayload),
			"error", err,
		)
		metrics.IngestionFailuresTotal.WithLabelValues(metrics.ReasonProcessing).Inc()
		return nil, fmt.Errorf("%w: %w", ErrProcessing, err)
	}
	if count < 0 {
		count = 0
	}

	cash := sub.CashAmount
	if cash.IsNegative() {
		cash = decimal.Zero
	}

	record := &Record{
		EmployeeID:   who.EmployeeID,
		EmployeeName: who.EmployeeName,
		ProviderName: sub.ProviderName,
		BreadCount:   count,
		CashAmount:   cash,
		ImagePayload: sub.ImagePayload,
		CapturedAt:   s.timeSource.Now(),
	}

	if err := s.db.CreateRecord(record); err != nil {
		metrics.IngestionFailuresTotal.WithLabelValues(metrics.ReasonStore).Inc()
		return nil, fmt.Errorf("saving record to database: %w", err)
	}

	metrics.RecordsCreatedTotal.Inc()
	metrics.BreadsCountedTotal.Add(float64(count))
	return record, nil
}

// ListRecords returns every record for privileged callers and only their own otherwise
func (s *Service) ListRecords(who Identity) ([]*Record, error) {
	var (
		records []*Record
		err     error
	)
	if who.Privileged() {
		records, err = s.db.ListRecords()
	} else {
		records, err = s.db.ListRecordsForEmployee(who.EmployeeID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// Statistics returns the daily and per-employee rollups
func (s *Service) Statistics() (*Statistics, error) {
	records, err := s.db.ListTallies()
	if err != nil {
		return nil, fmt.Errorf("listing tallies: %w", err)
	}

	return &Statistics{
		DailyTotals:    dailyTotals(records, s.location, maxDailyTotals),
		EmployeeTotals: employeeTotals(records),
	}, nil
}

// DailyTotals returns the rollup for the most recent days that have records
func (s *Service) DailyTotals() ([]DailyTotal, error) {
	records, err := s.db.ListTallies()
	if err != nil {
		return nil, fmt.Errorf("listing tallies: %w", err)
	}
	return dailyTotals(records, s.location, maxDailyTotals), nil
}

// EmployeeTotals returns the all-time rollup per employee name
func (s *Service) EmployeeTotals() ([]EmployeeTotal, error) {
	records, err := s.db.ListTallies()
	if err != nil {
		return nil, fmt.Errorf("listing tallies: %w", err)
	}
	return employeeTotals(records), nil
}
