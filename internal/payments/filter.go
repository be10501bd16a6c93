package payments

import (
	"strings"
	"time"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
)

// Filter narrows the payment list client-side. Zero-valued fields match
// everything.
type Filter struct {
	Search     string
	Status     string
	DateFrom   string // YYYY-MM-DD, inclusive
	DateTo     string // YYYY-MM-DD, inclusive (whole day)
	AmountFrom *float64
	AmountTo   *float64
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Search) == "" && f.Status == "" &&
		f.DateFrom == "" && f.DateTo == "" && f.AmountFrom == nil && f.AmountTo == nil
}

// Apply returns the records matching the filter.
func (f Filter) Apply(records []models.PaymentRecord) []models.PaymentRecord {
	if f.IsZero() {
		return records
	}

	var out []models.PaymentRecord
	for _, r := range records {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) matches(r models.PaymentRecord) bool {
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		haystack := strings.ToLower(r.Reference + " " + r.Description + " " + r.PaymentID)
		if !strings.Contains(haystack, search) {
			return false
		}
	}

	if f.Status != "" && r.Status != f.Status {
		return false
	}

	if f.DateFrom != "" || f.DateTo != "" {
		created, ok := parseRecordTime(r.CreatedAt)
		if !ok {
			return false
		}
		if f.DateFrom != "" {
			if from, err := time.ParseInLocation("2006-01-02", f.DateFrom, time.Local); err == nil && created.Before(from) {
				return false
			}
		}
		if f.DateTo != "" {
			if to, err := time.ParseInLocation("2006-01-02", f.DateTo, time.Local); err == nil {
				// Inclusive: anything up to the end of the day passes.
				if created.After(to.Add(24*time.Hour - time.Nanosecond)) {
					return false
				}
			}
		}
	}

	if f.AmountFrom != nil && r.Amount < *f.AmountFrom {
		return false
	}
	if f.AmountTo != nil && r.Amount > *f.AmountTo {
		return false
	}
	return true
}

var recordTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseRecordTime(s string) (time.Time, bool) {
	for _, layout := range recordTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
