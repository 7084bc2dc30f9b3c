package exporter

import (
	"time"

	"pitalign/pkg/contracts/domain"
)

const (
	dateLayout    = "2006-01-02"
	instantLayout = time.RFC3339
)

// hasClock reports whether any date carries a time of day
func hasClock(dates []time.Time) bool {
	for _, d := range dates {
		h, m, s := d.Clock()
		if h != 0 || m != 0 || s != 0 || d.Nanosecond() != 0 {
			return true
		}
	}
	return false
}

// dateFormatter picks one layout for the whole index so the column sorts
func dateFormatter(dates []time.Time) func(time.Time) string {
	if hasClock(dates) {
		return func(t time.Time) string { return t.Format(instantLayout) }
	}
	return func(t time.Time) string { return t.Format(dateLayout) }
}

// formatValue renders a cell for text output; null renders as ""
func formatValue(v domain.Value) string {
	return v.String()
}
