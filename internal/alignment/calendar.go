package alignment

import (
	"time"

	apperrors "pitalign/internal/errors"
	"pitalign/pkg/contracts/domain"
)

// ValidateCalendar enforces the reindex target's shape: one index dimension
// named Date, at least one date, strictly increasing, at least one entity.
func ValidateCalendar(cal domain.TargetCalendar) error {
	for _, name := range cal.IndexNames {
		if name == "Time" {
			return apperrors.NewParameterError("reindex_like should not have 'Time' in index")
		}
	}
	if len(cal.IndexNames) != 1 || cal.IndexNames[0] != domain.DateIndexName {
		return apperrors.NewParameterError("reindex_like must have index called 'Date'")
	}
	if len(cal.Dates) == 0 {
		return apperrors.NewParameterError("reindex_like must have a DatetimeIndex")
	}
	for i := 1; i < len(cal.Dates); i++ {
		if !cal.Dates[i].After(cal.Dates[i-1]) {
			return apperrors.NewParameterError("reindex_like must have a DatetimeIndex with strictly increasing dates (%s follows %s)",
				cal.Dates[i].Format(time.RFC3339), cal.Dates[i-1].Format(time.RFC3339))
		}
	}
	if len(cal.Entities) == 0 {
		return apperrors.NewParameterError("reindex_like must have at least one column")
	}
	seen := make(map[string]struct{}, len(cal.Entities))
	for _, e := range cal.Entities {
		if _, dup := seen[e]; dup {
			return apperrors.NewParameterError("reindex_like has duplicate column %s", e)
		}
		seen[e] = struct{}{}
	}
	return nil
}

// civil drops the location, keeping the wall clock.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// civilDate keeps only the wall-clock date.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// calendarStamps returns the civil comparison timestamp for every calendar row.
func calendarStamps(cal domain.TargetCalendar, mode IntradayMode) []time.Time {
	stamps := make([]time.Time, len(cal.Dates))
	at, asOf := mode.(AsOfTime)
	for i, d := range cal.Dates {
		if asOf {
			stamps[i] = civilDate(d).Add(at.Clock)
		} else {
			stamps[i] = civil(d)
		}
	}
	return stamps
}
