package shared

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates. Zero bounds are open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether day falls inside the range.
func (r DateRange) Contains(day time.Time) bool {
	d := Day(day)
	if !r.Start.IsZero() && d.Before(Day(r.Start)) {
		return false
	}
	if !r.End.IsZero() && d.After(Day(r.End)) {
		return false
	}
	return true
}

// Validate rejects ranges whose start is after their end.
func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && Day(r.Start).After(Day(r.End)) {
		return Invalid("start date %s is after end date %s", r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date. Empty input yields the zero time.
func ParseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, Invalid("date %q must use YYYY-MM-DD", raw)
	}
	return t, nil
}

// StatementPeriod names a preset statement range.
type StatementPeriod string

// Statement period presets.
const (
	PeriodThisMonth   StatementPeriod = "this_month"
	PeriodLastMonth   StatementPeriod = "last_month"
	PeriodThisQuarter StatementPeriod = "this_quarter"
	PeriodLastQuarter StatementPeriod = "last_quarter"
	PeriodThisYear    StatementPeriod = "this_year"
	PeriodCustom      StatementPeriod = "custom"
)

// ResolvePeriod turns a preset into dates relative to today. Current periods end today,
// past periods end on their last day. PeriodCustom returns custom unchanged.
func ResolvePeriod(period StatementPeriod, today time.Time, custom DateRange) (DateRange, error) {
	today = Day(today)
	year, month := today.Year(), today.Month()
	quarterStart := time.Month(3*((int(month)-1)/3) + 1)

	switch period {
	case PeriodThisMonth:
		return DateRange{Start: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), End: today}, nil
	case PeriodLastMonth:
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return DateRange{Start: start, End: start.AddDate(0, 1, -1)}, nil
	case PeriodThisQuarter:
		return DateRange{Start: time.Date(year, quarterStart, 1, 0, 0, 0, 0, time.UTC), End: today}, nil
	case PeriodLastQuarter:
		start := time.Date(year, quarterStart, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -3, 0)
		return DateRange{Start: start, End: start.AddDate(0, 3, -1)}, nil
	case PeriodThisYear:
		return DateRange{Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), End: today}, nil
	case PeriodCustom, "":
		if err := custom.Validate(); err != nil {
			return DateRange{}, err
		}
		return custom, nil
	default:
		return DateRange{}, fmt.Errorf("%w: unknown statement period %q", ErrValidation, period)
	}
}

// Date is a calendar date that travels as YYYY-MM-DD in JSON.
type Date struct {
	time.Time
}

// NewDate wraps t truncated to its day.
func NewDate(t time.Time) Date {
	return Date{Time: Day(t)}
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "null" || raw == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Or returns the date, or the day of fallback when the date is unset.
func (d Date) Or(fallback time.Time) time.Time {
	if d.IsZero() {
		return Day(fallback)
	}
	return Day(d.Time)
}

// DatePtr converts an optional Date to an optional time.
func DatePtr(d *Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := Day(d.Time)
	return &t
}
