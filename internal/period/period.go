package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPeriod = errors.New("invalid_period")
	ErrInvalidDate   = errors.New("invalid_date")
)

// Period is a calendar month used as the billing granularity.
type Period struct {
	Year  int
	Month time.Month
}

// Parse accepts YYYY-MM.
func Parse(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len("2006-01") {
		return Period{}, ErrInvalidPeriod
	}
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// Of returns the period containing t, evaluated in loc.
func Of(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return Period{Year: local.Year(), Month: local.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) Valid() bool {
	return p.Year > 0 && p.Year <= 9999 && p.Month >= time.January && p.Month <= time.December
}

// Bounds returns [first instant of the month, first instant of the next month).
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

func (p Period) Previous() Period {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return Period{Year: start.Year(), Month: start.Month()}
}

// Day is a single calendar date used by exact-date report filters.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts YYYY-MM-DD.
func ParseDate(raw string) (Day, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len("2006-01-02") {
		return Day{}, ErrInvalidDate
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return Day{}, ErrInvalidDate
	}
	return Day{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Day) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
