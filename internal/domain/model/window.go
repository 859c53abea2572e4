package model

import (
	"fmt"
	"time"
)

// DayLayout is the wire and storage format of calendar days.
const DayLayout = "2006-01-02"

// Day truncates t to its calendar day at UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// Window is an inclusive range of calendar days.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow builds a window from two days in either order.
func NewWindow(from, to time.Time) Window {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		from, to = to, from
	}
	return Window{From: from, To: to}
}

// ReportWindow returns the trailing window covering `months` calendar
// months up to and including the month of `to`, truncated at `to`.
// ReportWindow(2024-03-31, 3) is 2024-01-01..2024-03-31.
func ReportWindow(to time.Time, months int) Window {
	if months < 1 {
		months = 1
	}
	to = Day(to)
	from := time.Date(to.Year(), to.Month()-time.Month(months-1), 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: to}
}

// Contains reports whether day d lies in the window.
func (w Window) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(w.From) && !d.After(w.To)
}

// Days returns the number of calendar days in the window.
func (w Window) Days() int {
	return int(w.To.Sub(w.From).Hours()/24) + 1
}

// Previous returns the window of the same duration that ends the day
// before w begins. Windows covering whole calendar months shift by that
// many months, so a quarter maps to the previous quarter; every other
// window shifts by its length in days.
func (w Window) Previous() Window {
	to := w.From.AddDate(0, 0, -1)
	if w.wholeMonths() {
		months := (w.To.Year()-w.From.Year())*12 + int(w.To.Month()-w.From.Month()) + 1
		return Window{From: w.From.AddDate(0, -months, 0), To: to}
	}
	return Window{From: to.AddDate(0, 0, -(w.Days() - 1)), To: to}
}

// wholeMonths reports whether w starts on the first of a month and ends on
// the last day of a month.
func (w Window) wholeMonths() bool {
	return w.From.Day() == 1 && w.To.AddDate(0, 0, 1).Day() == 1
}

func (w Window) String() string {
	return w.From.Format(DayLayout) + ".." + w.To.Format(DayLayout)
}
