// Package calendar computes bank business days.
//
// A Calendar is assembled from rules that list the holidays of a given year.
// Holiday sets are computed the first time a year is queried and cached on the
// Calendar value, so a single Calendar can be built once per run and passed to
// whatever needs it.
package calendar

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// maxSearchDays bounds the search for the next business day. Weekends and
// holidays never cover more than a couple of weeks in a row, so hitting this
// limit means the calendar itself is broken.
const maxSearchDays = 366

// Holiday is a single closed day.
type Holiday struct {
	Date time.Time
	Name string

	// BankOnly marks days where banks are closed but which are not public
	// holidays.
	BankOnly bool
}

// Rule returns the holidays falling in the given year.
type Rule func(year int) []Holiday

// Calendar answers business-day questions for a fixed set of rules.
type Calendar struct {
	rules []Rule

	mu    sync.Mutex
	years map[int]map[dayKey]Holiday
}

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

// New returns a calendar closed on weekends and on every day produced by the
// given rules.
func New(rules ...Rule) *Calendar {
	return &Calendar{
		rules: rules,
		years: make(map[int]map[dayKey]Holiday),
	}
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// truncate drops the time of day while keeping the calendar date as seen in
// t's own location.
func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

func (c *Calendar) year(y int) map[dayKey]Holiday {
	c.mu.Lock()
	defer c.mu.Unlock()

	if set, ok := c.years[y]; ok {
		return set
	}

	set := make(map[dayKey]Holiday)
	for _, rule := range c.rules {
		for _, h := range rule(y) {
			k := keyOf(h.Date)
			if k.year != y {
				continue
			}
			// Public holidays win over bank-only closures on the same date.
			if existing, ok := set[k]; ok && !existing.BankOnly {
				continue
			}
			h.Date = truncate(h.Date)
			set[k] = h
		}
	}
	c.years[y] = set
	return set
}

// Holiday reports whether t falls on a holiday and returns its name.
func (c *Calendar) Holiday(t time.Time) (Holiday, bool) {
	k := keyOf(t)
	h, ok := c.year(k.year)[k]
	return h, ok
}

// IsWeekend reports whether t is a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsBusinessDay reports whether banks are open on t.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	if IsWeekend(t) {
		return false
	}
	_, closed := c.Holiday(t)
	return !closed
}

// NextBusinessDay returns the first business day strictly after t. The
// result is midnight UTC of that day.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	day := truncate(t)
	for i := 0; i < maxSearchDays; i++ {
		day = day.AddDate(0, 0, 1)
		if c.IsBusinessDay(day) {
			return day
		}
	}
	panic(fmt.Sprintf("calendar: no business day within %d days after %s", maxSearchDays, t.Format("2006-01-02")))
}

// Holidays returns the holidays of a year in date order.
func (c *Calendar) Holidays(year int) []Holiday {
	set := c.year(year)
	out := make([]Holiday, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// =============================================================================
// RULE HELPERS
// =============================================================================

// Fixed returns a rule for a holiday on the same date every year.
func Fixed(month time.Month, day int, name string, bankOnly bool) Rule {
	return func(year int) []Holiday {
		return []Holiday{{Date: Date(year, month, day), Name: name, BankOnly: bankOnly}}
	}
}

// EasterOffset returns a rule for a holiday a fixed number of days from
// Easter Sunday.
func EasterOffset(offset int, name string, bankOnly bool) Rule {
	return func(year int) []Holiday {
		return []Holiday{{Date: Easter(year).AddDate(0, 0, offset), Name: name, BankOnly: bankOnly}}
	}
}

// Until restricts a rule to years up to and including last.
func Until(last int, rule Rule) Rule {
	return func(year int) []Holiday {
		if year > last {
			return nil
		}
		return rule(year)
	}
}

// Dates returns a rule for one-off closures on specific dates.
func Dates(name string, dates ...time.Time) Rule {
	return func(year int) []Holiday {
		var out []Holiday
		for _, d := range dates {
			if d.Year() == year {
				out = append(out, Holiday{Date: truncate(d), Name: name, BankOnly: true})
			}
		}
		return out
	}
}

// Easter returns Easter Sunday of the given Gregorian year.
func Easter(year int) time.Time {
	// Anonymous Gregorian algorithm (Meeus/Jones/Butcher).
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return Date(year, time.Month(month), day)
}
