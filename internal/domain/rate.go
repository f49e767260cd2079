package domain

import "time"

// DateLayout is the calendar-date format used across the store, the
// provider queries and the CLI. Rates have no time-of-day component.
const DateLayout = "2006-01-02"

// USD is the pivot currency. Every stored rate is USD-relative and the
// USD/USD rate is 1.0 by definition, never fetched or persisted.
const USD = "USD"

// Bid is a requested exchange-rate lookup: the value of one unit of
// Base expressed in Quote on Date.
type Bid struct {
	Date  string
	Base  string
	Quote string
}

// USDBid is a derived lookup key for a USD-pivoted rate: "USD to
// Symbol on Date". A Bid with Base != Quote decomposes into two
// USDBids, one for each side.
type USDBid struct {
	Date   string
	Symbol string
}

// RateRecord is one persisted row of the rate store.
type RateRecord struct {
	Date   string
	Symbol string
	Rate   float64
}

// FormatDate renders t as a store date, dropping the time-of-day.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a store date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
