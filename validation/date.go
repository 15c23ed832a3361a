package validation

import "time"

// EndOfDayUTC returns the last second of dateStr (YYYY-MM-DD) in UTC,
// matching spec.md §3's "end_of_day(maturity_date)" deadline anchor.
func EndOfDayUTC(dateStr string) (int64, error) {
	d, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return 0, err
	}
	eod := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.UTC)
	return eod.Unix(), nil
}
