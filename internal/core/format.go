package core

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var germanMonths = [...]string{
	"Jan", "Feb", "Mär", "Apr", "Mai", "Jun",
	"Jul", "Aug", "Sep", "Okt", "Nov", "Dez",
}

// FormatEuro renders an amount the de-DE way, e.g. "1.234,56 €".
func FormatEuro(a Amount) string {
	p := message.NewPrinter(language.German)
	return p.Sprint(number.Decimal(RoundCents(a).InexactFloat64(), number.Scale(2))) + " €"
}

// FormatDate renders t as dd.MM.yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// FormatDateString renders an ISO date string as dd.MM.yyyy, or "-" when it
// cannot be parsed.
func FormatDateString(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return "-"
	}
	return FormatDate(t)
}

// MonthLabel renders a month as "Jan 2026".
func MonthLabel(year int, month time.Month) string {
	if month < time.January || month > time.December {
		return ""
	}
	return germanMonths[month-1] + " " + time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006")
}
