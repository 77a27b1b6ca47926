package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ebcovid/caseledger/internal/diag"
)

// Month names are matched case-insensitively by time.Parse.
var dateLayouts = []string{"January 2 2006", "Jan 2 2006"}

// ResolveDate turns a "Month D" or "Month D, YYYY" fragment into a calendar
// date. A year embedded in the fragment wins over fallbackYear.
// Unresolvable fragments report a date_malformed diagnostic and return false.
func (e *Extractor) ResolveDate(fragment string, fallbackYear int) (time.Time, bool) {
	m := e.set.date.FindStringSubmatch(fragment)
	if m == nil {
		e.reportDate("", fragment, "no month/day in fragment", nil)
		return time.Time{}, false
	}
	return e.resolveMatch(e.set.date, m, "", fragment, fallbackYear, nil)
}

func (e *Extractor) resolveMatch(re *regexp.Regexp, m []string, field Field, text string, fallbackYear int, caseNumber *int) (time.Time, bool) {
	month := m[re.SubexpIndex("month")]
	day := m[re.SubexpIndex("day")]
	year := strconv.Itoa(fallbackYear)
	if i := re.SubexpIndex("year"); i >= 0 && m[i] != "" {
		year = m[i]
	}

	t, err := parseDate(month, day, year)
	if err != nil {
		e.reportDate(field, text, err.Error(), caseNumber)
		return time.Time{}, false
	}
	return t, true
}

func parseDate(month, day, year string) (time.Time, error) {
	value := strings.Join([]string{month, day, year}, " ")
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func (e *Extractor) reportDate(field Field, text, detail string, caseNumber *int) {
	e.sink.Report(diag.Diagnostic{
		Kind:       diag.KindDateMalformed,
		Field:      field.String(),
		Text:       text,
		Detail:     detail,
		CaseNumber: caseNumber,
	})
}
