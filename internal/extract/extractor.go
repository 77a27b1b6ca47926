// Package extract pulls typed case fields out of free-form case entry text
// using a versioned pattern set.
package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/ebcovid/caseledger/internal/diag"
	"github.com/ebcovid/caseledger/internal/domain"
)

// Extractor applies one pattern set. It never returns errors: every miss is
// reported to the sink and surfaces as an absent value.
// An Extractor is safe for concurrent use when its sink is.
type Extractor struct {
	set  *PatternSet
	sink diag.Sink
}

// New creates an Extractor. A nil sink discards diagnostics.
func New(set *PatternSet, sink diag.Sink) *Extractor {
	if sink == nil {
		sink = diag.Discard
	}
	return &Extractor{set: set, sink: sink}
}

// PatternSet returns the id of the set in use.
func (e *Extractor) PatternSet() string { return e.set.ID }

// Prepare returns the text the patterns are applied to.
func (e *Extractor) Prepare(text string) string {
	if e.set.Sanitize {
		return Sanitize(text)
	}
	return text
}

// Matches reports whether the field's pattern or date template matches text.
// It never reports diagnostics.
func (e *Extractor) Matches(field Field, text string) bool {
	if re, ok := e.set.dates[field]; ok {
		return re.MatchString(text)
	}
	if re, ok := e.set.fields[field]; ok {
		return re.MatchString(text)
	}
	return false
}

// Text returns the first capture of the field's pattern, trimmed.
func (e *Extractor) Text(field Field, text string) (string, bool) {
	return e.text(field, text, nil)
}

// Number returns the field's capture as an integer, ignoring "," grouping
// separators.
func (e *Extractor) Number(field Field, text string) (int, bool) {
	return e.number(field, text, nil)
}

// Date applies the field's date template and resolves the captured fragment.
func (e *Extractor) Date(field Field, text string, fallbackYear int) (time.Time, bool) {
	return e.date(field, text, fallbackYear, nil)
}

// Case extracts every field of a case entry posted on posted. Dates without
// a year take the posting year.
func (e *Extractor) Case(text string, posted time.Time) domain.CaseRecord {
	text = e.Prepare(text)
	rec := domain.CaseRecord{PostedDate: posted, Text: text}

	if n, ok := e.number(FieldCaseNumber, text, nil); ok {
		rec.CaseNumber = &n
	}
	cn := rec.CaseNumber

	rec.FacilityRaw = e.name(FieldFacility, text, cn)
	rec.DepartmentRaw = e.name(FieldDepartment, text, cn)
	rec.BuildingRaw = e.name(FieldBuilding, text, cn)

	if d, ok := e.date(FieldLastWorkDate, text, posted.Year(), cn); ok {
		rec.LastWorkDate = &d
	}
	if d, ok := e.date(FieldTestedDate, text, posted.Year(), cn); ok {
		rec.TestedDate = &d
	}
	return rec
}

func (e *Extractor) name(field Field, text string, cn *int) *string {
	s, ok := e.text(field, text, cn)
	if !ok {
		return nil
	}
	return domain.NormalizeNamePtr(&s)
}

func (e *Extractor) text(field Field, text string, cn *int) (string, bool) {
	re, ok := e.set.fields[field]
	if !ok {
		e.miss(field, text, "no pattern for field", cn)
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		e.miss(field, text, "", cn)
		return "", false
	}
	v := strings.TrimSpace(m[1])
	if v == "" {
		e.miss(field, text, "empty capture", cn)
		return "", false
	}
	return v, true
}

func (e *Extractor) number(field Field, text string, cn *int) (int, bool) {
	s, ok := e.text(field, text, cn)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if err != nil {
		e.miss(field, text, "not a number: "+s, cn)
		return 0, false
	}
	return n, true
}

func (e *Extractor) date(field Field, text string, fallbackYear int, cn *int) (time.Time, bool) {
	re, ok := e.set.dates[field]
	if !ok {
		e.miss(field, text, "no template for field", cn)
		return time.Time{}, false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		e.miss(field, text, "", cn)
		return time.Time{}, false
	}
	return e.resolveMatch(re, m, field, text, fallbackYear, cn)
}

func (e *Extractor) miss(field Field, text, detail string, cn *int) {
	e.sink.Report(diag.Diagnostic{
		Kind:       diag.KindExtractionMiss,
		Field:      field.String(),
		Text:       text,
		Detail:     detail,
		CaseNumber: cn,
	})
}
