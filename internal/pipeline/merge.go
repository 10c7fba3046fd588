package pipeline

import (
	"fmt"
	"strings"

	"gradcafe/internal"
	"gradcafe/internal/util"
)

// MergeRows builds one canonical row per record. pairs must be aligned with records by index.
func MergeRows(records []internal.RawRecord, pairs []internal.StandardizedPair) ([]internal.CanonicalRow, error) {
	if len(records) != len(pairs) {
		return nil, fmt.Errorf("merge: %d records but %d standardized pairs", len(records), len(pairs))
	}

	out := make([]internal.CanonicalRow, 0, len(records))
	for i, rec := range records {
		out = append(out, mergeRow(rec, pairs[i]))
	}
	return out, nil
}

func mergeRow(rec internal.RawRecord, pair internal.StandardizedPair) internal.CanonicalRow {
	fields := ExtractFields(rec.ResultTextRaw)

	term := rec.TermInferred
	if term == nil || strings.TrimSpace(*term) == "" {
		term = fields.Term
	}

	comments := fields.Notes
	if comments == nil {
		comments = rec.CommentsRaw
	}

	return internal.CanonicalRow{
		ResultID:               rec.ResultID,
		Program:                CombineProgram(pair.Program, pair.University),
		Comments:               comments,
		DateAdded:              rec.DateAddedRaw,
		URL:                    rec.ApplicationURLRaw,
		Status:                 fields.Status(),
		Term:                   term,
		USOrInternational:      fields.CountryOrigin,
		GRE:                    util.NormalizeZero(fields.GREGeneral),
		GREV:                   util.NormalizeZero(fields.GREVerbal),
		Degree:                 fields.DegreeType,
		GPA:                    util.NormalizeZero(fields.UndergradGPA),
		GREAW:                  util.NormalizeZero(fields.GREAW),
		LLMGeneratedProgram:    pair.Program,
		LLMGeneratedUniversity: pair.University,
		HasStandardized:        true,
	}
}

// CombineProgram joins the cleaned program and university, falling back to
// whichever half is present.
func CombineProgram(program, university *string) *string {
	prog := util.Deref(program)
	uni := util.Deref(university)
	switch {
	case prog != "" && uni != "":
		return util.StringPtr(prog + ", " + uni)
	case prog != "":
		return util.StringPtr(prog)
	case uni != "":
		return util.StringPtr(uni)
	default:
		return nil
	}
}

// WithoutStandardized returns copies of rows that serialize without the
// service-derived program and university keys.
func WithoutStandardized(rows []internal.CanonicalRow) []internal.CanonicalRow {
	out := make([]internal.CanonicalRow, 0, len(rows))
	for _, row := range rows {
		row.LLMGeneratedProgram = nil
		row.LLMGeneratedUniversity = nil
		row.HasStandardized = false
		out = append(out, row)
	}
	return out
}
