package storage

import (
	"fmt"
	"strings"
	"time"

	"gradcafe/internal"
	"gradcafe/internal/util"
)

// Applicant is one persisted row of the applicants table.
type Applicant struct {
	PID                    int64
	ResultID               int64
	Program                *string
	Comments               *string
	DateAdded              *time.Time
	URL                    *string
	Status                 *string
	Term                   *string
	USOrInternational      *string
	GPA                    *float64
	GRE                    *float64
	GREV                   *float64
	GREAW                  *float64
	Degree                 *string
	LLMGeneratedProgram    *string
	LLMGeneratedUniversity *string
}

// ApplicantFromRow converts a canonical row. Rows without a result_id cannot be stored.
func ApplicantFromRow(row internal.CanonicalRow) (Applicant, bool) {
	if row.ResultID == nil {
		return Applicant{}, false
	}
	return Applicant{
		ResultID:               *row.ResultID,
		Program:                row.Program,
		Comments:               row.Comments,
		DateAdded:              util.ParseDateAdded(row.DateAdded),
		URL:                    row.URL,
		Status:                 row.Status,
		Term:                   row.Term,
		USOrInternational:      row.USOrInternational,
		GPA:                    util.ParseFloat(row.GPA),
		GRE:                    util.ParseFloat(row.GRE),
		GREV:                   util.ParseFloat(row.GREV),
		GREAW:                  util.ParseFloat(row.GREAW),
		Degree:                 row.Degree,
		LLMGeneratedProgram:    row.LLMGeneratedProgram,
		LLMGeneratedUniversity: row.LLMGeneratedUniversity,
	}, true
}

// applicantColumns are the nullable columns merged with COALESCE on conflict.
var applicantColumns = []string{
	"program", "comments", "date_added", "url", "status", "term",
	"us_or_international", "gpa", "gre", "gre_v", "gre_aw", "degree",
	"llm_generated_program", "llm_generated_university",
}

// upsertApplicantSQL builds the insert statement. placeholder returns the
// driver's bind marker for the n-th (1-based) argument.
func upsertApplicantSQL(placeholder func(n int) string) string {
	cols := append([]string{"result_id"}, applicantColumns...)
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = placeholder(i + 1)
	}
	sets := make([]string, len(applicantColumns))
	for i, col := range applicantColumns {
		sets[i] = fmt.Sprintf("  %s = COALESCE(applicants.%s, excluded.%s)", col, col, col)
	}
	return fmt.Sprintf(
		"INSERT INTO applicants (%s)\nVALUES (%s)\nON CONFLICT (result_id) DO UPDATE SET\n%s",
		strings.Join(cols, ", "), strings.Join(marks, ", "), strings.Join(sets, ",\n"),
	)
}

const selectApplicantSQL = `
SELECT p_id, result_id, program, comments, date_added, url, status, term,
       us_or_international, gpa, gre, gre_v, gre_aw, degree,
       llm_generated_program, llm_generated_university
FROM applicants WHERE result_id = `

func countUpsertable(rows []internal.CanonicalRow) int {
	n := 0
	for _, row := range rows {
		if row.ResultID != nil {
			n++
		}
	}
	return n
}
