package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"gradcafe/internal"
	"gradcafe/internal/util"
)

var exportHeaders = []string{
	"result_id", "program", "comments", "date_added", "url", "status", "term",
	"US/International", "GRE Score", "GRE V Score", "Degree", "GPA", "GRE AW",
	"llm-generated-program", "llm-generated-university",
}

// ExportRowsToXLSX writes one sheet with a header row. The two service columns
// are left out when none of the rows carries them.
func ExportRowsToXLSX(rows []internal.CanonicalRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := exportHeaders
	if !anyStandardized(rows) {
		headers = exportHeaders[:len(exportHeaders)-2]
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, derefInt64(row.ResultID))
		set(2, util.Deref(row.Program))
		set(3, util.Deref(row.Comments))
		set(4, util.Deref(row.DateAdded))
		set(5, util.Deref(row.URL))
		set(6, util.Deref(row.Status))
		set(7, util.Deref(row.Term))
		set(8, util.Deref(row.USOrInternational))
		set(9, util.Deref(row.GRE))
		set(10, util.Deref(row.GREV))
		set(11, util.Deref(row.Degree))
		set(12, util.Deref(row.GPA))
		set(13, util.Deref(row.GREAW))
		if len(headers) == len(exportHeaders) {
			set(14, util.Deref(row.LLMGeneratedProgram))
			set(15, util.Deref(row.LLMGeneratedUniversity))
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// SaveRows writes rows as a JSON array.
func SaveRows(path string, rows []internal.CanonicalRow) error {
	if rows == nil {
		rows = []internal.CanonicalRow{}
	}
	return util.WriteJSONFile(path, rows)
}

func anyStandardized(rows []internal.CanonicalRow) bool {
	for _, row := range rows {
		if row.HasStandardized {
			return true
		}
	}
	return false
}

func derefInt64(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}
