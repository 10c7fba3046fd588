package pipeline

import (
	"gradcafe/internal"
	"gradcafe/internal/util"
)

// NormalizeRecords returns cleaned copies of the records. The input slice is not modified.
func NormalizeRecords(records []internal.RawRecord) []internal.RawRecord {
	out := make([]internal.RawRecord, 0, len(records))
	for _, rec := range records {
		rec.ProgramRaw = util.TruncateProgramCell(rec.ProgramRaw)
		rec.CommentsRaw = util.CollapseWhitespace(rec.CommentsRaw)
		rec.StatusRaw = util.CollapseWhitespace(rec.StatusRaw)
		rec.ResultTextRaw = util.CollapseWhitespace(rec.ResultTextRaw)
		out = append(out, rec)
	}
	return out
}
