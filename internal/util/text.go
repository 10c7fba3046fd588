package util

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// programCellMarkers are checked in this order; the first one present wins.
var programCellMarkers = []string{
	" Accepted", " Rejected", " Interview", " Wait",
	" Fall ", " Spring ", " Summer ", " Winter ",
	" International", " Domestic", " GPA", " Gpa", " GRE",
}

func CollapseWhitespace(input *string) *string {
	if input == nil {
		return nil
	}
	out := strings.Join(strings.Fields(*input), " ")
	return &out
}

// TruncateProgramCell cuts the listing's program cell before the first
// decision, term, nationality or score marker that leaked into it.
func TruncateProgramCell(input *string) *string {
	collapsed := CollapseWhitespace(input)
	if collapsed == nil {
		return nil
	}
	s := *collapsed
	for _, marker := range programCellMarkers {
		if idx := strings.Index(s, marker); idx != -1 {
			s = strings.TrimSpace(s[:idx])
			break
		}
	}
	return &s
}

func TitleCase(input string) string {
	return cases.Title(language.English).String(input)
}

func TrimOrNil(input string) *string {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil
	}
	return &s
}
