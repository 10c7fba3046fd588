package pipeline

import (
	"regexp"
	"strings"

	"gradcafe/internal"
	"gradcafe/internal/util"
)

// Each rule matches independently against the whole detail blob.
var (
	reDecision         = regexp.MustCompile(`Decision\s+(.+?)\s+Notification`)
	reNotificationDate = regexp.MustCompile(`Notification\s+on\s+(\d{2}/\d{2}/\d{4})`)
	reNotes            = regexp.MustCompile(`(?s)Notes\s+(.*?)\s+Timeline`)
	reDegreeType       = regexp.MustCompile(`Degree\s+Type\s+([A-Za-z.]+)`)
	reCountryOrigin    = regexp.MustCompile(`Degree's\s+Country\s+of\s+Origin\s+([A-Za-z]+)`)
	reUndergradGPA     = regexp.MustCompile(`Undergrad\s+GPA\s+([0-4]\.\d{1,2})`)
	reGREGeneral       = regexp.MustCompile(`GRE\s+General:\s*([0-9]+)`)
	reGREVerbal        = regexp.MustCompile(`GRE\s+Verbal:\s*([0-9]+)`)
	reGREAW            = regexp.MustCompile(`Analytical\s+Writing:\s*([0-6](?:\.\d{1,2})?)`)
	reTerm             = regexp.MustCompile(`(?i)\b(Spring|Summer|Fall|Autumn|Winter)\s+(20\d{2})\b`)
)

func firstGroup(re *regexp.Regexp, text *string) *string {
	if text == nil {
		return nil
	}
	m := re.FindStringSubmatch(*text)
	if len(m) < 2 {
		return nil
	}
	return &m[1]
}

func ExtractDecision(text *string) *string {
	m := firstGroup(reDecision, text)
	if m == nil {
		return nil
	}
	s := strings.TrimSpace(*m)
	return &s
}

func ExtractNotificationDate(text *string) *string {
	return firstGroup(reNotificationDate, text)
}

func ExtractNotes(text *string) *string {
	m := firstGroup(reNotes, text)
	if m == nil {
		return nil
	}
	return util.CollapseWhitespace(m)
}

func ExtractDegreeType(text *string) *string {
	return firstGroup(reDegreeType, text)
}

func ExtractCountryOrigin(text *string) *string {
	return firstGroup(reCountryOrigin, text)
}

func ExtractUndergradGPA(text *string) *string {
	return firstGroup(reUndergradGPA, text)
}

func ExtractGREGeneral(text *string) *string {
	return firstGroup(reGREGeneral, text)
}

func ExtractGREVerbal(text *string) *string {
	return firstGroup(reGREVerbal, text)
}

func ExtractGREAW(text *string) *string {
	return firstGroup(reGREAW, text)
}

// ExtractTerm returns "<Season> <Year>" with Autumn folded into Fall.
func ExtractTerm(text *string) *string {
	if text == nil {
		return nil
	}
	m := reTerm.FindStringSubmatch(*text)
	if len(m) < 3 {
		return nil
	}
	season := util.TitleCase(m[1])
	if season == "Autumn" {
		season = "Fall"
	}
	term := season + " " + m[2]
	return &term
}

// ExtractFields runs every rule over one detail blob. Misses yield nil fields.
func ExtractFields(text *string) internal.ExtractedFields {
	fields := internal.ExtractedFields{
		Decision:         ExtractDecision(text),
		NotificationDate: ExtractNotificationDate(text),
		DegreeType:       ExtractDegreeType(text),
		CountryOrigin:    ExtractCountryOrigin(text),
		UndergradGPA:     ExtractUndergradGPA(text),
		GREGeneral:       ExtractGREGeneral(text),
		GREVerbal:        ExtractGREVerbal(text),
		GREAW:            ExtractGREAW(text),
		Term:             ExtractTerm(text),
		Notes:            ExtractNotes(text),
	}

	if fields.Decision != nil {
		fields.Decision = util.StringPtr(util.TitleCase(*fields.Decision))
	}
	if fields.CountryOrigin != nil && *fields.CountryOrigin == internal.OriginDomestic {
		fields.CountryOrigin = util.StringPtr(internal.OriginAmerican)
	}

	return fields
}
