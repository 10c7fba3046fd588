package internal

type Decision string

const (
	DecisionAccepted Decision = "Accepted"
	DecisionRejected Decision = "Rejected"
)

const (
	OriginDomestic      = "Domestic"
	OriginAmerican      = "American"
	OriginInternational = "International"
)

// RawRecord is one scraped survey row plus the text of its detail page.
type RawRecord struct {
	ResultID          *int64  `json:"result_id"`
	UniversityRaw     *string `json:"university_raw"`
	ProgramRaw        *string `json:"program_raw"`
	DateAddedRaw      *string `json:"date_added_raw"`
	StatusRaw         *string `json:"status_raw"`
	CommentsRaw       *string `json:"comments_raw"`
	ApplicationURLRaw *string `json:"application_url_raw"`
	ResultTextRaw     *string `json:"result_text_raw"`
	TermInferred      *string `json:"term_inferred,omitempty"`
}

type ExtractedFields struct {
	Decision         *string
	NotificationDate *string
	DegreeType       *string
	CountryOrigin    *string
	UndergradGPA     *string
	GREGeneral       *string
	GREVerbal        *string
	GREAW            *string
	Term             *string
	Notes            *string
}

func (f ExtractedFields) Status() *string {
	switch {
	case f.Decision != nil && f.NotificationDate != nil:
		s := *f.Decision + " on " + *f.NotificationDate
		return &s
	case f.Decision != nil:
		s := *f.Decision
		return &s
	default:
		return nil
	}
}

func (f ExtractedFields) AcceptanceDate() *string {
	if f.Decision != nil && Decision(*f.Decision) == DecisionAccepted {
		return f.NotificationDate
	}
	return nil
}

func (f ExtractedFields) RejectionDate() *string {
	if f.Decision != nil && Decision(*f.Decision) == DecisionRejected {
		return f.NotificationDate
	}
	return nil
}

// StandardizedPair is the standardization service output for one normalization key.
type StandardizedPair struct {
	Program    *string `json:"llm-generated-program"`
	University *string `json:"llm-generated-university"`
}

type CanonicalRow struct {
	ResultID               *int64  `json:"result_id"`
	Program                *string `json:"program"`
	Comments               *string `json:"comments"`
	DateAdded              *string `json:"date_added"`
	URL                    *string `json:"url"`
	Status                 *string `json:"status"`
	Term                   *string `json:"term"`
	USOrInternational      *string `json:"US/International"`
	GRE                    *string `json:"GRE Score"`
	GREV                   *string `json:"GRE V Score"`
	Degree                 *string `json:"Degree"`
	GPA                    *string `json:"GPA"`
	GREAW                  *string `json:"GRE AW"`
	LLMGeneratedProgram    *string `json:"llm-generated-program"`
	LLMGeneratedUniversity *string `json:"llm-generated-university"`

	// HasStandardized controls whether the two service-derived keys are
	// written when the row is serialized. They are written as null when unset.
	HasStandardized bool `json:"-"`
}

type RunCounts struct {
	Raw         int `json:"raw"`
	UniqueKeys  int `json:"uniqueKeys"`
	Batches     int `json:"batches"`
	Merged      int `json:"merged"`
	NewInMaster int `json:"newInMaster"`
	Upserted    int `json:"upserted"`
}
