package internal

import "encoding/json"

type canonicalRow CanonicalRow

type rowWithoutStandardized struct {
	canonicalRow
	LLMGeneratedProgram    *string `json:"llm-generated-program,omitempty"`
	LLMGeneratedUniversity *string `json:"llm-generated-university,omitempty"`
}

func (r CanonicalRow) MarshalJSON() ([]byte, error) {
	if r.HasStandardized {
		return json.Marshal(canonicalRow(r))
	}
	return json.Marshal(rowWithoutStandardized{canonicalRow: canonicalRow(r)})
}

func (r *CanonicalRow) UnmarshalJSON(data []byte) error {
	var row canonicalRow
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, hasProgram := keys["llm-generated-program"]
	_, hasUniversity := keys["llm-generated-university"]
	row.HasStandardized = hasProgram || hasUniversity

	*r = CanonicalRow(row)
	return nil
}
