package pipeline

import (
	"fmt"

	"gradcafe/internal"
	"gradcafe/internal/util"
)

func LoadRawRecords(path string) ([]internal.RawRecord, error) {
	var records []internal.RawRecord
	if err := util.ReadJSONFile(path, &records); err != nil {
		return nil, fmt.Errorf("load raw records %s: %w", path, err)
	}
	return records, nil
}

func LoadRows(path string) ([]internal.CanonicalRow, error) {
	var rows []internal.CanonicalRow
	if err := util.ReadJSONFile(path, &rows); err != nil {
		return nil, fmt.Errorf("load rows %s: %w", path, err)
	}
	return rows, nil
}
