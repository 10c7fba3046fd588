package pipeline

import "fmt"

type Stage string

const (
	StageStandardize Stage = "standardize"
	StageMerge       Stage = "merge"
	StageMaster      Stage = "master"
	StageOutput      Stage = "output"
	StageStorage     Stage = "storage"
)

// StageError reports the stage a run failed in and how many rows had made it
// through the earlier stages. Re-running from the raw file is always safe.
type StageError struct {
	Stage     Stage
	Processed int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed after %d rows: %v", e.Stage, e.Processed, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
