package contracts

import "fmt"

type Stage string

const (
	StagePrepare   Stage = "prepare"
	StageDecode    Stage = "decode"
	StageDeepZoom  Stage = "deepzoom"
	StageThumbnail Stage = "thumbnail"
	StagePublish   Stage = "publish"
)

// ConversionFailure is the single error kind a conversion returns. Stage tells
// decode problems apart from output problems for callers that care.
type ConversionFailure struct {
	Stage Stage
	Err   error
}

func (f *ConversionFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f *ConversionFailure) Unwrap() error {
	return f.Err
}

func Fail(stage Stage, err error) *ConversionFailure {
	return &ConversionFailure{Stage: stage, Err: err}
}

type RunStatus string

const (
	StatusInProgress RunStatus = "in_progress"
	StatusSucceeded  RunStatus = "succeeded"
	StatusFailed     RunStatus = "failed"
)
