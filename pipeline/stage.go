package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

// Stage names one step of a pipeline run.
type Stage string

const (
	StageLoad                 Stage = "LOAD"
	StageSplit                Stage = "SPLIT"
	StageBuild                Stage = "BUILD"
	StageFit                  Stage = "FIT"
	StagePredict              Stage = "PREDICT"
	StageEvaluate             Stage = "EVALUATE"
	StageVisualizeImportance  Stage = "VISUALIZE_IMPORTANCE"
	StageVisualizePredictions Stage = "VISUALIZE_PREDICTIONS"
	StageDone                 Stage = "DONE"
)

// Stages lists the stages in execution order.
var Stages = []Stage{
	StageLoad,
	StageSplit,
	StageBuild,
	StageFit,
	StagePredict,
	StageEvaluate,
	StageVisualizeImportance,
	StageVisualizePredictions,
	StageDone,
}

// StageError reports the stage at which a run stopped.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("housingrf: pipeline stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the stage and cause to a log event.
func (e *StageError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", string(e.Stage)).
		AnErr("cause", e.Err).
		Str("type", "StageError")
}

func newStageError(stage Stage, err error) error {
	return errors.WithStack(&StageError{Stage: stage, Err: err})
}
