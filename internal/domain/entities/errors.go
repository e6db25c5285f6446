package entities

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedResponse = errors.New("malformed weather response")
	ErrInvalidPosition   = errors.New("invalid position")

	ErrInvalidLatitude  = ValidationError{Field: "latitude", Reason: "must be between -90 and 90"}
	ErrInvalidLongitude = ValidationError{Field: "longitude", Reason: "must be between -180 and 180"}
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidPosition
}

// Stage names the step of a fetch cycle that failed.
type Stage string

const (
	StageLocate Stage = "locate"
	StageFetch  Stage = "fetch"
	StageDecode Stage = "decode"
	StageSend   Stage = "send"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
