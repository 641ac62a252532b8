package types

import (
	"errors"
	"fmt"
)

// ErrProcessorNotReady 处理器尚未就绪
var ErrProcessorNotReady = errors.New("processor not ready")

type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func NewPipelineError(stage string, err error) error {
	return &PipelineError{Stage: stage, Err: err}
}
