package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleActionString(t *testing.T) {
	assert.Equal(t, "none", ActionNone.String())
	assert.Equal(t, "forward", ActionForward.String())
	assert.Equal(t, "alert", ActionAlert.String())
	assert.Equal(t, "none", RuleAction(42).String())
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "payload_extraction", StagePayloadExtraction.String())
	assert.Equal(t, "rule_engine_detection", StageRuleEngineDetection.String())
	assert.True(t, StagePayloadExtraction < StageRuleEngineDetection)
}

func TestPipelineError(t *testing.T) {
	err := NewPipelineError("start", ErrProcessorNotReady)
	assert.EqualError(t, err, "pipeline error at stage start: processor not ready")
	assert.True(t, errors.Is(err, ErrProcessorNotReady))

	var perr *PipelineError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, "start", perr.Stage)
}
