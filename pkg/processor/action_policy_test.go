package processor

import (
	"testing"

	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestActionPolicy 测试告警表达式
func TestActionPolicy(t *testing.T) {
	packet := &types.Packet{Protocol: types.ProtocolTCP, SrcPort: 51000, DstPort: 8000}
	accepted := &types.Verdict{Accepted: true, RuleName: "heartbeat", PayloadSize: 19}
	rejected := &types.Verdict{Accepted: false, PayloadSize: 8}

	testCases := []struct {
		name       string
		expression string
		verdict    *types.Verdict
		want       types.RuleAction
	}{
		{"默认表达式放行白名单", "", accepted, types.ActionForward},
		{"默认表达式告警未知载荷", "", rejected, types.ActionAlert},
		{"按规则名告警", `accepted && rule == "heartbeat"`, accepted, types.ActionAlert},
		{"按长度告警", "payload_len > 16", accepted, types.ActionAlert},
		{"按端口放行", "!accepted && dst_port != 8000", rejected, types.ActionForward},
		{"按协议告警", `protocol == "TCP" && src_port > 50000`, rejected, types.ActionAlert},
		{"从不告警", "false", rejected, types.ActionForward},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			policy, err := NewActionPolicy(tc.expression)
			require.NoError(t, err)
			action, err := policy.Decide(packet, tc.verdict)
			require.NoError(t, err)
			assert.Equal(t, tc.want, action)
		})
	}
}

// TestActionPolicyInvalid 非法表达式在编译时报错
func TestActionPolicyInvalid(t *testing.T) {
	for _, expr := range []string{
		"accepted &&",
		"unknown_var == 1",
		"payload_len + 1",
		`rule`,
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := NewActionPolicy(expr)
			assert.Error(t, err)
		})
	}
}

func TestActionPolicyExpression(t *testing.T) {
	policy, err := NewActionPolicy("  ")
	require.NoError(t, err)
	assert.Equal(t, "!accepted", policy.Expression())
}
