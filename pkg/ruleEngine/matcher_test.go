package ruleEngine

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("非法的十六进制: %v", err)
	}
	return b
}

// TestMatchClause 测试单个子句匹配
func TestMatchClause(t *testing.T) {
	payload := mustHex(t, "a11a05000d0001c1eeeeeeeeeeeeeeeeeeee00")

	testCases := []struct {
		name    string
		clause  Clause
		matched bool
	}{
		{"头部前缀", Clause{ByteOffset: 0, ByteLength: 2, Expected: []byte{0xa1, 0x1a}}, true},
		{"功能码", Clause{ByteOffset: 7, ByteLength: 1, Expected: []byte{0xc1}}, true},
		{"功能码不同", Clause{ByteOffset: 7, ByteLength: 1, Expected: []byte{0xc3}}, false},
		{"窗口正好到结尾", Clause{ByteOffset: 18, ByteLength: 1, Expected: []byte{0x00}}, true},
		{"窗口超出结尾", Clause{ByteOffset: 18, ByteLength: 2, Expected: []byte{0x00, 0x00}}, false},
		{"偏移超出结尾", Clause{ByteOffset: 40, ByteLength: 1, Expected: []byte{0x00}}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.matched, MatchClause(payload, tc.clause))
		})
	}
}

// TestMatchClauseShortPayload 载荷短于窗口时，任何期望值都不匹配
func TestMatchClauseShortPayload(t *testing.T) {
	clause := Clause{ByteOffset: 4, ByteLength: 4, Expected: make([]byte, 4)}
	for n := 0; n < clause.End(); n++ {
		assert.False(t, MatchClause(make([]byte, n), clause), "长度 %d 的载荷不应匹配", n)
	}
	assert.True(t, MatchClause(make([]byte, clause.End()), clause))
	assert.False(t, MatchClause(nil, clause))
}

// TestMatchClauseWideWindow 测试数百字节宽的窗口
func TestMatchClauseWideWindow(t *testing.T) {
	payload := append(mustHex(t, "a11a05001d0101c2"), bytes.Repeat([]byte{0xfe}, 600)...)
	clause := Clause{ByteOffset: 8, ByteLength: 600, Expected: bytes.Repeat([]byte{0xfe}, 600)}
	assert.True(t, MatchClause(payload, clause))

	payload[500] = 0xff
	assert.False(t, MatchClause(payload, clause))
}

// TestMatchClauseDoesNotMutate 匹配过程不修改载荷
func TestMatchClauseDoesNotMutate(t *testing.T) {
	payload := mustHex(t, "a11a0100")
	snapshot := append([]byte(nil), payload...)
	MatchClause(payload, Clause{ByteOffset: 0, ByteLength: 2, Expected: []byte{0xa1, 0x1a}})
	assert.Equal(t, snapshot, payload)
}

// TestEvaluateRule 测试规则内子句的AND关系
func TestEvaluateRule(t *testing.T) {
	rs, err := Parse("@ih,0,16 0xa11a @ih,56,8 0xc2 @ih,168,8 0x03 accept")
	assert.NoError(t, err)
	rule := &rs.Rules[0]

	readHold := mustHex(t, "a11a0100200001c2eeeeeeeeeeeeeeeeeeee12000003eeeeeeeeeeeeeeeeeeee00007f003bd6")
	writeSingle := mustHex(t, "a11a0100200001c2eeeeeeeeeeeeeeeeeeee12000006eeeeeeeeeeeeeeeeeeee77001400ca51")

	assert.True(t, EvaluateRule(readHold, rule))
	assert.False(t, EvaluateRule(writeSingle, rule))
	assert.False(t, EvaluateRule(readHold[:21], rule), "截断的载荷不应匹配")
}

// TestEvaluateEmptyRule 没有子句的规则恒为真
func TestEvaluateEmptyRule(t *testing.T) {
	empty := &Rule{}
	assert.True(t, EvaluateRule(nil, empty))
	assert.True(t, EvaluateRule([]byte{0x01}, empty))
}

// TestEvaluateRuleClauseOrder 子句顺序不影响结果
func TestEvaluateRuleClauseOrder(t *testing.T) {
	rs, err := Parse("@ih,0,16 0xa11a @ih,56,8 0xc2 @ih,168,8 0x10 @ih,256,16 0x0c00")
	assert.NoError(t, err)
	clauses := rs.Rules[0].Clauses

	payloads := [][]byte{
		mustHex(t, "a11a0100270001c2eeeeeeeeeeeeeeeeeeee19000010eeeeeeeeeeeeeeeeeeee0c00030006180a1b1108099841"),
		mustHex(t, "a11a0100270001c2eeeeeeeeeeeeeeeeeeee19000010eeeeeeeeeeeeeeeeeeeedddd030006180a1b1108099841"),
		mustHex(t, "a11a0100270001c2"),
	}

	for _, payload := range payloads {
		want := EvaluateRule(payload, &Rule{Clauses: clauses})
		for i := range clauses {
			rotated := append(append([]Clause{}, clauses[i:]...), clauses[:i]...)
			assert.Equal(t, want, EvaluateRule(payload, &Rule{Clauses: rotated}))
		}
	}
}
