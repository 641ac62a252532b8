package ruleEngine

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseClauses 测试子句解析
func TestParseClauses(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected []Rule
	}{
		{
			name: "nft写法，字段之间逗号和空格混用",
			text: `tcp dport 8000 @ih,0,16 0xa11a @ih,56,8 0xc1 accept`,
			expected: []Rule{{
				Clauses: []Clause{
					{ByteOffset: 0, ByteLength: 2, Expected: []byte{0xa1, 0x1a}},
					{ByteOffset: 7, ByteLength: 1, Expected: []byte{0xc1}},
				},
				Line:      1,
				Statement: "accept",
			}},
		},
		{
			name: "连续的分隔符",
			text: "@ih,  8 ,,\t16   0x0500",
			expected: []Rule{{
				Clauses: []Clause{
					{ByteOffset: 1, ByteLength: 2, Expected: []byte{0x05, 0x00}},
				},
				Line: 1,
			}},
		},
		{
			name: "其他空白字符也是分隔符",
			text: "@ih,0,16\v0xa11a\f@ih,56,8\r0xc1",
			expected: []Rule{{
				Clauses: []Clause{
					{ByteOffset: 0, ByteLength: 2, Expected: []byte{0xa1, 0x1a}},
					{ByteOffset: 7, ByteLength: 1, Expected: []byte{0xc1}},
				},
				Line: 1,
			}},
		},
		{
			name: "短值左侧补零",
			text: "@ih,256,32 0xc00",
			expected: []Rule{{
				Clauses: []Clause{
					{ByteOffset: 32, ByteLength: 4, Expected: []byte{0x00, 0x00, 0x0c, 0x00}},
				},
				Line: 1,
			}},
		},
		{
			name: "没有0x前缀，高位零字节不计入宽度",
			text: "@ih,8,8 000000ff",
			expected: []Rule{{
				Clauses: []Clause{
					{ByteOffset: 1, ByteLength: 1, Expected: []byte{0xff}},
				},
				Line: 1,
			}},
		},
		{
			name: "注释和其他行被忽略，comment被提取",
			text: strings.Join([]string{
				"# @ih,0,8 0x01 这是注释",
				"table inet lxp {",
				`  tcp dport 8000 @ih,0,16 0xa11a accept comment "ping @ih" # 尾部注释`,
				"  tcp dport 8000 drop",
				"}",
			}, "\n"),
			expected: []Rule{{
				Clauses: []Clause{
					{ByteOffset: 0, ByteLength: 2, Expected: []byte{0xa1, 0x1a}},
				},
				Line:      3,
				Statement: `accept comment "ping @ih"`,
				Comment:   "ping @ih",
			}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := Parse(tc.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.expected, rs.Rules); diff != "" {
				t.Errorf("规则不匹配 (-want +got):\n%s", diff)
			}
		})
	}
}

// TestParseErrors 测试格式错误的子句
func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name   string
		text   string
		target error
		line   int
		clause int
	}{
		{"非数字偏移", "@ih,abc,8 0x01", ErrInvalidNumber, 1, 1},
		{"负数长度", "@ih,0,-8 0x01", ErrInvalidNumber, 1, 1},
		{"零长度", "@ih,0,0 0x01", ErrInvalidNumber, 1, 1},
		{"偏移未对齐", "@ih,3,8 0x01", ErrNotByteAligned, 1, 1},
		{"长度未对齐", "@ih,0,12 0x01", ErrNotByteAligned, 1, 1},
		{"缺少值", "\n@ih,0,8 0x01 @ih,8,8", ErrFieldCount, 2, 2},
		{"非最后子句多余字段", "@ih,0,8 0x01 0x02 @ih,8,8 0x03", ErrFieldCount, 1, 1},
		{"非法十六进制", "@ih,0,16 0xzz", ErrInvalidHex, 1, 1},
		{"只有前缀", "@ih,0,16 0x", ErrInvalidHex, 1, 1},
		{"值超出字段宽度", "@ih,0,8 0x0102", ErrValueTooWide, 1, 1},
		{"不支持的基址", "@ih,0,8 0x01 @th,0,16 0x1f40", ErrUnsupportedBase, 1, 2},
		{"标记后缺少逗号", "tcp dport 8000 @ih0,16 0xa11a accept", ErrUnsupportedBase, 1, 1},
		{"标记后多余字符", "tcp dport 8000 @ihx,0,16 0x01 accept", ErrUnsupportedBase, 1, 1},
		{"第二个子句缺少逗号", "@ih,0,16 0xa11a @ih56,8 0xc1 accept", ErrUnsupportedBase, 1, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := ParseReader(strings.NewReader(tc.text), "bad.nft")
			assert.Nil(t, rs, "解析失败时不应返回部分规则")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.target), "错误类型不匹配: %v", err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "bad.nft", perr.Source)
			assert.Equal(t, tc.line, perr.Line)
			assert.Equal(t, tc.clause, perr.Clause)
			assert.Contains(t, perr.Error(), "bad.nft:")
		})
	}
}

// TestParseAllOrNothing 测试一个错误子句会使整个加载失败
func TestParseAllOrNothing(t *testing.T) {
	text := strings.Join([]string{
		"@ih,0,16 0xa11a @ih,56,8 0xc1 accept",
		"@ih,0,16 0xa11a @ih,56,8 0xc2 accept",
		"@ih,0,16 0xa11a @ih,oops,8 0xc3 accept",
	}, "\n")

	rs, err := Parse(text)
	assert.Nil(t, rs)
	assert.ErrorIs(t, err, ErrInvalidNumber)
}

// TestParseEmpty 测试没有规则行的输入
func TestParseEmpty(t *testing.T) {
	rs, err := Parse("table inet lxp {\n}\n")
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, 0, rs.ClauseCount())
}

// TestParseWideClause 测试数百字节宽的子句
func TestParseWideClause(t *testing.T) {
	value := strings.Repeat("00", 250) + strings.Repeat("fe", 50)
	rs, err := Parse("@ih,288,2400 0x" + value)
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())

	c := rs.Rules[0].Clauses[0]
	assert.Equal(t, 36, c.ByteOffset)
	assert.Equal(t, 300, c.ByteLength)
	assert.Len(t, c.Expected, 300)
	assert.True(t, bytes.Equal(bytes.Repeat([]byte{0xfe}, 50), c.Expected[250:]))
}

// TestRuleString 测试规则的文本输出可以重新解析
func TestRuleString(t *testing.T) {
	rs, err := Parse(`@ih,0,16 0xa11a @ih,168,8 3 accept comment "read holding"`)
	require.NoError(t, err)

	rule := rs.Rules[0]
	assert.Equal(t, "read holding", rule.Name())
	assert.Equal(t, 22, rule.MinPayloadLen())

	again, err := Parse(rule.String())
	require.NoError(t, err)
	if diff := cmp.Diff(rule.Clauses, again.Rules[0].Clauses); diff != "" {
		t.Errorf("重新解析后子句不一致 (-want +got):\n%s", diff)
	}

	unnamed := Rule{Line: 7}
	assert.Equal(t, "line_7", unnamed.Name())
}
