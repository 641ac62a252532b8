package classifier

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/haolipeng/nft_payload_classifier/pkg/ruleEngine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lxpRules = "../../rules/10-lxp.nft"

func newLXPClassifier(t *testing.T) *PacketClassifier {
	t.Helper()
	c, err := NewPacketClassifierFromPath(lxpRules)
	require.NoError(t, err)
	return c
}

// TestClassifyFixtures 使用抓包得到的真实报文测试分类结果
func TestClassifyFixtures(t *testing.T) {
	c := newLXPClassifier(t)

	testCases := []struct {
		name     string
		payload  string
		accepted bool
		rule     string
	}{
		{"心跳", "a11a05000d0001c1eeeeeeeeeeeeeeeeeeee00", true, "heartbeat"},
		{"读参数", "a11a05000d0001c3eeeeeeeeeeeeeeeeeeee00", false, ""},
		{"写参数", "a11a05000d0001c4eeeeeeeeeeeeeeeeeeee00", false, ""},
		{"未知功能码", "a11a05000d0001dd", false, ""},
		{"读保持寄存器", "a11a0100200001c2eeeeeeeeeeeeeeeeeeee12000003eeeeeeeeeeeeeeeeeeee00007f003bd6", true, "read holding"},
		{"读输入寄存器", "a11a0100200001c2eeeeeeeeeeeeeeeeeeee120000040000000000000000000000007f009ac3", true, "read input"},
		{"写单个寄存器请求", "a11a0100200001c2eeeeeeeeeeeeeeeeeeee12000006eeeeeeeeeeeeeeeeeeee77001400ca51", false, ""},
		{"写单个寄存器响应", "a11a0500200001c2eeeeeeeeeeeeeeeeeeee12000106eeeeeeeeeeeeeeeeeeee770014000bc1", false, ""},
		{"写多个寄存器", "a11a0100270001c2eeeeeeeeeeeeeeeeeeee19000010eeeeeeeeeeeeeeeeeeeedddd030006180a1b1108099841", false, ""},
		{"写日期请求", "a11a0100270001c2eeeeeeeeeeeeeeeeeeee19000010eeeeeeeeeeeeeeeeeeee0c00030006180a1b1108099841", true, "write date"},
		{"写日期响应", "a11a0500200001c2eeeeeeeeeeeeeeeeeeee12000110eeeeeeeeeeeeeeeeeeee0c0003008adb", true, "write date"},
		{"未知modbus功能码", "a11a0100200001c2eeeeeeeeeeeeeeeeeeee120000ddeeeeeeeeeeeeeeeeeeee77001400ca51", false, ""},
		{"空载荷", "", false, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			accepted, err := c.ClassifyHex(tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.accepted, accepted)

			raw, err := DecodeHexPayload(tc.payload)
			require.NoError(t, err)
			rule, ok := c.Match(raw)
			assert.Equal(t, tc.accepted, ok)
			if ok {
				assert.Equal(t, tc.rule, rule.Name())
			} else {
				assert.Nil(t, rule)
			}
		})
	}
}

// TestClassifyEmptyRuleSet 空规则集拒绝所有载荷
func TestClassifyEmptyRuleSet(t *testing.T) {
	for _, c := range []*PacketClassifier{NewPacketClassifier(nil), NewPacketClassifier(&ruleEngine.RuleSet{})} {
		assert.False(t, c.Classify(nil))
		assert.False(t, c.Classify([]byte{}))
		assert.False(t, c.Classify([]byte{0xa1, 0x1a, 0x05, 0x00}))
	}
}

// TestClassifyEmptyRule 包含空规则的规则集接受所有载荷
func TestClassifyEmptyRule(t *testing.T) {
	c := NewPacketClassifier(&ruleEngine.RuleSet{Rules: []ruleEngine.Rule{{}}})
	assert.True(t, c.Classify(nil))
	assert.True(t, c.Classify([]byte{0xde, 0xad}))
}

// TestClassifyDeterministicAndPermutation 结果与规则顺序、子句顺序无关
func TestClassifyDeterministicAndPermutation(t *testing.T) {
	base := newLXPClassifier(t).RuleSet()

	payloads := make([][]byte, 0)
	for _, s := range []string{
		"a11a05000d0001c1eeeeeeeeeeeeeeeeeeee00",
		"a11a05000d0001c3eeeeeeeeeeeeeeeeeeee00",
		"a11a05000d0001dd",
		"a11a0100200001c2eeeeeeeeeeeeeeeeeeee12000003eeeeeeeeeeeeeeeeeeee00007f003bd6",
		"a11a0100200001c2eeeeeeeeeeeeeeeeeeee12000006eeeeeeeeeeeeeeeeeeee77001400ca51",
		"a11a0500200001c2eeeeeeeeeeeeeeeeeeee12000110eeeeeeeeeeeeeeeeeeee0c0003008adb",
		"a11a0100270001c2eeeeeeeeeeeeeeeeeeee19000010eeeeeeeeeeeeeeeeeeeedddd030006180a1b1108099841",
	} {
		raw, err := DecodeHexPayload(s)
		require.NoError(t, err)
		payloads = append(payloads, raw)
	}

	want := make([]bool, len(payloads))
	ref := NewPacketClassifier(base)
	for i, p := range payloads {
		want[i] = ref.Classify(p)
		assert.Equal(t, want[i], ref.Classify(p), "同一载荷的结果应保持一致")
	}

	rnd := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		shuffled := &ruleEngine.RuleSet{Rules: make([]ruleEngine.Rule, len(base.Rules))}
		for i, j := range rnd.Perm(len(base.Rules)) {
			rule := base.Rules[j]
			clauses := make([]ruleEngine.Clause, len(rule.Clauses))
			for k, m := range rnd.Perm(len(rule.Clauses)) {
				clauses[k] = rule.Clauses[m]
			}
			rule.Clauses = clauses
			shuffled.Rules[i] = rule
		}

		c := NewPacketClassifier(shuffled)
		for i, p := range payloads {
			assert.Equal(t, want[i], c.Classify(p), "第%d轮打乱后载荷%d的结果发生变化", round, i)
		}
	}
}

// TestClassifyConcurrent 并发分类不需要额外同步
func TestClassifyConcurrent(t *testing.T) {
	c := newLXPClassifier(t)
	ping, err := DecodeHexPayload("a11a05000d0001c1eeeeeeeeeeeeeeeeeeee00")
	require.NoError(t, err)
	params, err := DecodeHexPayload("a11a05000d0001c3eeeeeeeeeeeeeeeeeeee00")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if !c.Classify(ping) || c.Classify(params) {
					errs <- "并发分类结果不一致"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

// TestClassifyHexInvalid 非法十六进制只影响包装函数
func TestClassifyHexInvalid(t *testing.T) {
	c := newLXPClassifier(t)

	_, err := c.ClassifyHex("a11a0")
	assert.ErrorIs(t, err, ErrInvalidHexPayload)
	_, err = c.ClassifyHex("zz")
	assert.ErrorIs(t, err, ErrInvalidHexPayload)

	accepted, err := c.ClassifyHex("0xa11a 0500 0d00 01c1 eeeeeeeeeeeeeeeeeeee 00")
	require.NoError(t, err)
	assert.True(t, accepted)
}

// TestReload 重新加载失败时保留原有规则
func TestReload(t *testing.T) {
	c := NewPacketClassifier(nil)
	ping, err := DecodeHexPayload("a11a05000d0001c1eeeeeeeeeeeeeeeeeeee00")
	require.NoError(t, err)
	assert.False(t, c.Classify(ping))

	require.NoError(t, c.Reload(lxpRules))
	assert.True(t, c.Classify(ping))
	assert.Equal(t, 4, c.RuleSet().Len())

	assert.Error(t, c.Reload("../../rules/not_exist_file.nft"))
	assert.True(t, c.Classify(ping), "加载失败后应继续使用原有规则")

	old := c.Swap(nil)
	assert.Equal(t, 4, old.Len())
	assert.False(t, c.Classify(ping))
}

// TestLookup 返回匹配时使用的规则集快照
func TestLookup(t *testing.T) {
	c := newLXPClassifier(t)
	ping, err := DecodeHexPayload("a11a05000d0001c1eeeeeeeeeeeeeeeeeeee00")
	require.NoError(t, err)

	rs, rule := c.Lookup(ping)
	require.NotNil(t, rule)
	assert.Equal(t, "10-lxp.nft", rs.Source)
	assert.Equal(t, 19, rule.Line)

	rs, rule = c.Lookup([]byte{0x00})
	assert.Nil(t, rule)
	assert.Same(t, c.RuleSet(), rs)
}
