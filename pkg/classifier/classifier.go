package classifier

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/haolipeng/nft_payload_classifier/pkg/ruleEngine"
	"github.com/sirupsen/logrus"
)

// ErrInvalidHexPayload 十六进制载荷无法解码
var ErrInvalidHexPayload = errors.New("非法的十六进制载荷")

// PacketClassifier 按规则集判断载荷是否为已知的合法报文
// 规则集通过原子指针持有，分类过程不加锁，可以被任意多个goroutine并发调用
type PacketClassifier struct {
	ruleSet atomic.Pointer[ruleEngine.RuleSet]
}

// NewPacketClassifier 使用已构建的规则集创建分类器，rs为nil时等价于空规则集
func NewPacketClassifier(rs *ruleEngine.RuleSet) *PacketClassifier {
	c := &PacketClassifier{}
	if rs == nil {
		rs = &ruleEngine.RuleSet{}
	}
	c.ruleSet.Store(rs)
	return c
}

// NewPacketClassifierFromPath 从规则文件或规则目录创建分类器
func NewPacketClassifierFromPath(path string) (*PacketClassifier, error) {
	rs, err := ruleEngine.LoadRuleSet(path)
	if err != nil {
		return nil, err
	}
	return NewPacketClassifier(rs), nil
}

// Classify 任意一条规则匹配即返回true，没有规则匹配返回false
func (c *PacketClassifier) Classify(payload []byte) bool {
	_, ok := c.Match(payload)
	return ok
}

// Match 返回第一条匹配的规则
func (c *PacketClassifier) Match(payload []byte) (*ruleEngine.Rule, bool) {
	_, rule := c.Lookup(payload)
	return rule, rule != nil
}

// Lookup 在同一个规则集快照上匹配，同时返回该快照
// 没有规则匹配时rule为nil
func (c *PacketClassifier) Lookup(payload []byte) (rs *ruleEngine.RuleSet, rule *ruleEngine.Rule) {
	rs = c.ruleSet.Load()
	for i := range rs.Rules {
		if ruleEngine.EvaluateRule(payload, &rs.Rules[i]) {
			return rs, &rs.Rules[i]
		}
	}
	return rs, nil
}

// ClassifyHex 先将十六进制字符串解码为字节，再调用Classify
func (c *PacketClassifier) ClassifyHex(payload string) (bool, error) {
	raw, err := DecodeHexPayload(payload)
	if err != nil {
		return false, err
	}
	return c.Classify(raw), nil
}

// DecodeHexPayload 解码十六进制载荷，允许0x前缀和空白
func DecodeHexPayload(payload string) ([]byte, error) {
	s := strings.Join(strings.Fields(payload), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHexPayload, err)
	}
	return raw, nil
}

// RuleSet 返回当前使用的规则集
func (c *PacketClassifier) RuleSet() *ruleEngine.RuleSet {
	return c.ruleSet.Load()
}

// Swap 原子地替换规则集，返回旧的规则集
func (c *PacketClassifier) Swap(rs *ruleEngine.RuleSet) *ruleEngine.RuleSet {
	if rs == nil {
		rs = &ruleEngine.RuleSet{}
	}
	return c.ruleSet.Swap(rs)
}

// Reload 重新加载规则，只有在完整加载成功后才替换规则集
func (c *PacketClassifier) Reload(path string) error {
	rs, err := ruleEngine.LoadRuleSet(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"path":  path,
			"error": err.Error(),
		}).Error("重新加载规则失败，继续使用原有规则")
		return err
	}

	old := c.Swap(rs)
	logrus.WithFields(logrus.Fields{
		"path":      path,
		"old_rules": old.Len(),
		"new_rules": rs.Len(),
		"clauses":   rs.ClauseCount(),
	}).Info("规则重新加载成功")
	return nil
}
