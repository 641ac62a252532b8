package ruleEngine

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// PayloadBase 规则中唯一支持的载荷基址，ih 表示传输层头部之后的内层数据
const PayloadBase = "ih"

// ClauseMarker 规则文件中标识载荷匹配子句的标记
const ClauseMarker = "@" + PayloadBase

// Clause 表示一个字段匹配子句：payload[ByteOffset:ByteOffset+ByteLength] == Expected
type Clause struct {
	ByteOffset int    // 字节偏移
	ByteLength int    // 字节长度
	Expected   []byte // 期望值，长度恒等于ByteLength
}

// End 返回匹配窗口的结束位置（不包含）
func (c Clause) End() int {
	return c.ByteOffset + c.ByteLength
}

// String 以规则文件的写法输出子句
func (c Clause) String() string {
	return fmt.Sprintf("%s,%d,%d 0x%s", ClauseMarker, c.ByteOffset*8, c.ByteLength*8, hex.EncodeToString(c.Expected))
}

// Rule 表示规则文件中的一行，所有子句都匹配时规则才匹配
type Rule struct {
	Clauses   []Clause // 匹配子句，AND关系
	Line      int      // 在规则文件中的行号
	Source    string   // 所在的规则文件
	Statement string   // 最后一个子句之后的语句，如 accept
	Comment   string   // nft comment "..." 中的说明
}

// Name 返回用于日志和指标的规则名称
func (r *Rule) Name() string {
	if r.Comment != "" {
		return r.Comment
	}
	return fmt.Sprintf("line_%d", r.Line)
}

// String 以规则文件的写法输出规则
func (r *Rule) String() string {
	parts := make([]string, 0, len(r.Clauses)+1)
	for _, c := range r.Clauses {
		parts = append(parts, c.String())
	}
	if r.Statement != "" {
		parts = append(parts, r.Statement)
	}
	return strings.Join(parts, " ")
}

// RuleSet 表示一组规则，任意一条规则匹配即接受
// 构建完成后只读，可以在多个goroutine之间共享
type RuleSet struct {
	Source string // 规则来源（文件名）
	Rules  []Rule
}

// Len 返回规则数量
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rules)
}

// ClauseCount 返回所有规则的子句总数
func (rs *RuleSet) ClauseCount() int {
	if rs == nil {
		return 0
	}
	n := 0
	for i := range rs.Rules {
		n += len(rs.Rules[i].Clauses)
	}
	return n
}

// MinPayloadLen 返回能够满足该规则的最短载荷长度
func (r *Rule) MinPayloadLen() int {
	n := 0
	for _, c := range r.Clauses {
		if c.End() > n {
			n = c.End()
		}
	}
	return n
}
