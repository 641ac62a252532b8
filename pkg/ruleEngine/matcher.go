package ruleEngine

import "bytes"

// MatchClause 判断载荷在子句窗口内的字节是否与期望值完全相等
// 窗口超出载荷长度时无法取值，按不匹配处理
func MatchClause(payload []byte, c Clause) bool {
	if c.ByteOffset < 0 || c.ByteLength <= 0 || c.End() > len(payload) {
		return false
	}
	return bytes.Equal(payload[c.ByteOffset:c.End()], c.Expected)
}
