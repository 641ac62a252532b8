package ruleEngine

// EvaluateRule 按顺序检查规则的所有子句，遇到第一个不匹配的子句立即返回
// 没有子句的规则恒为真
func EvaluateRule(payload []byte, rule *Rule) bool {
	for _, c := range rule.Clauses {
		if !MatchClause(payload, c) {
			return false
		}
	}
	return true
}
