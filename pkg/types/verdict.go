package types

// Verdict 表示规则引擎对一条载荷的分类结果
type Verdict struct {
	Accepted    bool   `json:"accepted"`              // 是否匹配白名单
	RuleLine    int    `json:"rule_line,omitempty"`   // 匹配规则所在的行
	RuleName    string `json:"rule_name,omitempty"`   // 匹配规则的名称
	RuleSource  string `json:"rule_source,omitempty"` // 规则来源文件
	PayloadSize int    `json:"payload_size"`          // 载荷长度
}

// RuleAction 表示规则匹配后的动作
// 可能的动作：
// 1. ActionForward: 放行数据包
// 2. ActionAlert: 触发告警
type RuleAction uint8

const (
	ActionNone    RuleAction = iota // 尚未决定
	ActionForward                   // 放行数据包
	ActionAlert                     // 触发告警，记录可疑流量
)

func (a RuleAction) String() string {
	switch a {
	case ActionForward:
		return "forward"
	case ActionAlert:
		return "alert"
	default:
		return "none"
	}
}
