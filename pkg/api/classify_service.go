package api

import (
	"net/http"
	"strings"

	"github.com/haolipeng/nft_payload_classifier/pkg/classifier"
	"github.com/haolipeng/nft_payload_classifier/pkg/processor"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// 响应结构体
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ClassifyRequest 支持单个或多个十六进制载荷
type ClassifyRequest struct {
	Payload  string   `json:"payload,omitempty"`
	Payloads []string `json:"payloads,omitempty"`
}

type ClassifyResult struct {
	Payload  string `json:"payload"`
	Accepted bool   `json:"accepted"`
	Rule     string `json:"rule,omitempty"`
	RuleLine int    `json:"rule_line,omitempty"`
	Action   string `json:"action"`
}

// PolicyRequest 更新告警表达式
type PolicyRequest struct {
	Expression string `json:"expression"`
}

type RuleInfo struct {
	Source    string   `json:"source"`
	Line      int      `json:"line"`
	Name      string   `json:"name"`
	Statement string   `json:"statement,omitempty"`
	Clauses   []string `json:"clauses"`
}

type RuleSetInfo struct {
	Source  string     `json:"source"`
	Clauses int        `json:"clauses"`
	Rules   []RuleInfo `json:"rules"`
}

// StatsProvider 提供流水线运行状态
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// ClassifyService 分类和规则管理服务
type ClassifyService struct {
	engine *processor.RuleEngine
	stats  StatsProvider
}

// NewClassifyService 创建服务，stats可以为nil
func NewClassifyService(engine *processor.RuleEngine, stats StatsProvider) *ClassifyService {
	return &ClassifyService{
		engine: engine,
		stats:  stats,
	}
}

// Classify 对请求中的载荷分类
func (cs *ClassifyService) Classify(c echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(c, NewBadRequestError("请求格式无效", err))
	}

	payloads := req.Payloads
	if req.Payload != "" {
		payloads = append([]string{req.Payload}, payloads...)
	}
	if len(payloads) == 0 {
		return HandleError(c, NewBadRequestError("缺少载荷", nil))
	}

	results := make([]ClassifyResult, 0, len(payloads))
	for _, s := range payloads {
		raw, err := classifier.DecodeHexPayload(s)
		if err != nil {
			return HandleError(c, NewBadRequestError("载荷不是合法的十六进制", err))
		}

		// 临时查询不计入流水线指标
		packet := &types.Packet{Payload: raw, Protocol: types.ProtocolRaw}
		if err := cs.engine.Evaluate(packet); err != nil {
			logrus.WithFields(logrus.Fields{
				"payload": s,
				"error":   err.Error(),
			}).Debug("告警策略执行失败")
		}
		results = append(results, ClassifyResult{
			Payload:  strings.Join(strings.Fields(s), ""),
			Accepted: packet.Verdict.Accepted,
			Rule:     packet.Verdict.RuleName,
			RuleLine: packet.Verdict.RuleLine,
			Action:   packet.Action.String(),
		})
	}

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "分类成功",
		Data:    results,
	})
}

// GetRules 返回当前使用的规则
func (cs *ClassifyService) GetRules(c echo.Context) error {
	rs := cs.engine.Classifier().RuleSet()

	info := RuleSetInfo{
		Source:  rs.Source,
		Clauses: rs.ClauseCount(),
		Rules:   make([]RuleInfo, 0, rs.Len()),
	}
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		clauses := make([]string, 0, len(rule.Clauses))
		for _, clause := range rule.Clauses {
			clauses = append(clauses, clause.String())
		}
		info.Rules = append(info.Rules, RuleInfo{
			Source:    rule.Source,
			Line:      rule.Line,
			Name:      rule.Name(),
			Statement: rule.Statement,
			Clauses:   clauses,
		})
	}

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取规则成功",
		Data:    info,
	})
}

// ReloadRules 重新加载规则文件
func (cs *ClassifyService) ReloadRules(c echo.Context) error {
	if err := cs.engine.ReloadRules(); err != nil {
		return HandleError(c, NewReloadError(err))
	}

	rs := cs.engine.Classifier().RuleSet()
	logrus.WithFields(logrus.Fields{
		"source":    rs.Source,
		"rules":     rs.Len(),
		"operation": "reload_rules",
	}).Info("通过API重新加载规则")

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "重新加载规则成功",
		Data: map[string]interface{}{
			"source":  rs.Source,
			"rules":   rs.Len(),
			"clauses": rs.ClauseCount(),
		},
	})
}

// GetStats 返回规则引擎和流水线的指标
func (cs *ClassifyService) GetStats(c echo.Context) error {
	data := map[string]interface{}{
		"rule_engine": cs.engine.Metrics().GetStats(),
		"rules":       cs.engine.Classifier().RuleSet().Len(),
	}
	if cs.stats != nil {
		data["pipeline"] = cs.stats.GetStats()
	}

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取统计信息成功",
		Data:    data,
	})
}

// GetPolicy 返回当前的告警表达式
func (cs *ClassifyService) GetPolicy(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取告警策略成功",
		Data:    PolicyRequest{Expression: cs.engine.Policy().Expression()},
	})
}

// UpdatePolicy 替换告警表达式，表达式无效时保留原有策略
func (cs *ClassifyService) UpdatePolicy(c echo.Context) error {
	var req PolicyRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(c, NewBadRequestError("请求格式无效", err))
	}
	if strings.TrimSpace(req.Expression) == "" {
		return HandleError(c, NewBadRequestError("缺少告警表达式", nil))
	}

	policy, err := cs.engine.UpdatePolicy(req.Expression)
	if err != nil {
		return HandleError(c, NewBadRequestError("告警表达式无效", err))
	}

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "更新告警策略成功",
		Data:    PolicyRequest{Expression: policy.Expression()},
	})
}
