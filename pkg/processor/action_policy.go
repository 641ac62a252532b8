package processor

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/haolipeng/nft_payload_classifier/pkg/config"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
)

// ActionPolicy 使用CEL表达式决定分类后的处理动作
// 表达式结果为true时告警，否则放行
//
// 可用变量：
//
//	accepted    bool   是否匹配白名单规则
//	rule        string 匹配规则的名称，未匹配时为空
//	payload_len int    载荷长度
//	src_port    int    源端口
//	dst_port    int    目的端口
//	protocol    string 传输层协议
type ActionPolicy struct {
	expression string
	program    cel.Program
}

func newPolicyEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("accepted", cel.BoolType),
		cel.Variable("rule", cel.StringType),
		cel.Variable("payload_len", cel.IntType),
		cel.Variable("src_port", cel.IntType),
		cel.Variable("dst_port", cel.IntType),
		cel.Variable("protocol", cel.StringType),
	)
}

// NewActionPolicy 编译告警表达式，表达式为空时使用默认表达式
func NewActionPolicy(expression string) (*ActionPolicy, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		expression = config.DefaultAlertExpression
	}

	env, err := newPolicyEnv()
	if err != nil {
		return nil, fmt.Errorf("create cel env failed: %w", err)
	}

	// 1.编译表达式，生成AST
	ast, iss := env.Compile(expression)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile expression failed: %w", iss.Err())
	}

	// 2.表达式结果必须是bool
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must return bool, got %s", expression, ast.OutputType())
	}

	// 3.将AST转换为程序Program
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program failed: %w", err)
	}

	return &ActionPolicy{expression: expression, program: program}, nil
}

// Expression 返回编译使用的表达式
func (p *ActionPolicy) Expression() string {
	return p.expression
}

// Decide 根据分类结果计算处理动作
func (p *ActionPolicy) Decide(packet *types.Packet, verdict *types.Verdict) (types.RuleAction, error) {
	result, _, err := p.program.Eval(buildPolicyVars(packet, verdict))
	if err != nil {
		return types.ActionAlert, fmt.Errorf("evaluate policy failed: %w", err)
	}

	alert, ok := result.Value().(bool)
	if !ok {
		return types.ActionAlert, fmt.Errorf("policy result is not boolean: %v", result.Value())
	}
	if alert {
		return types.ActionAlert, nil
	}
	return types.ActionForward, nil
}

func buildPolicyVars(packet *types.Packet, verdict *types.Verdict) map[string]interface{} {
	return map[string]interface{}{
		"accepted":    verdict.Accepted,
		"rule":        verdict.RuleName,
		"payload_len": int64(verdict.PayloadSize),
		"src_port":    int64(packet.SrcPort),
		"dst_port":    int64(packet.DstPort),
		"protocol":    packet.Protocol,
	}
}
