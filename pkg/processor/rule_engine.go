package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haolipeng/nft_payload_classifier/pkg/classifier"
	"github.com/haolipeng/nft_payload_classifier/pkg/config"
	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"github.com/sirupsen/logrus"
)

// RuleEngine 对每个载荷执行白名单分类，并按ActionPolicy决定处理动作
type RuleEngine struct {
	mu         sync.RWMutex // 保护policy和rulePath
	classifier *classifier.PacketClassifier
	policy     *ActionPolicy
	rulePath   string
	metrics    *metrics.ProcessorMetrics
	collector  *metrics.Collector
}

// NewRuleEngine 使用已有的分类器创建规则引擎
func NewRuleEngine(c *classifier.PacketClassifier, policy *ActionPolicy) (*RuleEngine, error) {
	if c == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if policy == nil {
		var err error
		if policy, err = NewActionPolicy(""); err != nil {
			return nil, err
		}
	}
	return &RuleEngine{
		classifier: c,
		policy:     policy,
		metrics:    &metrics.ProcessorMetrics{},
	}, nil
}

// NewRuleEngineProcessor 根据配置加载规则并编译告警表达式
func NewRuleEngineProcessor(cfg *config.Config, collector *metrics.Collector) (*RuleEngine, error) {
	c, err := classifier.NewPacketClassifierFromPath(cfg.RuleEngine.RulePath)
	if err != nil {
		return nil, fmt.Errorf("load rules failed: %w", err)
	}

	policy, err := NewActionPolicy(cfg.RuleEngine.AlertExpression)
	if err != nil {
		return nil, err
	}

	engine, err := NewRuleEngine(c, policy)
	if err != nil {
		return nil, err
	}
	engine.rulePath = cfg.RuleEngine.RulePath
	engine.collector = collector

	logrus.WithFields(logrus.Fields{
		"rule_path": cfg.RuleEngine.RulePath,
		"rules":     c.RuleSet().Len(),
		"clauses":   c.RuleSet().ClauseCount(),
		"policy":    policy.Expression(),
	}).Info("规则引擎初始化完成")

	return engine, nil
}

// Process 是规则引擎的主要处理函数
// 处理流程：
// 1. 使用分类器匹配白名单规则
// 2. 根据匹配结果生成Verdict
// 3. 由ActionPolicy决定转发或告警
func (r *RuleEngine) Process(ctx context.Context, in <-chan *types.Packet, wg *sync.WaitGroup) (<-chan *types.Packet, error) {
	out := make(chan *types.Packet)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)

		for packet := range in {
			start := time.Now()
			r.Inspect(packet)
			r.metrics.AddProcessingTime(time.Since(start))

			select {
			case out <- packet:
			case <-ctx.Done():
				logrus.Debug("Rule engine stopping due to context cancellation")
				return
			}
		}
	}()

	return out, nil
}

// Inspect 对单个数据包分类并设置Verdict和Action，同时更新指标并记录告警
func (r *RuleEngine) Inspect(packet *types.Packet) {
	r.metrics.IncrementProcessed()

	if err := r.Evaluate(packet); err != nil {
		logrus.Errorf("Packet %s: %v", packet.ID, err)
	}
	verdict, action := packet.Verdict, packet.Action

	if verdict.Accepted {
		r.metrics.IncrementAccepted()
	} else {
		r.metrics.IncrementRejected()
	}
	r.collector.ObserveVerdict(verdict.Accepted, verdict.RuleName, verdict.PayloadSize)

	if action == types.ActionAlert {
		r.metrics.IncrementAlert()
		r.collector.ObserveAlert()
		logrus.WithFields(logrus.Fields{
			"packet_id":    packet.ID,
			"src_ip":       packet.SrcIP.String(),
			"src_port":     packet.SrcPort,
			"dst_ip":       packet.DstIP.String(),
			"dst_port":     packet.DstPort,
			"protocol":     packet.Protocol,
			"accepted":     verdict.Accepted,
			"rule":         verdict.RuleName,
			"payload_size": verdict.PayloadSize,
		}).Warn("告警信息")
	}
}

// Evaluate 设置Verdict和Action，不更新指标也不记录日志
// 策略执行出错时动作为告警，错误同时记录在packet.LastError中
func (r *RuleEngine) Evaluate(packet *types.Packet) error {
	verdict := r.Classify(packet.Payload)
	packet.Verdict = verdict

	action, err := r.Policy().Decide(packet, verdict)
	packet.Action = action
	if err != nil {
		err = types.NewPipelineError(types.StageRuleEngineDetection.String(), err)
		packet.LastError = err
		return err
	}
	return nil
}

// Classify 只执行白名单匹配，不计算动作
func (r *RuleEngine) Classify(payload []byte) *types.Verdict {
	_, rule := r.classifier.Lookup(payload)
	verdict := &types.Verdict{
		Accepted:    rule != nil,
		PayloadSize: len(payload),
	}
	if rule != nil {
		verdict.RuleLine = rule.Line
		verdict.RuleName = rule.Name()
		verdict.RuleSource = rule.Source
	}
	return verdict
}

// Classifier 返回底层分类器
func (r *RuleEngine) Classifier() *classifier.PacketClassifier {
	return r.classifier
}

// Policy 返回当前使用的告警策略
func (r *RuleEngine) Policy() *ActionPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy
}

// SetPolicy 替换告警策略
func (r *RuleEngine) SetPolicy(policy *ActionPolicy) {
	if policy == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = policy
}

// UpdatePolicy 编译新的告警表达式，编译失败时保留原有策略
func (r *RuleEngine) UpdatePolicy(expression string) (*ActionPolicy, error) {
	policy, err := NewActionPolicy(expression)
	if err != nil {
		return nil, err
	}

	old := r.Policy()
	r.SetPolicy(policy)
	logrus.WithFields(logrus.Fields{
		"old_policy": old.Expression(),
		"new_policy": policy.Expression(),
	}).Info("告警策略已更新")
	return policy, nil
}

// ReloadRules 重新加载规则，失败时保留原有规则
func (r *RuleEngine) ReloadRules() error {
	r.mu.RLock()
	path := r.rulePath
	r.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("rule path is not configured")
	}
	return r.classifier.Reload(path)
}

func (r *RuleEngine) Stage() types.Stage {
	return types.StageRuleEngineDetection
}

func (r *RuleEngine) Name() string {
	return "RuleEngine"
}

func (r *RuleEngine) CheckReady() error {
	if r.classifier == nil || r.Policy() == nil {
		return types.ErrProcessorNotReady
	}
	return nil
}

// SetMetrics 使用流水线分配的指标对象
func (r *RuleEngine) SetMetrics(m *metrics.ProcessorMetrics) {
	r.metrics = m
}

func (r *RuleEngine) Metrics() *metrics.ProcessorMetrics {
	return r.metrics
}
