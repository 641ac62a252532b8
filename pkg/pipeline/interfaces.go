package pipeline

import (
	"context"
	"sync"

	"github.com/haolipeng/nft_payload_classifier/pkg/config"
	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
)

// Source 定义数据源接口
type Source interface {
	// Start 启动数据源，读取结束后关闭Output
	Start(ctx context.Context, wg *sync.WaitGroup) error
	// Output 返回数据输出channel
	Output() <-chan *types.Packet
}

// Processor 定义数据处理器接口
type Processor interface {
	// Process 处理数据包，输入关闭后处理器关闭自己的输出
	Process(ctx context.Context, in <-chan *types.Packet, wg *sync.WaitGroup) (<-chan *types.Packet, error)
	// Stage 返回处理器所属阶段
	Stage() types.Stage
	// Name 返回处理器的名称
	Name() string
	// CheckReady 检查处理器是否就绪
	CheckReady() error
}

// Sink 定义数据输出接口
type Sink interface {
	// Consume 消费处理后的数据包
	Consume(ctx context.Context, in <-chan *types.Packet) error
	// Ready 返回就绪信号channel
	Ready() <-chan struct{}
}

// Pipeline 定义处理流水线接口
type Pipeline interface {
	// AddProcessor 添加处理器
	AddProcessor(processor Processor) error
	// SetSource 设置数据源
	SetSource(source Source)
	// SetSink 设置数据输出
	SetSink(sink Sink)
	// Start 启动流水线
	Start(ctx context.Context) error
	// Done 在sink消费完所有数据后关闭
	Done() <-chan struct{}
	// Stop 停止流水线
	Stop() error
	// GetMetrics 获取处理器指标
	GetMetrics() map[string]*metrics.ProcessorMetrics
	// GetStats 返回运行状态和指标快照
	GetStats() map[string]interface{}
	// SetConfig 设置流水线配置
	SetConfig(*config.Config) error
	// Status 返回流水线状态
	Status() string
}

// metricsAware 由需要使用流水线指标的处理器实现
type metricsAware interface {
	SetMetrics(m *metrics.ProcessorMetrics)
}

// sourceStats 由记录读取指标的数据源实现
type sourceStats interface {
	GetStats() *metrics.SourceMetrics
}

// sinkStats 由记录写入指标的sink实现
type sinkStats interface {
	Name() string
	GetStats() *metrics.SinkMetrics
}

// sinkStatsReporter 由包含多个下游的sink实现
type sinkStatsReporter interface {
	GetStats() map[string]interface{}
}
