package sink

import (
	"context"

	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
)

// Consumer 与流水线的Sink接口一致
type Consumer interface {
	Consume(ctx context.Context, in <-chan *types.Packet) error
	Ready() <-chan struct{}
}

// StatsProvider 由记录写入指标的sink实现
type StatsProvider interface {
	Name() string
	GetStats() *metrics.SinkMetrics
}
