package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/haolipeng/nft_payload_classifier/pkg/config"
	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
)

// Source 是所有数据源共有的方法
type Source interface {
	Start(ctx context.Context, wg *sync.WaitGroup) error
	Output() <-chan *types.Packet
	GetStats() *metrics.SourceMetrics
	WaitForCompletion() <-chan struct{}
}

// New 根据配置创建数据源
func New(cfg *config.Config) (Source, error) {
	switch cfg.Source.Type {
	case config.SourceTypePcap:
		return NewPcapFileSource(cfg.Source.Filename, cfg.Pipeline.BufferSize)
	case config.SourceTypeHex:
		return NewHexFileSource(cfg.Source.Filename, cfg.Pipeline.BufferSize)
	default:
		return nil, fmt.Errorf("unsupported source type: %q", cfg.Source.Type)
	}
}
