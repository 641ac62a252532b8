package sink

import (
	"context"

	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"golang.org/x/sync/errgroup"
)

// MultiSink 将每个数据包分发给所有下游sink
type MultiSink struct {
	sinks []Consumer
	ready chan struct{}
}

func NewMultiSink(sinks ...Consumer) *MultiSink {
	return &MultiSink{
		sinks: sinks,
		ready: make(chan struct{}),
	}
}

func (m *MultiSink) Consume(ctx context.Context, in <-chan *types.Packet) error {
	g, gctx := errgroup.WithContext(ctx)

	inputs := make([]chan *types.Packet, len(m.sinks))
	for i, s := range m.sinks {
		ch := make(chan *types.Packet)
		inputs[i] = ch
		consumer := s
		g.Go(func() error {
			return consumer.Consume(gctx, ch)
		})
	}

	// 等待所有下游就绪
	for _, s := range m.sinks {
		select {
		case <-s.Ready():
		case <-gctx.Done():
		}
	}
	close(m.ready)

	g.Go(func() error {
		defer func() {
			for _, ch := range inputs {
				close(ch)
			}
		}()
		for {
			select {
			case <-gctx.Done():
				return nil
			case packet, ok := <-in:
				if !ok {
					return nil
				}
				for _, ch := range inputs {
					select {
					case ch <- packet:
					case <-gctx.Done():
						return nil
					}
				}
			}
		}
	})

	return g.Wait()
}

func (m *MultiSink) Ready() <-chan struct{} {
	return m.ready
}

// GetStats 按名称返回各个下游sink的指标
func (m *MultiSink) GetStats() map[string]interface{} {
	stats := make(map[string]interface{}, len(m.sinks))
	for _, s := range m.sinks {
		if provider, ok := s.(StatsProvider); ok {
			stats[provider.Name()] = provider.GetStats().GetStats()
		}
	}
	return stats
}
