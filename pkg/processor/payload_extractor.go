package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haolipeng/gopacket"
	"github.com/haolipeng/gopacket/layers"
	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PayloadExtractor 从链路层帧中解析出TCP载荷
// 没有TCP载荷或端口不匹配的帧会被丢弃
type PayloadExtractor struct {
	workers    int
	bufferSize int
	port       uint16 // 0表示不过滤端口
	metrics    *metrics.ProcessorMetrics
}

func NewPayloadExtractor(workers, bufferSize int, port uint16) *PayloadExtractor {
	if workers <= 0 {
		workers = 1
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &PayloadExtractor{
		workers:    workers,
		bufferSize: bufferSize,
		port:       port,
		metrics:    &metrics.ProcessorMetrics{},
	}
}

func (p *PayloadExtractor) Stage() types.Stage {
	return types.StagePayloadExtraction
}

// Name 返回处理器名称
func (p *PayloadExtractor) Name() string {
	return "PayloadExtractor"
}

func (p *PayloadExtractor) CheckReady() error {
	if p.metrics == nil {
		return types.ErrProcessorNotReady
	}
	return nil
}

// SetMetrics 使用流水线分配的指标对象
func (p *PayloadExtractor) SetMetrics(m *metrics.ProcessorMetrics) {
	p.metrics = m
}

func (p *PayloadExtractor) Metrics() *metrics.ProcessorMetrics {
	return p.metrics
}

func (p *PayloadExtractor) Process(ctx context.Context, in <-chan *types.Packet, wg *sync.WaitGroup) (<-chan *types.Packet, error) {
	out := make(chan *types.Packet, p.bufferSize)
	logrus.Debugf("Starting PayloadExtractor with %d workers", p.workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		workerID := i
		g.Go(func() error {
			return p.worker(gctx, workerID, in, out)
		})
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Errorf("Payload extractor stopped with error: %v", err)
		}
	}()

	return out, nil
}

func (p *PayloadExtractor) worker(ctx context.Context, workerID int, in <-chan *types.Packet, out chan<- *types.Packet) error {
	logrus.Debugf("Payload extractor worker %d started", workerID)
	for {
		select {
		case <-ctx.Done():
			logrus.Debugf("Payload extractor worker %d stopping due to context cancellation", workerID)
			return ctx.Err()
		case packet, ok := <-in:
			if !ok {
				logrus.Debugf("Payload extractor worker %d: input channel closed", workerID)
				return nil
			}

			if packet == nil {
				logrus.Warnf("Payload extractor worker %d received nil packet", workerID)
				continue
			}

			start := time.Now()
			keep := p.extract(packet)
			p.metrics.AddProcessingTime(time.Since(start))
			p.metrics.IncrementProcessed()
			if !keep {
				p.metrics.IncrementDropped()
				continue
			}

			select {
			case out <- packet:
			case <-ctx.Done():
				logrus.Warnf("Worker %d: context cancelled while sending packet", workerID)
				return ctx.Err()
			}
		}
	}
}

// extract 填充载荷、地址和端口，返回false表示丢弃该包
func (p *PayloadExtractor) extract(packet *types.Packet) bool {
	// 没有链路层数据时，载荷由数据源直接给出
	if len(packet.RawData) == 0 {
		if packet.Protocol == "" {
			packet.Protocol = types.ProtocolRaw
		}
		return len(packet.Payload) > 0
	}

	parsed := gopacket.NewPacket(packet.RawData, layers.LayerTypeEthernet, gopacket.Default)

	if ipLayer := parsed.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip, _ := ipLayer.(*layers.IPv4)
		packet.SrcIP = ip.SrcIP
		packet.DstIP = ip.DstIP
	} else if ipLayer := parsed.Layer(layers.LayerTypeIPv6); ipLayer != nil {
		ip, _ := ipLayer.(*layers.IPv6)
		packet.SrcIP = ip.SrcIP
		packet.DstIP = ip.DstIP
	}

	tcpLayer := parsed.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		logrus.Debugf("Packet %s has no TCP layer, dropped", packet.ID)
		return false
	}

	tcp, _ := tcpLayer.(*layers.TCP)
	packet.Protocol = types.ProtocolTCP
	packet.SrcPort = uint16(tcp.SrcPort)
	packet.DstPort = uint16(tcp.DstPort)
	packet.Payload = tcp.Payload

	if p.port != 0 && packet.SrcPort != p.port && packet.DstPort != p.port {
		logrus.Debugf("Packet %s port %d->%d filtered", packet.ID, packet.SrcPort, packet.DstPort)
		return false
	}

	return len(packet.Payload) > 0
}
