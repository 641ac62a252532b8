package sink

import (
	"context"
	"fmt"
	"os"

	"github.com/haolipeng/gopacket/layers"
	"github.com/haolipeng/gopacket/pcapgo"
	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"github.com/sirupsen/logrus"
)

// PcapSink 将告警数据包的原始帧写入pcap文件
// 没有链路层数据的包和放行的包不会写入
type PcapSink struct {
	filename   string
	file       *os.File
	pcapWriter *pcapgo.Writer
	ready      chan struct{}
	metrics    *metrics.SinkMetrics
}

func NewPcapSink(filename string) (*PcapSink, error) {
	f, err := os.Create(filename)
	if err != nil {
		logrus.Errorf("Failed to create pcap file: %v", err)
		return nil, err
	}

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}

	logrus.Infof("Created alert pcap file: %s", filename)
	return &PcapSink{
		filename:   filename,
		file:       f,
		pcapWriter: w,
		ready:      make(chan struct{}),
		metrics:    &metrics.SinkMetrics{},
	}, nil
}

func (s *PcapSink) writePacketToPcap(packet *types.Packet) error {
	if packet.Action != types.ActionAlert || len(packet.RawData) == 0 {
		return nil
	}

	ci := packet.CaptureInfo
	if ci.CaptureLength == 0 {
		ci.CaptureLength = len(packet.RawData)
		ci.Length = len(packet.RawData)
	}
	if err := s.pcapWriter.WritePacket(ci, packet.RawData); err != nil {
		return err
	}
	s.metrics.IncrementWritten(len(packet.RawData))
	return nil
}

func (s *PcapSink) Consume(ctx context.Context, in <-chan *types.Packet) error {
	logrus.Info("Starting pcap sink consumer")
	//在程序结束时统一关闭文件
	defer func() {
		if err := s.file.Close(); err != nil {
			logrus.Errorf("Failed to close pcap file: %v", err)
		}
		logrus.Info("Pcap sink consumer stopped")
	}()

	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("Pcap sink received context cancellation")
			return nil
		case packet, ok := <-in:
			if !ok {
				logrus.Debug("Pcap sink input channel closed")
				return nil
			}

			if err := s.writePacketToPcap(packet); err != nil {
				s.metrics.IncrementWriteErrors()
				logrus.Errorf("Failed to write packet %s to %s: %v", packet.ID, s.filename, err)
			}
		}
	}
}

func (s *PcapSink) Ready() <-chan struct{} {
	return s.ready
}

func (s *PcapSink) GetStats() *metrics.SinkMetrics {
	return s.metrics
}

func (s *PcapSink) Name() string {
	return "PcapSink"
}
