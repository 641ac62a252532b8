package sink

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"github.com/sirupsen/logrus"
)

// Record 是输出文件中的一行
type Record struct {
	PacketID   string    `json:"packet_id"`
	Time       time.Time `json:"time"`
	SrcIP      string    `json:"src_ip,omitempty"`
	SrcPort    uint16    `json:"src_port,omitempty"`
	DstIP      string    `json:"dst_ip,omitempty"`
	DstPort    uint16    `json:"dst_port,omitempty"`
	Protocol   string    `json:"protocol"`
	Payload    string    `json:"payload"`
	Accepted   bool      `json:"accepted"`
	RuleName   string    `json:"rule_name,omitempty"`
	RuleLine   int       `json:"rule_line,omitempty"`
	RuleSource string    `json:"rule_source,omitempty"`
	Action     string    `json:"action"`
	Error      string    `json:"error,omitempty"`
}

// NewRecord 将数据包转换为输出记录
func NewRecord(packet *types.Packet) Record {
	r := Record{
		PacketID: packet.ID,
		Time:     time.Unix(0, packet.Timestamp).UTC(),
		SrcPort:  packet.SrcPort,
		DstPort:  packet.DstPort,
		Protocol: packet.Protocol,
		Payload:  hex.EncodeToString(packet.Payload),
		Action:   packet.Action.String(),
	}
	if packet.SrcIP != nil {
		r.SrcIP = packet.SrcIP.String()
	}
	if packet.DstIP != nil {
		r.DstIP = packet.DstIP.String()
	}
	if v := packet.Verdict; v != nil {
		r.Accepted = v.Accepted
		r.RuleName = v.RuleName
		r.RuleLine = v.RuleLine
		r.RuleSource = v.RuleSource
	}
	if packet.LastError != nil {
		r.Error = packet.LastError.Error()
	}
	return r
}

// JSONSink 将分类结果逐行写为JSON
type JSONSink struct {
	closer  io.Closer
	writer  *bufio.Writer
	encoder *json.Encoder
	ready   chan struct{}
	metrics *metrics.SinkMetrics
}

// NewJSONSink 创建输出文件，已存在时覆盖
func NewJSONSink(filename string) (*JSONSink, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", filename, err)
	}
	s := NewJSONWriterSink(f)
	s.closer = f
	return s, nil
}

// NewJSONWriterSink 将结果写入任意Writer
func NewJSONWriterSink(w io.Writer) *JSONSink {
	bw := bufio.NewWriter(w)
	return &JSONSink{
		writer:  bw,
		encoder: json.NewEncoder(bw),
		ready:   make(chan struct{}),
		metrics: &metrics.SinkMetrics{},
	}
}

func (s *JSONSink) Consume(ctx context.Context, in <-chan *types.Packet) error {
	logrus.Info("Starting json sink consumer")
	defer func() {
		if err := s.writer.Flush(); err != nil {
			logrus.Errorf("Failed to flush output: %v", err)
		}
		if s.closer != nil {
			if err := s.closer.Close(); err != nil {
				logrus.Errorf("Failed to close output file: %v", err)
			}
		}
		logrus.Info("Json sink consumer stopped")
	}()

	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("Json sink received context cancellation")
			return nil
		case packet, ok := <-in:
			if !ok {
				logrus.Debug("Json sink input channel closed")
				return nil
			}

			if err := s.encoder.Encode(NewRecord(packet)); err != nil {
				s.metrics.IncrementWriteErrors()
				logrus.Errorf("Failed to write record: %v", err)
				continue
			}
			s.metrics.IncrementWritten(len(packet.Payload))
		}
	}
}

func (s *JSONSink) Ready() <-chan struct{} {
	return s.ready
}

func (s *JSONSink) GetStats() *metrics.SinkMetrics {
	return s.metrics
}

func (s *JSONSink) Name() string {
	return "JSONSink"
}
