package metrics

import (
	"sync/atomic"
	"time"
)

type ProcessorMetrics struct {
	ProcessedPackets uint64
	DroppedPackets   uint64
	ProcessingTime   uint64 // 纳秒
	AcceptedPackets  uint64 // 白名单规则匹配计数
	RejectedPackets  uint64 // 未匹配任何规则的计数
	AlertPackets     uint64 // 触发告警的计数
}

func (m *ProcessorMetrics) IncrementProcessed() {
	atomic.AddUint64(&m.ProcessedPackets, 1)
}

func (m *ProcessorMetrics) IncrementDropped() {
	atomic.AddUint64(&m.DroppedPackets, 1)
}

func (m *ProcessorMetrics) IncrementAccepted() {
	atomic.AddUint64(&m.AcceptedPackets, 1)
}

func (m *ProcessorMetrics) IncrementRejected() {
	atomic.AddUint64(&m.RejectedPackets, 1)
}

func (m *ProcessorMetrics) IncrementAlert() {
	atomic.AddUint64(&m.AlertPackets, 1)
}

func (m *ProcessorMetrics) AddProcessingTime(duration time.Duration) {
	atomic.AddUint64(&m.ProcessingTime, uint64(duration.Nanoseconds()))
}

// GetStats 返回指标快照
func (m *ProcessorMetrics) GetStats() map[string]interface{} {
	processed := atomic.LoadUint64(&m.ProcessedPackets)
	avg := float64(0)
	if processed > 0 {
		avg = float64(atomic.LoadUint64(&m.ProcessingTime)) / float64(processed)
	}
	return map[string]interface{}{
		"processed_packets": processed,
		"dropped_packets":   atomic.LoadUint64(&m.DroppedPackets),
		"processing_time":   atomic.LoadUint64(&m.ProcessingTime),
		"accepted_packets":  atomic.LoadUint64(&m.AcceptedPackets),
		"rejected_packets":  atomic.LoadUint64(&m.RejectedPackets),
		"alert_packets":     atomic.LoadUint64(&m.AlertPackets),
		"avg_process_time":  avg,
	}
}

type SourceMetrics struct {
	PacketsCaptured uint64
	PacketsDropped  uint64
	BytesProcessed  uint64
	ErrorCount      uint64
}

// IncrementPacketsCaptured 增加读取的数据包计数
func (m *SourceMetrics) IncrementPacketsCaptured() {
	atomic.AddUint64(&m.PacketsCaptured, 1)
}

// IncrementPacketsDropped 增加被过滤的数据包计数
func (m *SourceMetrics) IncrementPacketsDropped() {
	atomic.AddUint64(&m.PacketsDropped, 1)
}

// AddBytesProcessed 增加处理的字节数
func (m *SourceMetrics) AddBytesProcessed(bytes uint64) {
	atomic.AddUint64(&m.BytesProcessed, bytes)
}

func (m *SourceMetrics) IncrementErrorCount() {
	atomic.AddUint64(&m.ErrorCount, 1)
}

// GetStats 返回数据源指标快照
func (m *SourceMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"packets_captured": atomic.LoadUint64(&m.PacketsCaptured),
		"packets_dropped":  atomic.LoadUint64(&m.PacketsDropped),
		"bytes_processed":  atomic.LoadUint64(&m.BytesProcessed),
		"error_count":      atomic.LoadUint64(&m.ErrorCount),
	}
}

type SinkMetrics struct {
	PacketsWritten uint64
	WriteErrors    uint64
	BytesWritten   uint64
}

func (m *SinkMetrics) IncrementWritten(bytes int) {
	atomic.AddUint64(&m.PacketsWritten, 1)
	atomic.AddUint64(&m.BytesWritten, uint64(bytes))
}

func (m *SinkMetrics) IncrementWriteErrors() {
	atomic.AddUint64(&m.WriteErrors, 1)
}

func (m *SinkMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"packets_written": atomic.LoadUint64(&m.PacketsWritten),
		"write_errors":    atomic.LoadUint64(&m.WriteErrors),
		"bytes_written":   atomic.LoadUint64(&m.BytesWritten),
	}
}
