package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/haolipeng/nft_payload_classifier/pkg/classifier"
	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"github.com/sirupsen/logrus"
)

// HexFileSource 从文本文件读取载荷，每行一个十六进制载荷
// 空行和以#开头的行被忽略
type HexFileSource struct {
	file     *os.File
	output   chan *types.Packet
	done     chan struct{}
	stats    *metrics.SourceMetrics
	filename string
}

func NewHexFileSource(filename string, bufferSize int) (*HexFileSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open hex file %s: %w", filename, err)
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &HexFileSource{
		file:     f,
		output:   make(chan *types.Packet, bufferSize),
		done:     make(chan struct{}),
		stats:    &metrics.SourceMetrics{},
		filename: filename,
	}, nil
}

func (s *HexFileSource) Start(ctx context.Context, wg *sync.WaitGroup) error {
	logrus.Infof("Started reading payloads from file: %s", s.filename)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(s.output)
		defer s.file.Close()
		defer close(s.done)

		scanner := bufio.NewScanner(s.file)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			payload, err := classifier.DecodeHexPayload(line)
			if err != nil {
				s.stats.IncrementErrorCount()
				s.stats.IncrementPacketsDropped()
				logrus.Warnf("%s:%d: %v", s.filename, lineNo, err)
				continue
			}

			s.stats.IncrementPacketsCaptured()
			s.stats.AddBytesProcessed(uint64(len(payload)))

			packet := &types.Packet{
				ID:        fmt.Sprintf("line-%d", lineNo),
				Timestamp: time.Now().UnixNano(),
				Payload:   payload,
				Protocol:  types.ProtocolRaw,
			}

			select {
			case s.output <- packet:
			case <-ctx.Done():
				logrus.Info("Stopping payload reading due to context cancellation")
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.stats.IncrementErrorCount()
			logrus.Errorf("Error reading hex file %s: %v", s.filename, err)
		}
	}()

	return nil
}

func (s *HexFileSource) Output() <-chan *types.Packet {
	return s.output
}

func (s *HexFileSource) GetStats() *metrics.SourceMetrics {
	return s.stats
}

func (s *HexFileSource) WaitForCompletion() <-chan struct{} {
	return s.done
}
