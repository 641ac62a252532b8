package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/haolipeng/gopacket"
	"github.com/haolipeng/gopacket/layers"
	"github.com/haolipeng/gopacket/pcapgo"
	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"github.com/sirupsen/logrus"
)

type packetDataReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// PcapFileSource 从pcap或pcapng文件中读取链路层帧
type PcapFileSource struct {
	file     *os.File
	reader   packetDataReader
	output   chan *types.Packet
	done     chan struct{}
	stats    *metrics.SourceMetrics
	filename string
}

func NewPcapFileSource(filename string, bufferSize int) (*PcapFileSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", filename, err)
	}

	reader, linkType, err := openPacketReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap file %s: %w", filename, err)
	}
	if linkType != layers.LinkTypeEthernet {
		logrus.Warnf("Pcap file %s has link type %s, frames are decoded as ethernet", filename, linkType)
	}

	if bufferSize <= 0 {
		bufferSize = 1
	}

	return &PcapFileSource{
		file:     f,
		reader:   reader,
		output:   make(chan *types.Packet, bufferSize),
		done:     make(chan struct{}),
		stats:    &metrics.SourceMetrics{},
		filename: filename,
	}, nil
}

// openPacketReader 先按pcap格式解析，失败后按pcapng格式解析
func openPacketReader(f *os.File) (packetDataReader, layers.LinkType, error) {
	br := bufio.NewReader(f)
	r, err := pcapgo.NewReader(br)
	if err == nil {
		return r, r.LinkType(), nil
	}

	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, 0, serr
	}
	ng, ngErr := pcapgo.NewNgReader(bufio.NewReader(f), pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		return nil, 0, errors.Join(err, ngErr)
	}
	return ng, ng.LinkType(), nil
}

func (s *PcapFileSource) Start(ctx context.Context, wg *sync.WaitGroup) error {
	logrus.Infof("Started reading packets from file: %s", s.filename)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(s.output)
		defer s.file.Close()
		defer close(s.done)

		var packetCount int64
		for {
			data, ci, err := s.reader.ReadPacketData()
			if err != nil {
				if errors.Is(err, io.EOF) {
					logrus.Info("Reached end of pcap file")
				} else {
					s.stats.IncrementErrorCount()
					logrus.Warnf("Error reading packet: %v", err)
				}
				return
			}

			packetCount++
			s.stats.IncrementPacketsCaptured()
			s.stats.AddBytesProcessed(uint64(len(data)))

			packet := &types.Packet{
				ID:          fmt.Sprintf("pkt-%d", packetCount),
				Timestamp:   ci.Timestamp.UnixNano(),
				CaptureInfo: ci,
				RawData:     data,
			}

			select {
			case s.output <- packet:
			case <-ctx.Done():
				logrus.Info("Stopping packet reading due to context cancellation")
				return
			}
		}
	}()

	return nil
}

func (s *PcapFileSource) Output() <-chan *types.Packet {
	return s.output
}

func (s *PcapFileSource) GetStats() *metrics.SourceMetrics {
	return s.stats
}

func (s *PcapFileSource) WaitForCompletion() <-chan struct{} {
	return s.done
}
