// Package testutil 构造测试用的报文和pcap文件
package testutil

import (
	"encoding/hex"
	"net"
	"os"
	"testing"
	"time"

	"github.com/haolipeng/gopacket"
	"github.com/haolipeng/gopacket/layers"
	"github.com/haolipeng/gopacket/pcapgo"
)

var (
	ClientIP = net.IPv4(192, 168, 1, 10).To4()
	ServerIP = net.IPv4(192, 168, 1, 20).To4()

	clientMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0x01, 0x02, 0x03}
	serverMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0x0a, 0x0b, 0x0c}
)

// MustHex 解码十六进制字符串，失败时终止测试
func MustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("非法的十六进制 %q: %v", s, err)
	}
	return b
}

func serialize(l ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, l...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ipv4(proto layers.IPProtocol) (*layers.Ethernet, *layers.IPv4) {
	eth := &layers.Ethernet{
		SrcMAC:       clientMAC,
		DstMAC:       serverMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    ClientIP,
		DstIP:    ServerIP,
	}
	return eth, ip
}

// TCPFrame 构造携带payload的以太网/IPv4/TCP帧
func TCPFrame(srcPort, dstPort uint16, payload []byte) ([]byte, error) {
	eth, ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     1000,
		Ack:     2000,
		PSH:     true,
		ACK:     true,
		Window:  8192,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	return serialize(eth, ip, tcp, gopacket.Payload(payload))
}

// UDPFrame 构造携带payload的以太网/IPv4/UDP帧
func UDPFrame(srcPort, dstPort uint16, payload []byte) ([]byte, error) {
	eth, ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	return serialize(eth, ip, udp, gopacket.Payload(payload))
}

// MustTCPFrame 同TCPFrame，失败时终止测试
func MustTCPFrame(t testing.TB, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	frame, err := TCPFrame(srcPort, dstPort, payload)
	if err != nil {
		t.Fatalf("构造TCP帧失败: %v", err)
	}
	return frame
}

// MustUDPFrame 同UDPFrame，失败时终止测试
func MustUDPFrame(t testing.TB, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	frame, err := UDPFrame(srcPort, dstPort, payload)
	if err != nil {
		t.Fatalf("构造UDP帧失败: %v", err)
	}
	return frame
}

// WritePcapFile 将帧按顺序写入pcap文件，时间戳从start开始每帧递增1毫秒
func WritePcapFile(path string, start time.Time, frames [][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		return err
	}
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := w.WritePacket(ci, frame); err != nil {
			return err
		}
	}
	return nil
}
