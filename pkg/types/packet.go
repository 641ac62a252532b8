package types

import (
	"net"

	"github.com/haolipeng/gopacket"
)

// Packet 表示处理流水线中传递的数据包
type Packet struct {
	ID          string
	Timestamp   int64
	CaptureInfo gopacket.CaptureInfo // 抓包元数据，写回pcap时使用
	RawData     []byte               // 完整的链路层帧，十六进制来源时为空
	Payload     []byte               // TCP载荷，即一条完整的LXP报文
	Protocol    string
	SrcIP       net.IP
	DstIP       net.IP
	SrcPort     uint16
	DstPort     uint16
	LastError   error

	Verdict *Verdict   // 分类结果
	Action  RuleAction // 处理动作
}

// 载荷来源的协议
const (
	ProtocolTCP = "TCP" // 从TCP报文中提取
	ProtocolRaw = "RAW" // 直接给出的载荷，没有链路层数据
)

// Stage 表示处理阶段的状态
type Stage int

const (
	StagePayloadExtraction   Stage = iota + 1 //载荷提取
	StageRuleEngineDetection                  //规则引擎检测
)

func (s Stage) String() string {
	switch s {
	case StagePayloadExtraction:
		return "payload_extraction"
	case StageRuleEngineDetection:
		return "rule_engine_detection"
	default:
		return "unknown"
	}
}
