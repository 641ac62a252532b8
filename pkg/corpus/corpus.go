// Package corpus 读取带标注的载荷样本，并用分类器逐条校验
package corpus

import (
	"fmt"
	"os"

	"github.com/haolipeng/nft_payload_classifier/pkg/classifier"
	"github.com/haolipeng/nft_payload_classifier/pkg/ruleEngine"
	"gopkg.in/yaml.v2"
)

// 期望的分类结果
const (
	ExpectAccept = "accept"
	ExpectReject = "reject"
)

type Entry struct {
	Name    string `yaml:"name"`
	Payload string `yaml:"payload"`
	Expect  string `yaml:"expect"`

	raw []byte
}

// Accept 返回期望是否为接受
func (e Entry) Accept() bool {
	return e.Expect == ExpectAccept
}

// Bytes 返回解码后的载荷
func (e Entry) Bytes() []byte {
	return e.raw
}

type Corpus struct {
	Name    string  `yaml:"name"`
	Entries []Entry `yaml:"entries"`
}

// Matcher 是校验所需的分类器方法
type Matcher interface {
	Match(payload []byte) (*ruleEngine.Rule, bool)
}

// Load 读取并校验样本文件
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}
	return Parse(data)
}

// Parse 解析YAML格式的样本
func Parse(data []byte) (*Corpus, error) {
	c := &Corpus{}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}

	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Name == "" {
			e.Name = fmt.Sprintf("entry_%d", i+1)
		}
		switch e.Expect {
		case ExpectAccept, ExpectReject:
		default:
			return nil, fmt.Errorf("entry %q: expect must be %q or %q, got %q", e.Name, ExpectAccept, ExpectReject, e.Expect)
		}
		raw, err := classifier.DecodeHexPayload(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Name, err)
		}
		e.raw = raw
	}

	return c, nil
}

// Result 是单条样本的校验结果
type Result struct {
	Entry    Entry
	Accepted bool
	Rule     string // 匹配规则的名称
}

// Passed 实际结果与期望一致
func (r Result) Passed() bool {
	return r.Accepted == r.Entry.Accept()
}

type Report struct {
	Corpus   string
	Results  []Result
	Failures []Result
}

// OK 所有样本均符合期望
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

func (r *Report) String() string {
	return fmt.Sprintf("%s: %d/%d passed", r.Corpus, len(r.Results)-len(r.Failures), len(r.Results))
}

// Verify 使用分类器对每条样本分类
func Verify(m Matcher, c *Corpus) *Report {
	report := &Report{Corpus: c.Name, Results: make([]Result, 0, len(c.Entries))}
	for _, e := range c.Entries {
		rule, ok := m.Match(e.raw)
		res := Result{Entry: e, Accepted: ok}
		if ok {
			res.Rule = rule.Name()
		}
		report.Results = append(report.Results, res)
		if !res.Passed() {
			report.Failures = append(report.Failures, res)
		}
	}
	return report
}
