package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// 数据源类型
const (
	SourceTypePcap = "pcap"
	SourceTypeHex  = "hex"
)

// DefaultAlertExpression 默认只对未匹配白名单的载荷告警
const DefaultAlertExpression = "!accepted"

type Config struct {
	RuleEngine struct {
		RulePath        string `yaml:"rule_path"`        // 规则文件或规则目录
		AlertExpression string `yaml:"alert_expression"` // 决定是否告警的CEL表达式
	} `yaml:"rule_engine"`

	Source struct {
		Type     string `yaml:"type"`     // pcap 或 hex
		Filename string `yaml:"filename"` // 数据源文件
		Port     uint16 `yaml:"port"`     // 只处理该TCP端口的报文，0表示不过滤
	} `yaml:"source"`

	Pipeline struct {
		WorkerCount int `yaml:"worker_count"`
		BufferSize  int `yaml:"buffer_size"`
	} `yaml:"pipeline"`

	Output struct {
		Filename      string `yaml:"filename"`        // 分类结果，每行一个JSON
		AlertPcapFile string `yaml:"alert_pcap_file"` // 告警报文写入的pcap文件，为空则不写
	} `yaml:"output"`

	Log struct {
		Level      string `yaml:"level"`
		Dir        string `yaml:"dir"`
		Filename   string `yaml:"filename"`
		MaxAge     int    `yaml:"max_age"`     // 小时
		RotateTime int    `yaml:"rotate_time"` // 小时
	} `yaml:"log"`

	API struct {
		Enable bool   `yaml:"enable"`
		Host   string `yaml:"host"`
		Port   string `yaml:"port"`
	} `yaml:"api"`
}

// DefaultConfig 返回带有默认值的配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.RuleEngine.RulePath = "rules"
	cfg.RuleEngine.AlertExpression = DefaultAlertExpression
	cfg.Source.Type = SourceTypePcap
	cfg.Source.Port = 8000
	cfg.Pipeline.WorkerCount = 4
	cfg.Pipeline.BufferSize = 1000
	cfg.Output.Filename = "output.json"
	cfg.Log.Level = "WARN"
	cfg.Log.Dir = "logs"
	cfg.Log.Filename = "classifier.log"
	cfg.Log.MaxAge = 24
	cfg.Log.RotateTime = 1
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = "8080"
	return cfg
}

func (c *Config) Validate() error {
	if c.RuleEngine.RulePath == "" {
		return fmt.Errorf("rule path is required")
	}
	switch c.Source.Type {
	case SourceTypePcap, SourceTypeHex:
	default:
		return fmt.Errorf("unsupported source type: %q", c.Source.Type)
	}
	if c.Source.Filename == "" {
		return fmt.Errorf("source filename is required")
	}
	if c.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Pipeline.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive")
	}
	if c.Log.MaxAge < 0 || c.Log.RotateTime < 0 {
		return fmt.Errorf("log max age and rotate time must not be negative")
	}
	if c.API.Enable && c.API.Port == "" {
		return fmt.Errorf("api port is required when api is enabled")
	}
	return nil
}

// LoadConfig 读取配置文件，未设置的字段使用默认值
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
