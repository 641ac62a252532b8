package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadConfig 测试加载项目自带的配置文件
func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../../config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "rules", cfg.RuleEngine.RulePath)
	assert.Equal(t, "!accepted", cfg.RuleEngine.AlertExpression)
	assert.Equal(t, SourceTypePcap, cfg.Source.Type)
	assert.Equal(t, uint16(8000), cfg.Source.Port)
	assert.Equal(t, 4, cfg.Pipeline.WorkerCount)
	assert.Equal(t, "alerts.pcap", cfg.Output.AlertPcapFile)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.False(t, cfg.API.Enable)
}

// TestLoadConfigDefaults 未设置的字段使用默认值
func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "source:\n  type: hex\n  filename: payloads.txt\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, SourceTypeHex, cfg.Source.Type)
	assert.Equal(t, "payloads.txt", cfg.Source.Filename)
	assert.Equal(t, uint16(8000), cfg.Source.Port)
	assert.Equal(t, DefaultAlertExpression, cfg.RuleEngine.AlertExpression)
	assert.Equal(t, 1000, cfg.Pipeline.BufferSize)
	assert.Equal(t, "WARN", cfg.Log.Level)
}

// TestLoadConfigInvalid 测试非法配置
func TestLoadConfigInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"缺少数据源文件", "source:\n  filename: \"\"\n"},
		{"未知数据源类型", "source:\n  type: live\n  filename: a\n"},
		{"工作协程数为0", "source:\n  filename: a\npipeline:\n  worker_count: 0\n"},
		{"缓冲区为负数", "source:\n  filename: a\npipeline:\n  buffer_size: -1\n"},
		{"规则路径为空", "source:\n  filename: a\nrule_engine:\n  rule_path: \"\"\n"},
		{"启用API但没有端口", "source:\n  filename: a\napi:\n  enable: true\n  port: \"\"\n"},
		{"YAML格式错误", "source: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig("not_exist.yaml")
	assert.Error(t, err)
}
