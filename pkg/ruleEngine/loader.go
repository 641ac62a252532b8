package ruleEngine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// RuleFileExt 规则文件扩展名
const RuleFileExt = ".nft"

// LoadRuleSetFromFile 从单个规则文件构建RuleSet
func LoadRuleSetFromFile(filePath string) (*RuleSet, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取规则文件失败: %w", err)
	}
	defer f.Close()

	return ParseReader(f, filepath.Base(filePath))
}

// RuleLoader 负责加载和管理规则文件
type RuleLoader struct {
	ruleSets map[string]*RuleSet // 使用map存储规则，key为规则文件名
}

// NewRuleLoader 创建一个新的规则加载器
func NewRuleLoader() *RuleLoader {
	return &RuleLoader{
		ruleSets: make(map[string]*RuleSet),
	}
}

// LoadRuleFromFile 从文件加载规则
func (rl *RuleLoader) LoadRuleFromFile(filePath string) error {
	rs, err := LoadRuleSetFromFile(filePath)
	if err != nil {
		return err
	}

	rl.ruleSets[rs.Source] = rs
	return nil
}

// LoadRulesFromDirectory 从目录加载所有 .nft 规则文件
// 任意一个文件解析失败时不修改已加载的规则
func (rl *RuleLoader) LoadRulesFromDirectory(dirPath string) error {
	files, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("读取目录失败: %w", err)
	}

	loaded := make(map[string]*RuleSet)
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != RuleFileExt {
			continue
		}
		rs, err := LoadRuleSetFromFile(filepath.Join(dirPath, file.Name()))
		if err != nil {
			return fmt.Errorf("加载规则文件 %s 失败: %w", file.Name(), err)
		}
		loaded[rs.Source] = rs
	}

	for name, rs := range loaded {
		rl.ruleSets[name] = rs
	}
	return nil
}

// GetRuleSet 根据文件名获取规则
func (rl *RuleLoader) GetRuleSet(name string) (*RuleSet, bool) {
	rs, exists := rl.ruleSets[name]
	return rs, exists
}

// GetAllRuleSets 获取所有规则文件
func (rl *RuleLoader) GetAllRuleSets() map[string]*RuleSet {
	return rl.ruleSets
}

// RuleSet 按文件名顺序合并所有已加载的规则，与 nft -f 按文件名顺序加载一致
func (rl *RuleLoader) RuleSet() *RuleSet {
	names := make([]string, 0, len(rl.ruleSets))
	for name := range rl.ruleSets {
		names = append(names, name)
	}
	sort.Strings(names)

	merged := &RuleSet{}
	for i, name := range names {
		if i > 0 {
			merged.Source += ","
		}
		merged.Source += name
		merged.Rules = append(merged.Rules, rl.ruleSets[name].Rules...)
	}
	return merged
}

// LoadRuleSet 根据路径加载规则，路径可以是单个文件或目录
func LoadRuleSet(path string) (*RuleSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("读取规则路径失败: %w", err)
	}
	if !info.IsDir() {
		return LoadRuleSetFromFile(path)
	}

	loader := NewRuleLoader()
	if err := loader.LoadRulesFromDirectory(path); err != nil {
		return nil, err
	}
	return loader.RuleSet(), nil
}
