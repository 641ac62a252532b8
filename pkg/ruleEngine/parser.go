package ruleEngine

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 规则解析错误的具体原因
var (
	ErrUnsupportedBase = errors.New("不支持的载荷基址")
	ErrFieldCount      = errors.New("子句字段数量错误")
	ErrInvalidNumber   = errors.New("非法的位偏移或位长度")
	ErrNotByteAligned  = errors.New("位偏移或位长度不是8的整数倍")
	ErrInvalidHex      = errors.New("非法的十六进制值")
	ErrValueTooWide    = errors.New("十六进制值超出字段宽度")
)

// 规则行允许的最大长度，超长子句（如比较整段保留区）需要较大的缓冲区
const maxRuleLineSize = 4 * 1024 * 1024

// ParseError 表示规则文件中某个子句格式错误
type ParseError struct {
	Source string // 规则来源
	Line   int    // 行号，从1开始
	Clause int    // 子句序号，从1开始
	Err    error  // 具体原因
}

func (e *ParseError) Error() string {
	source := e.Source
	if source == "" {
		source = "<input>"
	}
	return fmt.Sprintf("%s:%d: 第%d个子句: %v", source, e.Line, e.Clause, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse 从规则文本构建RuleSet
func Parse(text string) (*RuleSet, error) {
	return ParseReader(strings.NewReader(text), "")
}

// ParseReader 逐行读取规则，只处理包含 @ih 标记的行
// 任意一个子句解析失败都会导致整体失败，不会返回部分规则
func ParseReader(r io.Reader, source string) (*RuleSet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRuleLineSize)

	rs := &RuleSet{Source: source}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		segments, ok := selectRuleLine(stripComment(scanner.Text()))
		if !ok {
			continue
		}

		rule, err := parseRuleLine(segments, lineNo)
		if err != nil {
			err.Source = source
			return nil, err
		}
		rule.Source = source
		rs.Rules = append(rs.Rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取规则失败: %w", err)
	}

	return rs, nil
}

// selectRuleLine 判断一行是否包含 @ih 标记，并返回按@切分后的子句文本
// 第一个@之前的选择器（如 tcp dport 8000）不参与匹配，引号内的@ih不算
// 标记后的格式是否正确由parseRuleLine检查，@ih0,16 这类写法会报错而不是被忽略
func selectRuleLine(line string) ([]string, bool) {
	if !strings.Contains(line, ClauseMarker) {
		return nil, false
	}
	segments := splitOutsideQuotes(line, '@')[1:]
	for _, seg := range segments {
		if strings.HasPrefix(seg, PayloadBase) {
			return segments, true
		}
	}
	return nil, false
}

// parseRuleLine 将子句文本解析为一条规则
func parseRuleLine(segments []string, lineNo int) (Rule, *ParseError) {
	rule := Rule{
		Clauses: make([]Clause, 0, len(segments)),
		Line:    lineNo,
	}

	for i, seg := range segments {
		fail := func(err error) (Rule, *ParseError) {
			return Rule{}, &ParseError{Line: lineNo, Clause: i + 1, Err: err}
		}

		base, rest := nextToken(seg)
		offsetTok, rest := nextToken(rest)
		lengthTok, rest := nextToken(rest)
		valueTok, rest := nextToken(rest)
		rest = strings.TrimFunc(rest, isSeparatorRune)

		if base != PayloadBase {
			return fail(fmt.Errorf("%w: %q", ErrUnsupportedBase, base))
		}
		if valueTok == "" {
			return fail(fmt.Errorf("%w: 需要 <位偏移> <位长度> <值>", ErrFieldCount))
		}
		last := i == len(segments)-1
		if rest != "" && !last {
			return fail(fmt.Errorf("%w: 多余的内容 %q", ErrFieldCount, rest))
		}

		clause, err := parseClause(offsetTok, lengthTok, valueTok)
		if err != nil {
			return fail(err)
		}
		rule.Clauses = append(rule.Clauses, clause)

		if last {
			rule.Statement = rest
			rule.Comment = extractComment(rest)
		}
	}

	return rule, nil
}

// parseClause 将位单位的字段转换为字节单位的子句
func parseClause(offsetTok, lengthTok, valueTok string) (Clause, error) {
	offsetBits, err := parseBits(offsetTok)
	if err != nil {
		return Clause{}, err
	}
	lengthBits, err := parseBits(lengthTok)
	if err != nil {
		return Clause{}, err
	}
	if lengthBits == 0 {
		return Clause{}, fmt.Errorf("%w: 位长度必须大于0", ErrInvalidNumber)
	}

	width := lengthBits / 8
	expected, err := decodeHexValue(valueTok, width)
	if err != nil {
		return Clause{}, err
	}

	return Clause{
		ByteOffset: offsetBits / 8,
		ByteLength: width,
		Expected:   expected,
	}, nil
}

// parseBits 解析十进制位数，取值限定在32位以内，换算成字节后相加不会溢出
func parseBits(tok string) (int, error) {
	v, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, tok)
	}
	if v%8 != 0 {
		return 0, fmt.Errorf("%w: %d", ErrNotByteAligned, v)
	}
	return int(v), nil
}

// decodeHexValue 按大端解码十六进制值，并在左侧补零到字段宽度
func decodeHexValue(tok string, width int) ([]byte, error) {
	digits := tok
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}
	if digits == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, tok)
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, tok)
	}

	// 高位的零字节不计入有效宽度
	for len(raw) > width && raw[0] == 0 {
		raw = raw[1:]
	}
	if len(raw) > width {
		return nil, fmt.Errorf("%w: %d字节 > %d字节", ErrValueTooWide, len(raw), width)
	}

	value := make([]byte, width)
	copy(value[width-len(raw):], raw)
	return value, nil
}

// isFieldSeparator 逗号和ASCII空白都是字段分隔符
func isFieldSeparator(b byte) bool {
	return b == ',' || (b < utf8.RuneSelf && unicode.IsSpace(rune(b)))
}

func isSeparatorRune(r rune) bool {
	return r < utf8.RuneSelf && isFieldSeparator(byte(r))
}

// nextToken 跳过连续的逗号/空白，返回下一个字段和剩余内容
func nextToken(s string) (string, string) {
	i := 0
	for i < len(s) && isFieldSeparator(s[i]) {
		i++
	}
	j := i
	for j < len(s) && !isFieldSeparator(s[j]) {
		j++
	}
	return s[i:j], s[j:]
}

// splitOutsideQuotes 按sep切分，双引号内的sep不切分
func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripComment 去掉 # 之后的注释，引号内的 # 保留
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// extractComment 提取语句中的 comment "..." 内容
func extractComment(statement string) string {
	idx := strings.Index(statement, "comment")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(statement[idx+len("comment"):])
	if !strings.HasPrefix(rest, `"`) {
		first, _ := nextToken(rest)
		return first
	}
	rest = rest[1:]
	if end := strings.IndexByte(rest, '"'); end >= 0 {
		return rest[:end]
	}
	return rest
}
