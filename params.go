package tbremote

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseModuleList 解析 :PRTM:LIST? 的应答。
// 应答由逗号（或换行）分隔的 name:port 记录组成，例如 "ModA:5001,ModB:5002"。
func ParseModuleList(reply string) (map[string]int, error) {
	modules := make(map[string]int)
	records := strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	for _, rec := range records {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		name, value, ok := strings.Cut(rec, ":")
		if !ok {
			return nil, NewProtocolError("parse module list", "name:port", rec)
		}
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, NewProtocolError("parse module list", "numeric port", rec)
		}
		modules[strings.TrimSpace(name)] = port
	}
	return modules, nil
}

// moduleNames 返回排好序的模块名，用于错误信息。
func moduleNames(modules map[string]int) []string {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseApplicationList 解析 :SYST:APPL:CAPP? 的应答，允许末尾多余的逗号。
func ParseApplicationList(reply string) []Application {
	apps := make([]Application, 0)
	for _, tok := range strings.Split(reply, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		apps = append(apps, ApplicationFromID(tok))
	}
	return apps
}

// ParseInteger 按统一语法解析整数：0x 前缀为十六进制，0b 前缀为二进制，否则为十进制。
// 允许前导正负号。
func ParseInteger(s string) (int, error) {
	s = strings.TrimSpace(s)
	body := s
	neg := false
	if strings.HasPrefix(body, "+") || strings.HasPrefix(body, "-") {
		neg = body[0] == '-'
		body = body[1:]
	}

	base := 10
	lower := strings.ToLower(body)
	switch {
	case strings.HasPrefix(lower, "0x"):
		base, body = 16, body[2:]
	case strings.HasPrefix(lower, "0b"):
		base, body = 2, body[2:]
	}

	if body == "" || body[0] == '+' || body[0] == '-' {
		return 0, &ParseError{Kind: ParseBadNumber, Input: s,
			Message: fmt.Sprintf("%q is not a hex, binary or decimal integer", s)}
	}
	v, err := strconv.ParseInt(body, base, 64)
	if err != nil {
		return 0, &ParseError{Kind: ParseBadNumber, Input: s,
			Message: fmt.Sprintf("%q is not a hex, binary or decimal integer", s)}
	}
	if neg {
		v = -v
	}
	return int(v), nil
}

// parseIntReply 解析仪表返回的十进制整数应答。
func parseIntReply(op, reply string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return 0, NewProtocolError(op, "integer", reply)
	}
	return v, nil
}

// IsNoError 报告 :SYST:ERR? 应答是否表示无错误（"0, ..." 或 "+0, ..."）。
func IsNoError(status string) bool {
	status = strings.TrimPrefix(strings.TrimSpace(status), "+")
	code, _, ok := strings.Cut(status, ",")
	return ok && strings.TrimSpace(code) == "0"
}

// validateRegister 检查 v 是否在 0..0xFF 内。
func validateRegister(field string, v int) error {
	if v < 0 || v > MaxRegisterValue {
		return NewValidationError(field, strconv.Itoa(v), "must be within 0..0xFF")
	}
	return nil
}
