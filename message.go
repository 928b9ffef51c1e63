package tbremote

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// LineTerminator 是 SCPI 命令与应答的行结束符。
const LineTerminator = "\n"

// ReadLine 从 r 读取一行应答，去掉行尾的 "\r\n" 和首尾空白。
// 连接在行尾之前关闭时，返回已读到的内容；没有内容则返回 io.EOF。
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadFrame 读取一行，并把缓冲区中已到达的后续完整行一并读出，以换行连接。
// 多行应答（例如端口列表）一次性到达时使用。
func ReadFrame(r *bufio.Reader) (string, error) {
	first, err := ReadLine(r)
	if err != nil {
		return "", err
	}
	lines := []string{first}
	for r.Buffered() > 0 {
		peek, _ := r.Peek(r.Buffered())
		if !strings.Contains(string(peek), LineTerminator) {
			break
		}
		next, err := ReadLine(r)
		if err != nil {
			break
		}
		if next != "" {
			lines = append(lines, next)
		}
	}
	return strings.Join(lines, LineTerminator), nil
}

// WriteLine 写入一条命令并补上行结束符，不负责 Flush。
func WriteLine(w *bufio.Writer, cmd string) error {
	cmd = strings.TrimRight(cmd, "\r\n")
	if _, err := w.WriteString(cmd); err != nil {
		return err
	}
	_, err := w.WriteString(LineTerminator)
	return err
}

// IsQuery 报告 cmd 是否为查询命令（包含 '?'）。
func IsQuery(cmd string) bool {
	return strings.Contains(cmd, "?")
}
