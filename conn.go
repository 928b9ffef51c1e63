package tbremote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

// Conn 是一条按行收发的 TCP 连接。每次读写都带截止时间。
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	mu     sync.Mutex // 写锁
}

// NewConn 包装 c。
func NewConn(c net.Conn) *Conn {
	return &Conn{raw: c, reader: bufio.NewReader(c), writer: bufio.NewWriter(c)}
}

// Close 关闭底层连接。
func (c *Conn) Close() error {
	return c.raw.Close()
}

// WriteLine 在超时内写入一条命令。
func (c *Conn) WriteLine(ctx context.Context, cmd string, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.raw.SetWriteDeadline(mergeDeadline(ctx, timeout)); err != nil {
		return wrapTimeout("write", err)
	}
	defer c.raw.SetWriteDeadline(time.Time{})

	if err := WriteLine(c.writer, cmd); err != nil {
		return wrapTimeout("write", err)
	}
	return wrapTimeout("write", c.writer.Flush())
}

// ReadLine 在超时内读取一行应答。
func (c *Conn) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	if err := c.raw.SetReadDeadline(mergeDeadline(ctx, timeout)); err != nil {
		return "", wrapTimeout("read", err)
	}
	defer c.raw.SetReadDeadline(time.Time{})

	line, err := ReadLine(c.reader)
	return line, wrapTimeout("read", err)
}

// ReadFrame 在超时内读取一行及随后已到达的行。
func (c *Conn) ReadFrame(ctx context.Context, timeout time.Duration) (string, error) {
	if err := c.raw.SetReadDeadline(mergeDeadline(ctx, timeout)); err != nil {
		return "", wrapTimeout("read", err)
	}
	defer c.raw.SetReadDeadline(time.Time{})

	frame, err := ReadFrame(c.reader)
	return frame, wrapTimeout("read", err)
}

// DialContext 使用 context 连接到 host:port。
func DialContext(ctx context.Context, host string, port int, timeout time.Duration) (*Conn, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, wrapTimeout("dial", err))
	}
	return NewConn(conn), nil
}

// mergeDeadline 计算操作截止时间，取 context deadline 和配置超时的较早者。
func mergeDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

// wrapTimeout 把 socket 超时统一转换为 ErrTimeout，对端关闭转换为 ErrClosed。
func wrapTimeout(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsTimeout(err):
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return err
}
