package tbremote

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Response 是一次 SCPI 交互的结果。
type Response struct {
	Command string
	Query   bool
	Reply   string // 查询命令的应答
	Status  string // 操作命令之后 :SYST:ERR? 的应答
}

// OK 报告命令是否成功：查询总是成功，操作命令要求状态为无错误。
func (r Response) OK() bool {
	if r.Query {
		return true
	}
	return IsNoError(r.Status)
}

// Text 返回查询的应答，或操作命令与错误状态拼接后的字符串。
func (r Response) Text() string {
	if r.Query {
		return r.Reply
	}
	return r.Command + CmdErrorQuery + r.Status
}

func (r Response) String() string { return r.Text() }

// SendSCPI 发送一条 SCPI 命令。
// 查询命令（含 '?'）读取一行应答；操作命令随后发送 :SYST:ERR? 并读取状态。
// 任一环节超时返回 ErrTimeout。
func (c *Controller) SendSCPI(ctx context.Context, cmd string, verbose bool) (Response, error) {
	resp := Response{Command: cmd, Query: IsQuery(cmd)}
	if c.conn == nil {
		return resp, ErrNotConnected
	}

	kind := "action"
	if resp.Query {
		kind = "query"
	}
	level := zapcore.DebugLevel
	if verbose {
		level = zapcore.InfoLevel
	}
	c.logger.Log(level, "scpi send", zap.String("cmd", cmd), zap.Int("port", c.session.Port()))

	start := time.Now()
	err := c.exchange(ctx, &resp)
	c.metrics.observeCommand(kind, time.Since(start).Seconds(), err)

	switch {
	case err == nil:
		c.logger.Log(level, "scpi reply", zap.String("cmd", cmd), zap.String("reply", resp.Text()))
	case IsTimeout(err):
		c.logger.Warn("socket timed out", zap.String("cmd", cmd), zap.Duration("timeout", c.session.Timeout()))
	default:
		c.logger.Error("scpi send failed", zap.String("cmd", cmd), zap.Error(err))
	}
	return resp, err
}

func (c *Controller) exchange(ctx context.Context, resp *Response) error {
	timeout := c.session.Timeout()
	if err := c.conn.WriteLine(ctx, resp.Command, timeout); err != nil {
		return fmt.Errorf("send %q: %w", resp.Command, err)
	}

	if resp.Query {
		reply, err := c.conn.ReadLine(ctx, timeout)
		if err != nil {
			return fmt.Errorf("reply to %q: %w", resp.Command, err)
		}
		resp.Reply = reply
		return nil
	}

	if err := c.conn.WriteLine(ctx, CmdErrorQuery, timeout); err != nil {
		return fmt.Errorf("send %s: %w", CmdErrorQuery, err)
	}
	status, err := c.conn.ReadLine(ctx, timeout)
	if err != nil {
		return fmt.Errorf("status of %q: %w", resp.Command, err)
	}
	resp.Status = status
	return nil
}

// Query 发送查询命令并返回应答。
func (c *Controller) Query(ctx context.Context, cmd string) (string, error) {
	resp, err := c.SendSCPI(ctx, cmd, false)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Exec 发送操作命令，状态不是无错误时返回 ProtocolError。
func (c *Controller) Exec(ctx context.Context, cmd string) error {
	resp, err := c.SendSCPI(ctx, cmd, false)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return NewProtocolError(cmd, NoErrorStatus, resp.Status)
	}
	return nil
}

// send 发送操作命令；错误状态只记录日志，不视为失败。
func (c *Controller) send(ctx context.Context, cmd string, verbose bool) error {
	resp, err := c.SendSCPI(ctx, cmd, verbose)
	if err != nil {
		return err
	}
	if !resp.OK() {
		c.logger.Warn("instrument reported error", zap.String("cmd", cmd), zap.String("status", resp.Status))
	}
	return nil
}
