package tbremote

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// PeekResult 是一次寄存器读取的结果。
type PeekResult struct {
	Value int

	// Success 仅在 WithStatus 时查询，其余情况为 -1
	Success int
}

// PokeResult 是一次寄存器写入的结果。
type PokeResult struct {
	// Confirmed 为 false 表示延时为 0，没有等待确认
	Confirmed bool
	Code      int
}

// RegisterOption 调整一次寄存器访问。
type RegisterOption func(*registerOptions)

type registerOptions struct {
	delay   time.Duration
	verbose bool
	status  bool
}

// WithDelay 设置触发后到读取之间的等待时间。对 POKE 而言 0 表示不等待确认。
func WithDelay(d time.Duration) RegisterOption {
	return func(o *registerOptions) { o.delay = d }
}

// WithVerbose 以 info 级别记录发送的命令。
func WithVerbose() RegisterOption {
	return func(o *registerOptions) { o.verbose = true }
}

// WithStatus 让 PEEK 额外查询成功标志。
func WithStatus() RegisterOption {
	return func(o *registerOptions) { o.status = true }
}

func (c *Controller) registerOptions(opts []RegisterOption) registerOptions {
	o := registerOptions{delay: c.delay}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Peek 读取 I2C 寄存器。page 与 register 必须在 0..0xFF 内，否则在发送任何命令前返回 ValidationError。
// 失败时已发送的写入不会回滚。
func (c *Controller) Peek(ctx context.Context, page, register int, opts ...RegisterOption) (res PeekResult, err error) {
	if err := validateRegister("page", page); err != nil {
		return PeekResult{}, err
	}
	if err := validateRegister("register", register); err != nil {
		return PeekResult{}, err
	}
	o := c.registerOptions(opts)
	defer func() {
		c.metrics.observeRegister("peek", err)
		if err != nil {
			c.logger.Error("peek failed", zap.Int("page", page), zap.Int("register", register), zap.Error(err))
		}
	}()

	for _, cmd := range []string{
		fmt.Sprintf("%s %d", CmdPeekPage, page),
		fmt.Sprintf("%s %d", CmdPeekReg, register),
		CmdPeekTrigger,
	} {
		if err := c.send(ctx, cmd, o.verbose); err != nil {
			return PeekResult{}, err
		}
	}

	if err := c.sleep(ctx, o.delay); err != nil {
		return PeekResult{}, err
	}

	value, err := c.queryInt(ctx, CmdPeekData, o.verbose)
	if err != nil {
		return PeekResult{}, err
	}
	res = PeekResult{Value: value, Success: -1}

	if o.status {
		if res.Success, err = c.queryInt(ctx, CmdPeekSuccess, o.verbose); err != nil {
			return PeekResult{}, err
		}
	}
	return res, nil
}

// Poke 写入 I2C 寄存器。延时大于 0 时等待后查询成功码；
// 延时为 0 时立即返回，PokeResult.Confirmed 为 false。
func (c *Controller) Poke(ctx context.Context, page, register, value int, opts ...RegisterOption) (res PokeResult, err error) {
	if err := validateRegister("page", page); err != nil {
		return PokeResult{}, err
	}
	if err := validateRegister("register", register); err != nil {
		return PokeResult{}, err
	}
	if err := validateRegister("value", value); err != nil {
		return PokeResult{}, err
	}
	o := c.registerOptions(opts)
	defer func() {
		c.metrics.observeRegister("poke", err)
		if err != nil {
			c.logger.Error("poke failed", zap.Int("page", page), zap.Int("register", register), zap.Error(err))
		}
	}()

	for _, cmd := range []string{
		fmt.Sprintf("%s %d", CmdPokePage, page),
		fmt.Sprintf("%s %d", CmdPokeReg, register),
		fmt.Sprintf("%s %d", CmdPokeData, value),
		CmdPokeTrigger,
	} {
		if err := c.send(ctx, cmd, o.verbose); err != nil {
			return PokeResult{}, err
		}
	}

	if o.delay <= 0 {
		return PokeResult{}, nil
	}
	if err := c.sleep(ctx, o.delay); err != nil {
		return PokeResult{}, err
	}
	code, err := c.queryInt(ctx, CmdPokeSuccess, o.verbose)
	if err != nil {
		return PokeResult{}, err
	}
	return PokeResult{Confirmed: true, Code: code}, nil
}

func (c *Controller) queryInt(ctx context.Context, cmd string, verbose bool) (int, error) {
	resp, err := c.SendSCPI(ctx, cmd, verbose)
	if err != nil {
		return 0, err
	}
	return parseIntReply(cmd, resp.Reply)
}

// FormatRegister 以十六进制显示寄存器值。
func FormatRegister(v int) string {
	return "0x" + strconv.FormatInt(int64(v), 16)
}
