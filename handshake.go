package tbremote

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiabin827/tbremote/internal/retry"
)

// Connect 执行端口发现握手并连接到控制端口。
// 已连接时返回 ErrAlreadyConnected。失败时关闭所有 socket，状态回到未连接。
func (c *Controller) Connect(ctx context.Context) (err error) {
	if c.session.IsConnected() {
		return ErrAlreadyConnected
	}

	c.logger.Info("connecting", zap.Int("bootstrap_port", c.profile.BootstrapPort))

	defer func() {
		c.metrics.observeHandshake(c.profile.Family, err)
		if err != nil {
			c.closeConn()
			c.session.reset()
			c.logger.Error("connect failed", zap.Error(err))
		}
	}()

	var port int
	switch c.profile.Family {
	case FamilyTBERD5800:
		port, err = c.handshakeTBERD(ctx)
	default:
		port, err = c.handshakeONA(ctx)
	}
	if err != nil {
		return err
	}

	c.session.setConnState(StateConnected, port)
	c.logger.Info("connected", zap.Int("port", port))
	return nil
}

// handshakeONA 通过 :PRTM:LIST? 查询模块端口并切换过去。
func (c *Controller) handshakeONA(ctx context.Context) (int, error) {
	// 步骤 1：连接引导端口
	if err := c.openPort(ctx, c.profile.BootstrapPort); err != nil {
		return 0, NewConnectError("bootstrap", err)
	}
	if err := c.sleep(ctx, c.profile.SettleDelay); err != nil {
		return 0, NewConnectError("bootstrap", err)
	}

	// 步骤 2：进入远程模式
	if err := c.writeRaw(ctx, c.remoteCommand()); err != nil {
		return 0, NewConnectError("remote", err)
	}

	// 步骤 3：查询模块端口列表，空应答表示仪表尚未就绪
	policy := retry.Policy{
		MaxAttempts: c.profile.HandshakeAttempts,
		Backoff:     c.profile.RetryDelay,
		Clock:       c.clock,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			c.logger.Info("module list not ready, retrying", zap.Int("attempt", attempt), zap.Error(err))
		},
	}
	reply, err := retry.Do(ctx, policy, classifyHandshake, func() (string, error) {
		if err := c.writeRaw(ctx, CmdPortList); err != nil {
			return "", err
		}
		frame, err := c.conn.ReadFrame(ctx, c.session.Timeout())
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(frame) == "" {
			return "", ErrNotReady
		}
		return frame, nil
	})
	if err != nil {
		return 0, NewConnectError("module list", err)
	}

	// 步骤 4：解析并查找模块
	modules, err := ParseModuleList(reply)
	if err != nil {
		return 0, NewConnectError("module list", err)
	}
	port, ok := modules[c.profile.ModuleName]
	if !ok {
		return 0, &ModuleNotFoundError{Module: c.profile.ModuleName, Available: moduleNames(modules)}
	}
	c.session.setConnState(StatePortDiscovered, port)
	c.logger.Info("module port discovered", zap.String("module", c.profile.ModuleName), zap.Int("port", port))

	// 步骤 5：关闭引导连接，连接模块端口
	if err := c.openPort(ctx, port); err != nil {
		return 0, NewConnectError("module port", err)
	}
	return port, nil
}

// handshakeTBERD 先在引导端口查询模块端口，再在模块端口查询 RC 端口。
func (c *Controller) handshakeTBERD(ctx context.Context) (int, error) {
	params := c.profile.ModuleParams

	// 步骤 1：连接引导端口并确认模块已启用
	if err := c.openPort(ctx, c.profile.BootstrapPort); err != nil {
		return 0, NewConnectError("bootstrap", err)
	}
	if err := c.writeRaw(ctx, c.remoteCommand()); err != nil {
		return 0, NewConnectError("remote", err)
	}
	if err := c.expectReply(ctx, "module enabled", CmdModuleSelected+" "+params, "ON"); err != nil {
		return 0, err
	}
	modPort, err := c.queryPort(ctx, "module port", CmdModulePort+" "+params)
	if err != nil {
		return 0, err
	}
	c.session.setConnState(StatePortDiscovered, modPort)

	// 步骤 2：连接模块端口并确认功能就绪
	if err := c.openPort(ctx, modPort); err != nil {
		return 0, NewConnectError("module port", err)
	}
	if err := c.writeRaw(ctx, c.remoteCommand()); err != nil {
		return 0, NewConnectError("remote", err)
	}
	if err := c.expectReply(ctx, "module ready", CmdFuncReady+" "+params, "1"); err != nil {
		return 0, err
	}
	rcPort, err := c.queryPort(ctx, "rc port", CmdFuncPort+" "+params)
	if err != nil {
		return 0, err
	}

	// 步骤 3：连接 RC 端口
	if err := c.openPort(ctx, rcPort); err != nil {
		return 0, NewConnectError("rc port", err)
	}
	return rcPort, nil
}

// expectReply 查询 cmd 并要求应答等于 want。
func (c *Controller) expectReply(ctx context.Context, stage, cmd, want string) error {
	reply, err := c.queryRaw(ctx, cmd)
	if err != nil {
		return NewConnectError(stage, err)
	}
	if !strings.EqualFold(strings.Trim(reply, `"`), want) {
		c.logger.Warn("instrument not ready", zap.String("stage", stage), zap.String("reply", reply))
		return NewConnectError(stage, NewProtocolError(cmd, want, reply))
	}
	return nil
}

// queryPort 查询端口号，"-1" 表示仪表拒绝。
func (c *Controller) queryPort(ctx context.Context, stage, cmd string) (int, error) {
	reply, err := c.queryRaw(ctx, cmd)
	if err != nil {
		return 0, NewConnectError(stage, err)
	}
	port, convErr := strconv.Atoi(strings.TrimSpace(reply))
	if convErr != nil {
		return 0, NewConnectError(stage, NewProtocolError(cmd, "port number", reply))
	}
	if port <= 0 {
		return 0, NewConnectError(stage, NewProtocolError(cmd, "port number", reply))
	}
	return port, nil
}

func classifyHandshake(err error) retry.Action {
	if errors.Is(err, ErrNotReady) || IsTimeout(err) {
		return retry.Retry
	}
	return retry.Stop
}
