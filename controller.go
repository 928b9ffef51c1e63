package tbremote

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Config 保存创建 Controller 的配置。
type Config struct {
	// Profile 仪表系列参数（默认 ONA-1000）
	Profile Profile

	// Timeout 读写超时（默认 10s）
	Timeout time.Duration

	// Visible 以可见模式进入远程状态（*REM VISIBLE ON），仪表界面同步显示
	Visible bool

	// RegisterDelay PEEK/POKE 触发后到读取结果之间的等待（默认 1.3s）
	RegisterDelay time.Duration

	// Logger 日志输出（nil 禁用日志）
	Logger *zap.Logger

	// Clock 用于所有等待（nil 使用真实时钟）
	Clock clockwork.Clock

	// Metrics Prometheus 指标（nil 不采集）
	Metrics *Metrics
}

// DefaultConfig 返回带默认值的 Config。
func DefaultConfig() *Config {
	return &Config{
		Profile:       ONA1000Profile(),
		Timeout:       DefaultTimeout,
		RegisterDelay: DefaultRegisterDelay,
	}
}

// Controller 表示一台仪表的远程控制会话。
//
// Controller 不是并发安全的：所有操作都是阻塞调用，
// 调用方必须保证同一时刻只有一个操作在进行。
type Controller struct {
	host    string
	profile Profile
	visible bool
	delay   time.Duration

	conn    *Conn
	session *Session

	logger  *zap.Logger
	clock   clockwork.Clock
	metrics *Metrics
}

// NewController 创建控制器，但尚未连接。address 必须是点分十进制的 IPv4 地址。
func NewController(address string, config *Config) (*Controller, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	if config == nil {
		config = DefaultConfig()
	}

	c := &Controller{
		host:    address,
		profile: config.Profile.Clone(),
		visible: config.Visible,
		delay:   config.RegisterDelay,
		logger:  config.Logger,
		clock:   config.Clock,
		metrics: config.Metrics,
	}
	if c.profile.BootstrapPort == 0 {
		c.profile = ProfileFor(c.profile.Family)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("addr", address), zap.Stringer("family", c.profile.Family))
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	c.session = NewSession(timeout)
	return c, nil
}

// ValidateAddress 检查 address 是否为点分十进制 IPv4 地址。
// IPv4 映射的 IPv6 写法（::ffff:a.b.c.d）不接受。
func ValidateAddress(address string) error {
	ip, err := netip.ParseAddr(address)
	if err != nil || !ip.Is4() {
		return NewValidationError("address", address, "must be a dotted-quad IPv4 address")
	}
	return nil
}

// Address 返回仪表地址。
func (c *Controller) Address() string { return c.host }

// Profile 返回仪表参数的副本。
func (c *Controller) Profile() Profile { return c.profile.Clone() }

// Visible 报告是否以可见模式运行。
func (c *Controller) Visible() bool { return c.visible }

// Session 返回会话状态。
func (c *Controller) Session() *Session { return c.session }

// IsConnected 报告握手是否完成。
func (c *Controller) IsConnected() bool { return c.session.IsConnected() }

// Current 返回当前应用。
func (c *Controller) Current() (Application, bool) { return c.session.Current() }

// Timeout 返回当前读写超时。
func (c *Controller) Timeout() time.Duration { return c.session.Timeout() }

// SetTimeout 设置读写超时。
func (c *Controller) SetTimeout(d time.Duration) { c.session.SetTimeout(d) }

// RegisterDelay 返回 PEEK/POKE 的默认等待时间。
func (c *Controller) RegisterDelay() time.Duration { return c.delay }

// Clock 返回控制器使用的时钟。
func (c *Controller) Clock() clockwork.Clock { return c.clock }

// Exit 结束远程控制：发送 :EXIT，按需交还界面（*GUI），然后关闭连接。
func (c *Controller) Exit(ctx context.Context) error {
	if !c.session.IsConnected() {
		return ErrNotConnected
	}
	restore := c.session.OverrideTimeout(ExitTimeout)
	defer restore()

	var firstErr error
	if _, err := c.SendSCPI(ctx, CmdExit, true); err != nil {
		firstErr = fmt.Errorf("exit: %w", err)
	}

	// T-BERD 在可见模式下保留远程界面
	if !c.visible || c.profile.GUIOnExitWhenVisible {
		if err := c.writeRaw(ctx, CmdGUI); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("return to GUI: %w", err)
		}
	}

	c.Close()
	c.logger.Info("remote session closed")
	return firstErr
}

// Close 直接关闭连接，不发送任何指令。
func (c *Controller) Close() error {
	err := c.closeConn()
	c.session.reset()
	return err
}

// openPort 关闭当前连接（如有）并在新端口上重新连接。
func (c *Controller) openPort(ctx context.Context, port int) error {
	c.closeConn()
	conn, err := DialContext(ctx, c.host, port, c.session.Timeout())
	if err != nil {
		return err
	}
	c.conn = conn
	c.session.port = port
	c.logger.Debug("socket opened", zap.Int("port", port))
	return nil
}

func (c *Controller) closeConn() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// writeRaw 发送一行，不附带错误检查。
func (c *Controller) writeRaw(ctx context.Context, cmd string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteLine(ctx, cmd, c.session.Timeout())
}

// queryRaw 发送一行并读取一行应答，不附带错误检查。
func (c *Controller) queryRaw(ctx context.Context, cmd string) (string, error) {
	if err := c.writeRaw(ctx, cmd); err != nil {
		return "", err
	}
	return c.conn.ReadLine(ctx, c.session.Timeout())
}

// sleep 在控制器时钟上等待 d，可被 ctx 取消。
func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-c.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sleep 在控制器时钟上等待 d。
func (c *Controller) Sleep(ctx context.Context, d time.Duration) error {
	return c.sleep(ctx, d)
}

func (c *Controller) remoteCommand() string {
	if c.visible {
		return CmdRemoteVisible
	}
	return CmdRemote
}
