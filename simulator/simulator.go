// Package simulator 实现一台进程内的假仪表，按 ONA-1000 或 T-BERD 5800 的方式
// 应答端口发现、应用生命周期、I2C 寄存器和激光控制指令。
// 用于测试和离线演示。
package simulator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Family 选择模拟的仪表系列。
type Family uint8

const (
	ONA1000 Family = iota
	TBERD5800
)

func (f Family) String() string {
	if f == TBERD5800 {
		return "tberd5800"
	}
	return "ona1000"
}

// 仪表错误队列中使用的状态
const (
	NoError         = `0, "No error"`
	ErrUndefined    = `-113, "Undefined header"`
	ErrAppNotFound  = `-200, "Application not found"`
	ErrNotRunning   = `-222, "Application not running"`
	ErrExitFailed   = `-300, "Application exit failed"`
	ErrNoSelection  = `-221, "No application selected"`
	ErrOutOfRange   = `-222, "Data out of range"`
	defaultModule   = "TM400G-1"
	defaultParams   = `BOTH,BASE,"BERT"`
	defaultHostAddr = "127.0.0.1"
)

// DefaultLaunchable 是模拟器可以启动的应用名。
var DefaultLaunchable = []string{
	"TermEth100GL2Traffic",
	"TermEth200GL2Traffic",
	"TermEth400GL2Traffic",
	"TermEth10GL2Traffic",
	"TermEth25GL2Traffic",
	"TermEth100GL2TrafficKP4FEC",
	"TermEth100GL2TrafficRsFEC",
}

// Config 保存模拟器配置。端口为 0 时使用临时端口。
type Config struct {
	Family        Family
	Host          string
	BootstrapPort int
	ModulePort    int
	RCPort        int

	// ModuleName 出现在 :PRTM:LIST? 应答中的模块名
	ModuleName string

	// Launchable 可以启动的应用名（nil 使用 DefaultLaunchable）
	Launchable []string

	// Logger 日志输出（nil 禁用日志）
	Logger *zap.Logger

	// OnCommand 每收到一行命令调用一次
	OnCommand func(line string)
}

// Instrument 是一台模拟仪表。
type Instrument struct {
	cfg    Config
	id     string
	logger *zap.Logger

	bootstrap net.Listener
	module    net.Listener
	rc        net.Listener

	group  *errgroup.Group
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	// 仪表状态
	apps         []string
	lastLaunched string
	selected     string
	session      string
	errQueue     []string
	registers    map[[2]int]int
	peekPage     int
	peekReg      int
	peekValue    int
	pokePage     int
	pokeReg      int
	pokeData     int
	laser        bool
	remote       string
	commands     []string

	// 故障注入
	failExit       map[string]bool
	emptyListLeft  int
	moduleDisabled bool
	notReady       bool
	silent         []string
}

// New 创建模拟仪表，但尚未监听。
func New(cfg Config) *Instrument {
	if cfg.Host == "" {
		cfg.Host = defaultHostAddr
	}
	if cfg.ModuleName == "" {
		cfg.ModuleName = defaultModule
	}
	if cfg.Launchable == nil {
		cfg.Launchable = DefaultLaunchable
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Instrument{
		cfg:       cfg,
		id:        id,
		logger:    logger.With(zap.String("instrument", id), zap.Stringer("family", cfg.Family)),
		conns:     make(map[net.Conn]struct{}),
		registers: make(map[[2]int]int),
		failExit:  make(map[string]bool),
	}
}

// Start 打开所有监听端口并开始服务，直到 Close 或 ctx 结束。
func (in *Instrument) Start(ctx context.Context) error {
	var err error
	if in.bootstrap, err = in.listen(in.cfg.BootstrapPort); err != nil {
		return fmt.Errorf("listen bootstrap: %w", err)
	}
	if in.module, err = in.listen(in.cfg.ModulePort); err != nil {
		in.bootstrap.Close()
		return fmt.Errorf("listen module: %w", err)
	}
	listeners := []net.Listener{in.bootstrap, in.module}
	if in.cfg.Family == TBERD5800 {
		if in.rc, err = in.listen(in.cfg.RCPort); err != nil {
			in.bootstrap.Close()
			in.module.Close()
			return fmt.Errorf("listen rc: %w", err)
		}
		listeners = append(listeners, in.rc)
	}

	ctx, in.cancel = context.WithCancel(ctx)
	in.group, ctx = errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l
		in.group.Go(func() error { return in.acceptLoop(l) })
	}
	in.group.Go(func() error {
		<-ctx.Done()
		in.shutdown()
		return nil
	})

	in.logger.Info("simulator listening",
		zap.Int("bootstrap", in.BootstrapPort()),
		zap.Int("module", in.ModulePort()),
		zap.Int("rc", in.RCPort()))
	return nil
}

// Close 停止服务并等待所有连接退出。
func (in *Instrument) Close() error {
	if in.cancel == nil {
		return nil
	}
	in.cancel()
	return in.group.Wait()
}

func (in *Instrument) listen(port int) (net.Listener, error) {
	return net.Listen("tcp", net.JoinHostPort(in.cfg.Host, strconv.Itoa(port)))
}

func (in *Instrument) shutdown() {
	for _, l := range []net.Listener{in.bootstrap, in.module, in.rc} {
		if l != nil {
			l.Close()
		}
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	for c := range in.conns {
		c.Close()
	}
}

func (in *Instrument) acceptLoop(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		in.mu.Lock()
		in.conns[conn] = struct{}{}
		in.mu.Unlock()
		in.group.Go(func() error {
			in.serve(conn)
			return nil
		})
	}
}

func (in *Instrument) serve(conn net.Conn) {
	defer func() {
		in.mu.Lock()
		delete(in.conns, conn)
		in.mu.Unlock()
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if in.cfg.OnCommand != nil {
			in.cfg.OnCommand(line)
		}
		reply, ok := in.handle(line)
		if !ok {
			continue
		}
		if _, err := w.WriteString(reply + "\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// 端口

// BootstrapPort 返回引导端口。
func (in *Instrument) BootstrapPort() int { return listenerPort(in.bootstrap) }

// ModulePort 返回模块端口。
func (in *Instrument) ModulePort() int { return listenerPort(in.module) }

// RCPort 返回 T-BERD 的 RC 端口，ONA 返回 0。
func (in *Instrument) RCPort() int { return listenerPort(in.rc) }

func listenerPort(l net.Listener) int {
	if l == nil {
		return 0
	}
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// 状态与故障注入

// Commands 返回收到的命令（不含 :SYST:ERR?）。
func (in *Instrument) Commands() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return slices.Clone(in.commands)
}

// ResetCommands 清空命令记录。
func (in *Instrument) ResetCommands() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.commands = nil
}

// SetRunning 设置正在运行的应用 ID。
func (in *Instrument) SetRunning(ids ...string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.apps = slices.Clone(ids)
}

// Running 返回正在运行的应用 ID。
func (in *Instrument) Running() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return slices.Clone(in.apps)
}

// Selected 返回当前选中的应用 ID。
func (in *Instrument) Selected() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.selected
}

// SessionState 返回最近一条会话指令对应的状态（end/created/started/running）。
func (in *Instrument) SessionState() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.session
}

// RemoteMode 返回最近一次远程模式指令（*REM、*REM VISIBLE ON 或 *GUI）。
func (in *Instrument) RemoteMode() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.remote
}

// FailExit 让 id 的 :EXIT 报错。
func (in *Instrument) FailExit(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.failExit[id] = true
}

// SetEmptyModuleListReplies 让前 n 次 :PRTM:LIST? 返回空行。
func (in *Instrument) SetEmptyModuleListReplies(n int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.emptyListLeft = n
}

// SetModuleEnabled 控制 T-BERD 的 MOD:FUNC:SEL? 应答。
func (in *Instrument) SetModuleEnabled(enabled bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.moduleDisabled = !enabled
}

// SetReady 控制 T-BERD 的 :SYST:FUNC:READY? 应答。
func (in *Instrument) SetReady(ready bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.notReady = !ready
}

// Silence 让以 prefix 开头的命令不再应答。
func (in *Instrument) Silence(prefix string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.silent = append(in.silent, prefix)
}

// PushError 向错误队列追加一条状态，下一次 :SYST:ERR? 返回它。
func (in *Instrument) PushError(status string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.errQueue = append(in.errQueue, status)
}

// SetRegister 设置寄存器值。
func (in *Instrument) SetRegister(page, reg, value int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.registers[[2]int{page, reg}] = value
}

// Register 返回寄存器值。
func (in *Instrument) Register(page, reg int) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.registers[[2]int{page, reg}]
}

// Laser 返回激光状态。
func (in *Instrument) Laser() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.laser
}
