package tbremote

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ConnectOptions 控制 ConnectToApp 的行为。
type ConnectOptions struct {
	// Timeout 本次调用的超时窗口，不足 Profile.MinLaunchTimeout 时按后者
	Timeout time.Duration

	// Verbose 以 info 级别记录发送的命令
	Verbose bool

	// Multi 允许与其他应用并存；为 false 时先关闭其他应用
	Multi bool
}

// CurrentApplications 列出仪表上正在运行的应用。
// 没有应用时返回空切片。调用方的超时在返回前恢复。
func (c *Controller) CurrentApplications(ctx context.Context) ([]Application, error) {
	restore := c.session.OverrideTimeout(ListAppsTimeout)
	defer restore()

	reply, err := c.Query(ctx, CmdListApps)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return ParseApplicationList(strings.ReplaceAll(reply, `"`, "")), nil
}

// ConnectToApp 让 app 成为当前运行的会话。
//
// app 可以是 "name port" 或组合 ID；app 不带端口时 args 作为端口，否则 args 附加在启动指令之后。
// 未连接时先执行 Connect。调用方的超时在所有路径上恢复。
func (c *Controller) ConnectToApp(ctx context.Context, app, args string, opts ConnectOptions) (Application, error) {
	if strings.TrimSpace(app) == "" {
		return Application{}, NewValidationError("application", app, "must not be empty")
	}
	if !c.session.IsConnected() {
		if err := c.Connect(ctx); err != nil {
			return Application{}, err
		}
	}

	window := opts.Timeout
	if window < c.profile.MinLaunchTimeout {
		window = c.profile.MinLaunchTimeout
	}
	restore := c.session.AtLeastTimeout(window)
	defer restore()

	target := ResolveApplication(app)
	var extra []string
	if target.Port == "" && target.ID == "" {
		target.Port = strings.TrimSpace(args)
	} else {
		extra = strings.Fields(args)
	}
	if err := c.validatePort(target.Port); err != nil {
		return Application{}, err
	}

	running, err := c.CurrentApplications(ctx)
	if err != nil {
		return Application{}, err
	}

	log := c.logger.With(zap.Stringer("app", target), zap.Bool("multi", opts.Multi))

	if match, found := findApplication(running, target); found {
		if !opts.Multi {
			if err := c.closeAllExcept(ctx, running, &match); err != nil {
				return Application{}, err
			}
		}
		log.Info("switching to running application", zap.String("id", match.ID))
		if err := c.SwitchToApp(ctx, match, true); err != nil {
			return Application{}, err
		}
		return match, nil
	}

	if opts.Multi {
		if owner, busy := PortsInUse(running)[target.Port]; busy && target.Port != "" {
			return Application{}, &PortInUseError{Port: target.Port, Owner: owner}
		}
	} else {
		if err := c.closeAllExcept(ctx, running, nil); err != nil {
			return Application{}, err
		}
		if err := c.send(ctx, CmdReset, opts.Verbose); err != nil {
			return Application{}, fmt.Errorf("reset: %w", err)
		}
	}

	log.Info("launching application", zap.Strings("args", extra))
	return c.LaunchApplication(ctx, target, extra...)
}

// closeAllExcept 关闭 running 中除 keep 以外的所有应用，遇到第一个失败即返回。
func (c *Controller) closeAllExcept(ctx context.Context, running []Application, keep *Application) error {
	for _, app := range running {
		if keep != nil && app.Equal(*keep) {
			continue
		}
		if err := c.closeRunning(ctx, app); err != nil {
			return fmt.Errorf("close %s: %w", app, err)
		}
	}
	return nil
}

func (c *Controller) validatePort(port string) error {
	if port == "" {
		return nil
	}
	n, err := strconv.Atoi(port)
	if err != nil || !c.profile.IsValidPort(n) {
		return NewValidationError("port", port, fmt.Sprintf("must be one of %v", c.profile.ValidPorts))
	}
	return nil
}

// LaunchApplication 启动一个新应用并打开会话。
// 仪表报告启动失败时返回 ApplicationNotFoundError。
func (c *Controller) LaunchApplication(ctx context.Context, app Application, args ...string) (launched Application, err error) {
	defer func() { c.metrics.observeLaunch(err) }()

	parts := []string{CmdLaunch, app.LaunchName()}
	if app.Port != "" {
		parts = append(parts, app.Port)
	}
	parts = append(parts, args...)

	resp, err := c.SendSCPI(ctx, strings.Join(parts, " "), true)
	if err != nil {
		return Application{}, fmt.Errorf("launch: %w", err)
	}
	if !resp.OK() {
		return Application{}, &ApplicationNotFoundError{App: app.String(), Status: resp.Status}
	}

	id, err := c.Query(ctx, CmdLaunchQuery)
	if err != nil {
		return Application{}, fmt.Errorf("launch id: %w", err)
	}
	id = strings.Trim(strings.TrimSpace(id), `"`)
	if id == "" {
		return Application{}, NewProtocolError(CmdLaunchQuery, "application id", id)
	}

	launched = ApplicationFromID(id)
	if err := c.openSession(ctx, launched, true); err != nil {
		return Application{}, err
	}
	c.logger.Info("application launched", zap.String("id", id))
	return launched, nil
}

// SwitchToApp 切换到已在运行的应用；launch 为 true 时同时发送 :INIT。
func (c *Controller) SwitchToApp(ctx context.Context, app Application, launch bool) error {
	return c.openSession(ctx, app, launch)
}

// SelectApp 选择已在运行的应用并打开会话，不发送 :INIT。
func (c *Controller) SelectApp(ctx context.Context, app Application) error {
	return c.openSession(ctx, app, false)
}

// ActivateApplication 在运行列表中查找 id 并将其设为当前应用。
func (c *Controller) ActivateApplication(ctx context.Context, id string) (Application, error) {
	match, err := c.findRunning(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if err := c.SelectApp(ctx, match); err != nil {
		return Application{}, err
	}
	return match, nil
}

type sessionStep struct {
	cmd   string
	state SessionState
}

// openSession 依次执行 :SESS:END（如有会话）、:SYST:APPL:SEL、:SESS:CREATE、:SESS:START 和可选的 :INIT。
func (c *Controller) openSession(ctx context.Context, app Application, launch bool) error {
	if c.session.InSession() {
		if err := c.send(ctx, CmdSessionEnd, false); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		c.session.advance(SessionNone)
	}

	steps := []sessionStep{
		{CmdSelectApp + " " + app.SelectID(), SessionSelected},
		{CmdSessionNew, SessionCreated},
		{CmdSessionStart, SessionStarted},
	}
	if launch {
		steps = append(steps, sessionStep{CmdInit, SessionRunning})
	}

	for _, step := range steps {
		if err := c.send(ctx, step.cmd, false); err != nil {
			return fmt.Errorf("session %s: %w", step.state, err)
		}
		c.session.advance(step.state)
		if step.state == SessionSelected {
			c.session.begin(app)
		}
	}
	return nil
}

// CloseApplication 关闭一个运行中的应用。应用不在运行列表中时返回 ApplicationNotFoundError。
func (c *Controller) CloseApplication(ctx context.Context, id string) error {
	match, err := c.findRunning(ctx, id)
	if err != nil {
		return err
	}
	return c.closeRunning(ctx, match)
}

// ExitApplication 关闭 id，然后在 nextID 非空时选择 nextID。
func (c *Controller) ExitApplication(ctx context.Context, id, nextID string) error {
	if err := c.CloseApplication(ctx, id); err != nil {
		return err
	}
	if nextID == "" {
		return nil
	}
	_, err := c.ActivateApplication(ctx, nextID)
	return err
}

// closeRunning 先结束打开的会话，再选择 app 并退出。
func (c *Controller) closeRunning(ctx context.Context, app Application) error {
	if c.session.InSession() {
		if err := c.send(ctx, CmdSessionEnd, false); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		c.session.advance(SessionNone)
	}
	if err := c.Exec(ctx, CmdSelectApp+" "+app.SelectID()); err != nil {
		return err
	}
	if err := c.Exec(ctx, CmdExit); err != nil {
		return err
	}
	if cur, ok := c.session.Current(); ok && cur.Equal(app) {
		c.session.advance(SessionNone)
	}
	c.logger.Info("application closed", zap.Stringer("app", app))
	return nil
}

func (c *Controller) findRunning(ctx context.Context, id string) (Application, error) {
	running, err := c.CurrentApplications(ctx)
	if err != nil {
		return Application{}, err
	}
	match, found := findApplication(running, ResolveApplication(id))
	if !found {
		c.logger.Warn("application not running", zap.String("id", id))
		return Application{}, &ApplicationNotFoundError{App: id}
	}
	return match, nil
}
