package tbremote

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Instrument 是 Dispatcher 需要的控制器操作，*Controller 实现了它。
type Instrument interface {
	Profile() Profile
	Current() (Application, bool)
	CurrentApplications(ctx context.Context) ([]Application, error)
	ConnectToApp(ctx context.Context, app, args string, opts ConnectOptions) (Application, error)
	ActivateApplication(ctx context.Context, id string) (Application, error)
	CloseApplication(ctx context.Context, id string) error
	SendSCPI(ctx context.Context, cmd string, verbose bool) (Response, error)
	Peek(ctx context.Context, page, register int, opts ...RegisterOption) (PeekResult, error)
	Poke(ctx context.Context, page, register, value int, opts ...RegisterOption) (PokeResult, error)
	LaserOn(ctx context.Context) error
	LaserOff(ctx context.Context) error
	LaserStatus(ctx context.Context) (bool, error)
	Sleep(ctx context.Context, d time.Duration) error
	Exit(ctx context.Context) error
}

// Prompter 向用户提问并读取一行回答。
type Prompter interface {
	Prompt(question string) (string, error)
}

// Result 是一条命令的执行结果。
type Result struct {
	// Value 可能是 bool、int、string、Application 或 nil
	Value any

	// Exit 为 true 时外层循环应当停止
	Exit bool
}

// Dispatcher 把命令行映射到控制器操作。
// prompter 为 nil 时处于自动（批处理）模式，需要交互的命令直接失败。
type Dispatcher struct {
	inst     Instrument
	out      io.Writer
	prompter Prompter

	// Timeout 传给 ConnectToApp 的超时窗口
	Timeout time.Duration

	// Verbose 记录所有发送的命令
	Verbose bool
}

// NewDispatcher 创建 Dispatcher。out 为 nil 时丢弃输出。
func NewDispatcher(inst Instrument, out io.Writer, prompter Prompter) *Dispatcher {
	if out == nil {
		out = io.Discard
	}
	return &Dispatcher{inst: inst, out: out, prompter: prompter, Verbose: true}
}

// Auto 报告是否处于自动模式。
func (d *Dispatcher) Auto() bool { return d.prompter == nil }

// Execute 解析并执行一行命令。
func (d *Dispatcher) Execute(ctx context.Context, line string) (Result, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return Result{Value: false}, err
	}
	return d.Run(ctx, cmd)
}

// Run 执行已解析的命令。
func (d *Dispatcher) Run(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case HelpCommand:
		d.printHelp()
		return Result{Value: true}, nil

	case ExitCommand:
		err := d.inst.Exit(ctx)
		return Result{Value: err == nil, Exit: true}, err

	case CurrentCommand:
		apps, err := d.inst.CurrentApplications(ctx)
		if err != nil {
			return fail(err)
		}
		d.listApplications(apps)
		return Result{Value: true}, nil

	case GetActiveCommand:
		app, ok := d.inst.Current()
		if !ok {
			fmt.Fprintln(d.out, "No active application")
			return Result{}, nil
		}
		fmt.Fprintf(d.out, "Active application: %s\n", app)
		return Result{Value: app}, nil

	case AppCommand:
		if d.Auto() {
			return fail(fmt.Errorf("%s: %w", c.Kind(), ErrInteractiveOnly))
		}
		selected, err := d.chooseApplication(ctx)
		if err != nil {
			return fail(err)
		}
		if selected == "" {
			fmt.Fprintln(d.out, "No application opened")
			return Result{Value: true}, nil
		}
		return d.connect(ctx, selected, c.Multi)

	case StartCommand:
		return d.connect(ctx, c.App, c.Multi)

	case PeekCommand:
		res, err := d.inst.Peek(ctx, c.Page, c.Register, d.registerOpts()...)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(d.out, "PEEK page %d register %s = %s\n", c.Page, FormatRegister(c.Register), FormatRegister(res.Value))
		return Result{Value: res.Value}, nil

	case PokeCommand:
		res, err := d.inst.Poke(ctx, c.Page, c.Register, c.Value, d.registerOpts()...)
		if err != nil {
			return fail(err)
		}
		if !res.Confirmed {
			return Result{Value: true}, nil
		}
		return Result{Value: res.Code}, nil

	case DelayCommand:
		if err := d.inst.Sleep(ctx, c.Duration); err != nil {
			return fail(err)
		}
		return Result{Value: true}, nil

	case SCPICommand:
		resp, err := d.inst.SendSCPI(ctx, c.Text, d.Verbose)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintln(d.out, resp.Text())
		return Result{Value: resp.Text()}, nil

	case CloseAppCommand:
		return d.closeApp(ctx, c.AppID)

	case ActiveCommand:
		id := c.AppID
		if id == "" {
			if d.Auto() {
				return fail(fmt.Errorf("%s: %w", c.Kind(), ErrInteractiveOnly))
			}
			app, err := d.chooseRunning(ctx, "Select the application to make active:")
			if err != nil {
				return fail(err)
			}
			id = app.SelectID()
		}
		app, err := d.inst.ActivateApplication(ctx, id)
		if err != nil {
			return fail(err)
		}
		return Result{Value: app}, nil

	case LaserCommand:
		return d.laser(ctx, c.Action)
	}
	return fail(&ParseError{Kind: ParseUnknownCommand, Message: fmt.Sprintf("unsupported command %T", cmd)})
}

func fail(err error) (Result, error) {
	return Result{Value: false}, err
}

func (d *Dispatcher) registerOpts() []RegisterOption {
	if d.Verbose {
		return []RegisterOption{WithVerbose()}
	}
	return nil
}

func (d *Dispatcher) connect(ctx context.Context, app string, multi bool) (Result, error) {
	launched, err := d.inst.ConnectToApp(ctx, app, "", ConnectOptions{
		Timeout: d.Timeout,
		Verbose: d.Verbose,
		Multi:   multi,
	})
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(d.out, "Active application: %s\n", launched)
	return Result{Value: launched}, nil
}

func (d *Dispatcher) closeApp(ctx context.Context, id string) (Result, error) {
	if id == "" {
		if d.Auto() {
			return fail(fmt.Errorf("%s: %w", KindCloseApp, ErrInteractiveOnly))
		}
		app, err := d.chooseRunning(ctx, "Select the application to close:")
		if err != nil {
			return fail(err)
		}
		id = app.SelectID()
	}
	if err := d.inst.CloseApplication(ctx, id); err != nil {
		return fail(err)
	}
	fmt.Fprintf(d.out, "Closed %s\n", id)

	if d.Auto() {
		return Result{Value: true}, nil
	}
	apps, err := d.inst.CurrentApplications(ctx)
	if err != nil || len(apps) == 0 {
		return Result{Value: true}, nil
	}
	next, err := d.chooseRunningFrom(apps, "Select the new active application (0 to skip):")
	if err != nil || next.IsZero() {
		return Result{Value: true}, nil
	}
	if _, err := d.inst.ActivateApplication(ctx, next.SelectID()); err != nil {
		return fail(err)
	}
	return Result{Value: true}, nil
}

func (d *Dispatcher) laser(ctx context.Context, action LaserAction) (Result, error) {
	switch action {
	case LaserEnable:
		if err := d.inst.LaserOn(ctx); err != nil {
			return fail(err)
		}
		return Result{Value: true}, nil
	case LaserDisable:
		if err := d.inst.LaserOff(ctx); err != nil {
			return fail(err)
		}
		return Result{Value: true}, nil
	}
	on, err := d.inst.LaserStatus(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(d.out, "Laser on: %t\n", on)
	return Result{Value: on}, nil
}

// chooseApplication 显示应用菜单，返回 "appID port"、运行中应用的 ID，或空串（不打开）。
func (d *Dispatcher) chooseApplication(ctx context.Context) (string, error) {
	profile := d.inst.Profile()
	running, err := d.inst.CurrentApplications(ctx)
	if err != nil {
		return "", err
	}

	fmt.Fprintln(d.out, "Applications:")
	for i, entry := range profile.Catalog {
		fmt.Fprintf(d.out, "  [%d] %s (%s)\n", i+1, entry.Label, entry.AppID)
	}
	openIdx := len(profile.Catalog) + 1
	if len(running) > 0 {
		fmt.Fprintf(d.out, "  [%d] Current open application\n", openIdx)
	}
	fmt.Fprintln(d.out, "  [0] Do not open an application")

	choice, err := d.promptIndex("Select an application:", openIdx)
	if err != nil {
		return "", err
	}
	switch {
	case choice == 0:
		return "", nil
	case choice == openIdx:
		if len(running) == 0 {
			return "", NewValidationError("selection", strconv.Itoa(choice), "no application is running")
		}
		app, err := d.chooseRunningFrom(running, "Select a running application:")
		if err != nil {
			return "", err
		}
		return app.SelectID(), nil
	}

	entry := profile.Catalog[choice-1]
	ports := make([]string, len(profile.ValidPorts))
	for i, p := range profile.ValidPorts {
		ports[i] = strconv.Itoa(p)
	}
	answer, err := d.prompter.Prompt(fmt.Sprintf("Select port (%s):", strings.Join(ports, ", ")))
	if err != nil {
		return "", err
	}
	port, err := ParseInteger(answer)
	if err != nil || !profile.IsValidPort(port) {
		return "", NewValidationError("port", answer, fmt.Sprintf("must be one of %s", strings.Join(ports, ", ")))
	}
	return fmt.Sprintf("%s %d", entry.AppID, port), nil
}

func (d *Dispatcher) chooseRunning(ctx context.Context, question string) (Application, error) {
	apps, err := d.inst.CurrentApplications(ctx)
	if err != nil {
		return Application{}, err
	}
	if len(apps) == 0 {
		return Application{}, &ApplicationNotFoundError{App: "any running application"}
	}
	app, err := d.chooseRunningFrom(apps, question)
	if err != nil {
		return Application{}, err
	}
	if app.IsZero() {
		return Application{}, NewValidationError("selection", "0", "no application selected")
	}
	return app, nil
}

// chooseRunningFrom 列出 apps 并读取选择；选择 0 返回零值。
func (d *Dispatcher) chooseRunningFrom(apps []Application, question string) (Application, error) {
	d.listApplications(apps)
	choice, err := d.promptIndex(question, len(apps))
	if err != nil || choice == 0 {
		return Application{}, err
	}
	return apps[choice-1], nil
}

func (d *Dispatcher) promptIndex(question string, limit int) (int, error) {
	answer, err := d.prompter.Prompt(question)
	if err != nil {
		return 0, err
	}
	choice, err := ParseInteger(answer)
	if err != nil {
		return 0, err
	}
	if choice < 0 || choice > limit {
		return 0, NewValidationError("selection", answer, fmt.Sprintf("must be within 0..%d", limit))
	}
	return choice, nil
}

func (d *Dispatcher) listApplications(apps []Application) {
	if len(apps) == 0 {
		fmt.Fprintln(d.out, "No applications running")
		return
	}
	current, hasCurrent := d.inst.Current()
	for i, app := range apps {
		marker := " "
		if hasCurrent && app.Equal(current) {
			marker = ">"
		}
		fmt.Fprintf(d.out, "%s [%d] %s\n", marker, i+1, app)
	}
}

func (d *Dispatcher) printHelp() {
	lines := []string{
		"HELP                       show this help",
		"EXIT | QUIT                leave remote mode and stop",
		"CURR                       list running applications",
		"START <app> [port]         connect to an application, closing the others",
		"MULTISTART <app> [port]    connect to an application, keeping the others",
		"PEEK [page] <register>     read an I2C register",
		"POKE [page] <reg> <value>  write an I2C register",
		"DELAY <seconds>            wait",
		"SCPI <command>             send a raw SCPI command",
		"CLOSEAPP <id>              close a running application",
		"ACTIVE <id>                make a running application active",
		"GETACTIVE                  show the active application",
		"LASER ON|OFF|?             laser control",
	}
	if !d.Auto() {
		lines = append(lines,
			"APP                        choose an application from a menu",
			"MULTIAPP                   choose an application, keeping the others",
			"CLOSEAPP | ACTIVE          without an id, choose from a menu",
		)
	}
	fmt.Fprintln(d.out, "Commands (numbers accept 0x hex, 0b binary or decimal):")
	for _, l := range lines {
		fmt.Fprintln(d.out, "  "+l)
	}
}

// FormatValue 按报告格式显示结果值：布尔为 True/False，整数为十六进制，nil 为 None。
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		if x < 0 {
			return "-" + FormatRegister(-x)
		}
		return FormatRegister(x)
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
