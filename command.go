package tbremote

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CommandKind 是命令行第一个词对应的命令类型。
type CommandKind uint8

const (
	KindHelp CommandKind = iota
	KindExit
	KindCurrent
	KindApp
	KindStart
	KindPeek
	KindPoke
	KindDelay
	KindSCPI
	KindCloseApp
	KindActive
	KindGetActive
	KindLaser
)

var kindNames = map[CommandKind]string{
	KindHelp:      "HELP",
	KindExit:      "EXIT",
	KindCurrent:   "CURR",
	KindApp:       "APP",
	KindStart:     "START",
	KindPeek:      "PEEK",
	KindPoke:      "POKE",
	KindDelay:     "DELAY",
	KindSCPI:      "SCPI",
	KindCloseApp:  "CLOSEAPP",
	KindActive:    "ACTIVE",
	KindGetActive: "GETACTIVE",
	KindLaser:     "LASER",
}

func (k CommandKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", uint8(k))
}

// Command 是解析后的一条命令，具体类型见下方各结构体。
type Command interface {
	Kind() CommandKind
}

type (
	HelpCommand      struct{}
	ExitCommand      struct{}
	CurrentCommand   struct{}
	GetActiveCommand struct{}

	// AppCommand 通过交互菜单选择应用
	AppCommand struct{ Multi bool }

	// StartCommand 连接到指定应用，App 为 "name port" 或组合 ID
	StartCommand struct {
		Multi bool
		App   string
	}

	PeekCommand struct{ Page, Register int }

	PokeCommand struct{ Page, Register, Value int }

	DelayCommand struct{ Duration time.Duration }

	// SCPICommand 原样透传，保留大小写
	SCPICommand struct{ Text string }

	// CloseAppCommand AppID 为空时交互选择
	CloseAppCommand struct{ AppID string }

	// ActiveCommand AppID 为空时交互选择
	ActiveCommand struct{ AppID string }

	LaserCommand struct{ Action LaserAction }
)

// LaserAction 是 LASER 命令的动作。
type LaserAction uint8

const (
	LaserStatusQuery LaserAction = iota
	LaserEnable
	LaserDisable
)

func (HelpCommand) Kind() CommandKind      { return KindHelp }
func (ExitCommand) Kind() CommandKind      { return KindExit }
func (CurrentCommand) Kind() CommandKind   { return KindCurrent }
func (GetActiveCommand) Kind() CommandKind { return KindGetActive }
func (AppCommand) Kind() CommandKind       { return KindApp }
func (StartCommand) Kind() CommandKind     { return KindStart }
func (PeekCommand) Kind() CommandKind      { return KindPeek }
func (PokeCommand) Kind() CommandKind      { return KindPoke }
func (DelayCommand) Kind() CommandKind     { return KindDelay }
func (SCPICommand) Kind() CommandKind      { return KindSCPI }
func (CloseAppCommand) Kind() CommandKind  { return KindCloseApp }
func (ActiveCommand) Kind() CommandKind    { return KindActive }
func (LaserCommand) Kind() CommandKind     { return KindLaser }

// ParseCommand 把一行文本解析为 Command。第一个词不区分大小写。
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, &ParseError{Kind: ParseEmpty, Input: line, Message: "a command must be entered"}
	}
	verb := strings.ToUpper(fields[0])
	args := fields[1:]
	rest := strings.TrimSpace(line[len(fields[0]):])

	switch verb {
	case "HELP":
		return HelpCommand{}, nil
	case "EXIT", "QUIT":
		return ExitCommand{}, nil
	case "CURR":
		return CurrentCommand{}, nil
	case "GETACTIVE":
		return GetActiveCommand{}, nil
	case "APP", "MULTIAPP":
		return AppCommand{Multi: verb == "MULTIAPP"}, nil
	case "START", "MULTISTART":
		if rest == "" {
			return nil, argCountError(line, verb, "an application")
		}
		return StartCommand{Multi: verb == "MULTISTART", App: rest}, nil
	case "PEEK":
		return parsePeek(line, args)
	case "POKE":
		return parsePoke(line, args)
	case "DELAY":
		if len(args) != 1 {
			return nil, argCountError(line, verb, "seconds")
		}
		secs, err := strconv.ParseFloat(args[0], 64)
		if err != nil || secs < 0 {
			return nil, &ParseError{Kind: ParseBadNumber, Input: line,
				Message: fmt.Sprintf("DELAY needs a non-negative number of seconds, got %q", args[0])}
		}
		return DelayCommand{Duration: time.Duration(secs * float64(time.Second))}, nil
	case "SCPI":
		if rest == "" {
			return nil, argCountError(line, verb, "a SCPI command")
		}
		return SCPICommand{Text: rest}, nil
	case "CLOSEAPP":
		return CloseAppCommand{AppID: rest}, nil
	case "ACTIVE":
		return ActiveCommand{AppID: rest}, nil
	case "LASER":
		if len(args) != 1 {
			return nil, argCountError(line, verb, "ON, OFF or ?")
		}
		switch strings.ToUpper(args[0]) {
		case "ON":
			return LaserCommand{Action: LaserEnable}, nil
		case "OFF":
			return LaserCommand{Action: LaserDisable}, nil
		case "?", "STATUS":
			return LaserCommand{Action: LaserStatusQuery}, nil
		}
		return nil, argCountError(line, verb, "ON, OFF or ?")
	}
	return nil, &ParseError{Kind: ParseUnknownCommand, Input: line,
		Message: fmt.Sprintf("%q is not a valid command", fields[0])}
}

// parsePeek: PEEK register | PEEK page register
func parsePeek(line string, args []string) (Command, error) {
	nums, err := parseIntegers(line, args)
	if err != nil {
		return nil, err
	}
	switch len(nums) {
	case 1:
		return PeekCommand{Register: nums[0]}, nil
	case 2:
		return PeekCommand{Page: nums[0], Register: nums[1]}, nil
	}
	return nil, argCountError(line, "PEEK", "[page] register")
}

// parsePoke: POKE register value | POKE page register value
func parsePoke(line string, args []string) (Command, error) {
	nums, err := parseIntegers(line, args)
	if err != nil {
		return nil, err
	}
	switch len(nums) {
	case 2:
		return PokeCommand{Register: nums[0], Value: nums[1]}, nil
	case 3:
		return PokeCommand{Page: nums[0], Register: nums[1], Value: nums[2]}, nil
	}
	return nil, argCountError(line, "POKE", "[page] register value")
}

func parseIntegers(line string, args []string) ([]int, error) {
	nums := make([]int, 0, len(args))
	for _, a := range args {
		v, err := ParseInteger(a)
		if err != nil {
			return nil, &ParseError{Kind: ParseBadNumber, Input: line,
				Message: fmt.Sprintf("%q is not a hex (0x), binary (0b) or decimal integer", a)}
		}
		nums = append(nums, v)
	}
	return nums, nil
}

func argCountError(line, verb, usage string) *ParseError {
	return &ParseError{Kind: ParseArgCount, Input: line,
		Message: fmt.Sprintf("usage: %s %s", verb, usage)}
}
