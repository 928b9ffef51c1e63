package simulator

import (
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// handle 处理一行命令，返回应答及是否需要应答。
func (in *Instrument) handle(line string) (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	verb, arg, _ := strings.Cut(line, " ")
	verb = strings.ToUpper(verb)
	arg = strings.TrimSpace(arg)

	if verb != ":SYST:ERR?" {
		in.commands = append(in.commands, line)
	}
	for _, prefix := range in.silent {
		if strings.HasPrefix(line, prefix) {
			in.logger.Debug("silenced", zap.String("cmd", line))
			return "", false
		}
	}

	switch verb {
	case ":SYST:ERR?":
		if len(in.errQueue) == 0 {
			return NoError, true
		}
		status := in.errQueue[0]
		in.errQueue = in.errQueue[1:]
		return status, true

	case "*REM", "*GUI":
		in.remote = line
		return "", false
	case "*RST":
		in.selected = ""
		in.session = ""
		return "", false

	// 端口发现
	case ":PRTM:LIST?":
		if in.emptyListLeft > 0 {
			in.emptyListLeft--
			return "", true
		}
		return "OTDR-1:5030," + in.cfg.ModuleName + ":" + strconv.Itoa(in.modulePort()) + ",", true
	case "MOD:FUNC:SEL?":
		if in.moduleDisabled {
			return "OFF", true
		}
		return "ON", true
	case "MOD:FUNC:PORT?":
		if in.moduleDisabled {
			return "-1", true
		}
		return strconv.Itoa(in.modulePort()), true
	case ":SYST:FUNC:READY?":
		if in.notReady {
			return "0", true
		}
		return "1", true
	case ":SYST:FUNC:PORT?":
		if in.notReady {
			return "-1", true
		}
		return strconv.Itoa(listenerPort(in.rc)), true

	// 应用生命周期
	case ":SYST:APPL:CAPP?":
		if len(in.apps) == 0 {
			return "", true
		}
		return strings.Join(in.apps, ",") + ",", true
	case ":SYST:APPL:LAUN":
		in.launch(arg)
		return "", false
	case ":SYST:APPL:LAUN?":
		return in.lastLaunched, true
	case ":SYST:APPL:SEL":
		if !slices.Contains(in.apps, arg) {
			in.errQueue = append(in.errQueue, ErrNotRunning)
			return "", false
		}
		in.selected = arg
		return "", false
	case ":SESS:END":
		in.session = "end"
		return "", false
	case ":SESS:CREATE":
		in.session = "created"
		return "", false
	case ":SESS:START":
		in.session = "started"
		return "", false
	case ":INIT":
		in.session = "running"
		return "", false
	case ":EXIT":
		in.exit()
		return "", false

	// 激光
	case ":OUTPUT:OPTIC":
		switch strings.ToUpper(arg) {
		case "ON":
			in.laser = true
		case "OFF":
			in.laser = false
		default:
			in.errQueue = append(in.errQueue, ErrOutOfRange)
		}
		return "", false
	case ":OUTPUT:OPTIC?":
		if in.laser {
			return "ON", true
		}
		return "OFF", true

	case ":SENSE:DATA?":
		return in.senseData(strings.ToUpper(arg)), true
	}

	if strings.HasPrefix(verb, ":SENSE:EXPERT:I2C:") {
		in.i2c(strings.TrimPrefix(verb, ":SENSE:EXPERT:I2C:"), arg)
		return "", false
	}

	in.logger.Debug("undefined header", zap.String("cmd", line))
	in.errQueue = append(in.errQueue, ErrUndefined)
	if strings.Contains(verb, "?") {
		return "", true
	}
	return "", false
}

// modulePort 不取锁，供 handle 内部使用。
func (in *Instrument) modulePort() int { return listenerPort(in.module) }

func (in *Instrument) launch(arg string) {
	fields := strings.Fields(arg)
	if len(fields) == 0 || !slices.Contains(in.cfg.Launchable, fields[0]) {
		in.errQueue = append(in.errQueue, ErrAppNotFound)
		return
	}
	port := "1"
	if len(fields) > 1 {
		port = fields[1]
	}
	id := fields[0] + "_" + port
	if !slices.Contains(in.apps, id) {
		in.apps = append(in.apps, id)
	}
	in.lastLaunched = id
	in.logger.Info("application launched", zap.String("id", id))
}

func (in *Instrument) exit() {
	if in.selected == "" {
		in.errQueue = append(in.errQueue, ErrNoSelection)
		return
	}
	if in.failExit[in.selected] {
		in.errQueue = append(in.errQueue, ErrExitFailed)
		return
	}
	in.apps = slices.DeleteFunc(in.apps, func(id string) bool { return id == in.selected })
	in.logger.Info("application exited", zap.String("id", in.selected))
	in.selected = ""
	in.session = ""
}

func (in *Instrument) i2c(field, arg string) {
	n, err := strconv.Atoi(arg)
	if arg != "" && (err != nil || n < 0 || n > 0xFF) {
		in.errQueue = append(in.errQueue, ErrOutOfRange)
		return
	}
	switch field {
	case "PEEK:PAGESEL":
		in.peekPage = n
	case "PEEK:REGADDR":
		in.peekReg = n
	case "PEEK:TRIGGER":
		in.peekValue = in.registers[[2]int{in.peekPage, in.peekReg}]
	case "POKE:PAGESEL":
		in.pokePage = n
	case "POKE:REGADDR":
		in.pokeReg = n
	case "POKE:REGDATA":
		in.pokeData = n
	case "POKE:TRIGGER":
		in.registers[[2]int{in.pokePage, in.pokeReg}] = in.pokeData
	default:
		in.errQueue = append(in.errQueue, ErrUndefined)
	}
}

func (in *Instrument) senseData(arg string) string {
	switch arg {
	case ":SENSE:EXPERT:I2C:PEEK:REGDATA":
		return strconv.Itoa(in.peekValue)
	case ":SENSE:EXPERT:I2C:PEEK:SUCCESS", ":SENSE:EXPERT:I2C:POKE:SUCCESS":
		return "1"
	}
	in.errQueue = append(in.errQueue, ErrUndefined)
	return ""
}
