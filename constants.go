// Package tbremote 通过 TCP 上的 SCPI 远程控制 ONA-1000 与 T-BERD 5800
// 网络测试仪：发现控制端口、管理仪表上运行的测试应用、执行寄存器 PEEK/POKE
// 以及 SCPI 透传。
package tbremote

import "time"

// 引导端口
const (
	// ONA-1000 的引导端口，用于查询模块端口列表
	ONABootstrapPort = 5025

	// T-BERD 5800 的引导端口
	TBERDBootstrapPort = 8000
)

// 超时与延时默认值
const (
	// DefaultTimeout 默认读写超时
	DefaultTimeout = 10 * time.Second

	// ListAppsTimeout 列出运行中应用时使用的超时
	ListAppsTimeout = 10 * time.Second

	// MinLaunchTimeout 启动/切换应用期间的最小超时窗口
	MinLaunchTimeout = 60 * time.Second

	// ExitTimeout 退出远程模式时使用的超时
	ExitTimeout = 30 * time.Second

	// DefaultRegisterDelay I2C 桥接稳定所需的等待时间。
	// 过短会读回旧值，核心无法检测。
	DefaultRegisterDelay = 1300 * time.Millisecond

	// MaxRegisterValue 页、寄存器地址和数据的上限
	MaxRegisterValue = 0xFF
)

// 连接与远程模式指令
const (
	CmdRemote        = "*REM"
	CmdRemoteVisible = "*REM VISIBLE ON"
	CmdGUI           = "*GUI"
	CmdReset         = "*RST"
	CmdErrorQuery    = ":SYST:ERR?"

	// ONA 模块端口列表
	CmdPortList = ":PRTM:LIST?"

	// T-BERD 端口发现
	CmdModuleSelected = "MOD:FUNC:SEL?"
	CmdModulePort     = "MOD:FUNC:PORT?"
	CmdFuncReady      = ":SYST:FUNC:READY?"
	CmdFuncPort       = ":SYST:FUNC:PORT?"
)

// 应用与会话指令
const (
	CmdListApps     = ":SYST:APPL:CAPP?"
	CmdLaunch       = ":SYST:APPL:LAUN"
	CmdLaunchQuery  = ":SYST:APPL:LAUN?"
	CmdSelectApp    = ":SYST:APPL:SEL"
	CmdSessionEnd   = ":SESS:END"
	CmdSessionNew   = ":SESS:CREATE"
	CmdSessionStart = ":SESS:START"
	CmdInit         = ":INIT"
	CmdExit         = ":EXIT"
)

// I2C 寄存器访问指令
const (
	i2cPrefix = ":SENSE:EXPERT:I2C:"

	CmdPeekPage    = i2cPrefix + "PEEK:PAGESEL"
	CmdPeekReg     = i2cPrefix + "PEEK:REGADDR"
	CmdPeekTrigger = i2cPrefix + "PEEK:TRIGGER"
	CmdPeekData    = ":SENSE:DATA? " + i2cPrefix + "PEEK:REGDATA"
	CmdPeekSuccess = ":SENSE:DATA? " + i2cPrefix + "PEEK:SUCCESS"

	CmdPokePage    = i2cPrefix + "POKE:PAGESEL"
	CmdPokeReg     = i2cPrefix + "POKE:REGADDR"
	CmdPokeData    = i2cPrefix + "POKE:REGDATA"
	CmdPokeTrigger = i2cPrefix + "POKE:TRIGGER"
	CmdPokeSuccess = ":SENSE:DATA? " + i2cPrefix + "POKE:SUCCESS"
)

// 激光控制
const (
	CmdLaser = ":OUTPUT:OPTIC"
)

// NoErrorStatus 是 :SYST:ERR? 在无错误时的应答
const NoErrorStatus = `0, "No error"`
