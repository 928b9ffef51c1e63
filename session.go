package tbremote

import (
	"fmt"
	"time"
)

// ConnState 表示控制器的连接状态。
type ConnState uint8

const (
	StateDisconnected   ConnState = iota // 未连接
	StatePortDiscovered                  // 已发现控制端口，尚未切换
	StateConnected                       // 已连接到控制端口
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StatePortDiscovered:
		return "port-discovered"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("ConnState(%d)", uint8(s))
}

// SessionState 表示应用会话所处的阶段。
type SessionState uint8

const (
	SessionNone     SessionState = iota // 没有打开的会话
	SessionSelected                     // 已 :SYST:APPL:SEL
	SessionCreated                      // 已 :SESS:CREATE
	SessionStarted                      // 已 :SESS:START
	SessionRunning                      // 已 :INIT
)

func (s SessionState) String() string {
	switch s {
	case SessionNone:
		return "none"
	case SessionSelected:
		return "selected"
	case SessionCreated:
		return "created"
	case SessionStarted:
		return "started"
	case SessionRunning:
		return "running"
	}
	return fmt.Sprintf("SessionState(%d)", uint8(s))
}

// Session 保存一台仪表的连接与应用会话状态。
//
// Session 不加锁：同一控制器上同一时刻只能有一个操作在执行，由调用方保证。
type Session struct {
	conn    ConnState
	state   SessionState
	current *Application
	port    int
	timeout time.Duration
}

// NewSession 创建处于未连接状态的 Session。
func NewSession(timeout time.Duration) *Session {
	return &Session{timeout: timeout}
}

// ConnState 返回连接状态。
func (s *Session) ConnState() ConnState { return s.conn }

// IsConnected 报告握手是否已完成。
func (s *Session) IsConnected() bool { return s.conn == StateConnected }

// State 返回会话阶段。
func (s *Session) State() SessionState { return s.state }

// InSession 报告是否有打开的应用会话。
func (s *Session) InSession() bool { return s.state != SessionNone }

// Current 返回当前应用；没有会话时返回 false。
func (s *Session) Current() (Application, bool) {
	if s.current == nil {
		return Application{}, false
	}
	return *s.current, true
}

// Port 返回当前连接的 TCP 端口。
func (s *Session) Port() int { return s.port }

// Timeout 返回当前读写超时。
func (s *Session) Timeout() time.Duration { return s.timeout }

// SetTimeout 设置读写超时。
func (s *Session) SetTimeout(d time.Duration) { s.timeout = d }

// OverrideTimeout 临时把超时改为 d，返回恢复原值的函数。
// 用法：
//
//	restore := s.OverrideTimeout(d)
//	defer restore()
func (s *Session) OverrideTimeout(d time.Duration) (restore func()) {
	prev := s.timeout
	s.timeout = d
	return func() { s.timeout = prev }
}

// AtLeastTimeout 与 OverrideTimeout 相同，但只会延长超时，不会缩短。
func (s *Session) AtLeastTimeout(d time.Duration) (restore func()) {
	if d < s.timeout {
		d = s.timeout
	}
	return s.OverrideTimeout(d)
}

func (s *Session) setConnState(c ConnState, port int) {
	s.conn = c
	s.port = port
}

// advance 推进会话阶段；进入 SessionNone 时清除当前应用。
func (s *Session) advance(state SessionState) {
	s.state = state
	if state == SessionNone {
		s.current = nil
	}
}

// begin 记录会话所属的应用。
func (s *Session) begin(app Application) {
	s.current = &app
}

// reset 回到未连接状态。
func (s *Session) reset() {
	s.conn = StateDisconnected
	s.port = 0
	s.state = SessionNone
	s.current = nil
}
