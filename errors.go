package tbremote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// 标准错误
var (
	ErrClosed           = errors.New("tbremote: connection closed")
	ErrNotConnected     = errors.New("tbremote: not connected")
	ErrAlreadyConnected = errors.New("tbremote: already connected")
	ErrTimeout          = errors.New("tbremote: operation timeout")
	ErrNotReady         = errors.New("tbremote: instrument not ready")
	ErrInteractiveOnly  = errors.New("tbremote: command requires interactive mode")
)

// ValidationError 表示输入校验失败（IP 格式、寄存器范围等）。
// 在发送任何指令之前返回。
type ValidationError struct {
	Field string
	Value string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tbremote: invalid %s %q: %s", e.Field, e.Value, e.Rule)
}

// NewValidationError 创建新的 ValidationError。
func NewValidationError(field, value, rule string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Rule: rule}
}

// IsValidation 检查 err 是否为 ValidationError。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConnectError 表示握手在某个阶段失败。
type ConnectError struct {
	Stage string
	Cause error
}

func (e *ConnectError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("tbremote: connect failed at %s", e.Stage)
	}
	return fmt.Sprintf("tbremote: connect failed at %s: %v", e.Stage, e.Cause)
}

func (e *ConnectError) Unwrap() error { return e.Cause }

// NewConnectError 创建新的 ConnectError。
func NewConnectError(stage string, cause error) *ConnectError {
	return &ConnectError{Stage: stage, Cause: cause}
}

// ModuleNotFoundError 表示端口列表中没有配置的模块名。
type ModuleNotFoundError struct {
	Module    string
	Available []string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("tbremote: module %q not found (available: %s)",
		e.Module, strings.Join(e.Available, ", "))
}

// ApplicationNotFoundError 表示应用不在运行列表中或无法启动。
type ApplicationNotFoundError struct {
	App    string
	Status string
}

func (e *ApplicationNotFoundError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("tbremote: application %q not found: %s", e.App, e.Status)
	}
	return fmt.Sprintf("tbremote: application %q not found", e.App)
}

// IsNotFound 检查 err 是否为模块或应用未找到。
func IsNotFound(err error) bool {
	var me *ModuleNotFoundError
	var ae *ApplicationNotFoundError
	return errors.As(err, &me) || errors.As(err, &ae)
}

// PortInUseError 表示目标端口已被另一个运行中的应用占用。
type PortInUseError struct {
	Port  string
	Owner Application
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("tbremote: port %s already in use by %s", e.Port, e.Owner)
}

// ProtocolError 表示仪表返回了无法解析或不符合预期的应答。
type ProtocolError struct {
	Operation string
	Expected  string
	Got       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("tbremote: protocol error during %s: expected %s, got %q",
		e.Operation, e.Expected, e.Got)
}

// NewProtocolError 创建新的 ProtocolError。
func NewProtocolError(op, expected, got string) *ProtocolError {
	return &ProtocolError{
		Operation: op,
		Expected:  expected,
		Got:       got,
	}
}

// IsProtocolError 检查 err 是否为 ProtocolError。
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsTimeout 检查 err 是否为超时，包括底层 socket 的超时。
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ParseErrorKind 区分命令行解析失败的原因。
type ParseErrorKind int

const (
	ParseEmpty ParseErrorKind = iota
	ParseUnknownCommand
	ParseArgCount
	ParseBadNumber
)

func (k ParseErrorKind) String() string {
	switch k {
	case ParseEmpty:
		return "empty command"
	case ParseUnknownCommand:
		return "unknown command"
	case ParseArgCount:
		return "wrong number of arguments"
	case ParseBadNumber:
		return "bad number"
	}
	return fmt.Sprintf("ParseErrorKind(%d)", int(k))
}

// ParseError 表示命令行无法映射到任何命令。
type ParseError struct {
	Kind    ParseErrorKind
	Input   string
	Message string
}

func (e *ParseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tbremote: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("tbremote: %s: %q", e.Kind, e.Input)
}
