package tbremote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 收集控制器的 Prometheus 指标。nil *Metrics 的所有方法都是空操作。
type Metrics struct {
	// CommandsTotal 按命令类型（query/action）和结果统计 SCPI 命令
	CommandsTotal *prometheus.CounterVec

	// CommandDuration 统计 SCPI 命令往返耗时
	CommandDuration *prometheus.HistogramVec

	// HandshakesTotal 按仪表系列和结果统计连接握手
	HandshakesTotal *prometheus.CounterVec

	// LaunchesTotal 按结果统计应用启动
	LaunchesTotal *prometheus.CounterVec

	// RegisterOpsTotal 按操作（peek/poke）和结果统计寄存器访问
	RegisterOpsTotal *prometheus.CounterVec
}

// NewMetrics 在 reg 上注册指标。reg 为 nil 时使用默认注册表。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		CommandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbremote_scpi_commands_total",
				Help: "SCPI commands sent by kind and result",
			},
			[]string{"kind", "result"},
		),
		CommandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tbremote_scpi_command_duration_seconds",
				Help:    "SCPI command round trip in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"kind"},
		),
		HandshakesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbremote_handshakes_total",
				Help: "Control port handshakes by instrument family and result",
			},
			[]string{"family", "result"},
		),
		LaunchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbremote_app_launches_total",
				Help: "Application launches by result",
			},
			[]string{"result"},
		),
		RegisterOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbremote_register_ops_total",
				Help: "I2C register accesses by operation and result",
			},
			[]string{"op", "result"},
		),
	}
}

// resultLabel 把 err 归类为 ok、timeout 或 error。
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTimeout(err):
		return "timeout"
	}
	return "error"
}

func (m *Metrics) observeCommand(kind string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(kind, resultLabel(err)).Inc()
	m.CommandDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) observeHandshake(f Family, err error) {
	if m == nil {
		return
	}
	m.HandshakesTotal.WithLabelValues(f.String(), resultLabel(err)).Inc()
}

func (m *Metrics) observeLaunch(err error) {
	if m == nil {
		return
	}
	m.LaunchesTotal.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) observeRegister(op string, err error) {
	if m == nil {
		return
	}
	m.RegisterOpsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}
