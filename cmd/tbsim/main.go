// Command tbsim runs a simulated test set for trying the other tools without
// hardware.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/xiabin827/tbremote"
	"github.com/xiabin827/tbremote/internal/logging"
	"github.com/xiabin827/tbremote/internal/monitor"
	"github.com/xiabin827/tbremote/simulator"
)

type options struct {
	Family        string `short:"F" long:"family" default:"ona1000" description:"Instrument family: ona1000 or tberd5800"`
	Host          string `long:"host" default:"127.0.0.1" description:"Listen address"`
	BootstrapPort int    `long:"bootstrap-port" description:"Bootstrap port (family default when 0)"`
	ModulePort    int    `long:"module-port" description:"Module port (ephemeral when 0)"`
	RCPort        int    `long:"rc-port" description:"T-BERD remote-control port (ephemeral when 0)"`
	Module        string `long:"module" description:"Module name reported by the port list"`
	MetricsAddr   string `long:"metrics-addr" description:"Serve metrics and /state on this address"`
	LogLevel      string `long:"log-level" default:"info" description:"debug, info, warn or error"`
}

type state struct {
	Family   string   `json:"family"`
	Running  []string `json:"running"`
	Selected string   `json:"selected"`
	Session  string   `json:"session"`
	Remote   string   `json:"remote"`
	Laser    bool     `json:"laser"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tbsim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		os.Exit(2)
	}

	family, err := tbremote.ParseFamily(opts.Family)
	if err != nil {
		return err
	}
	logger, err := logging.New(opts.LogLevel, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := simulator.Config{
		Host:          opts.Host,
		BootstrapPort: opts.BootstrapPort,
		ModulePort:    opts.ModulePort,
		RCPort:        opts.RCPort,
		ModuleName:    opts.Module,
		Logger:        logger,
	}
	if family == tbremote.FamilyTBERD5800 {
		cfg.Family = simulator.TBERD5800
	}
	if cfg.BootstrapPort == 0 {
		cfg.BootstrapPort = tbremote.ProfileFor(family).BootstrapPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *prometheus.Registry
	if opts.MetricsAddr != "" {
		reg = monitor.NewRegistry()
		received := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tbsim_commands_received_total",
			Help: "Command lines received by header",
		}, []string{"header"})
		cfg.OnCommand = func(line string) {
			received.WithLabelValues(commandHeader(line)).Inc()
		}
	}

	sim := simulator.New(cfg)
	if err := sim.Start(ctx); err != nil {
		return err
	}

	if reg != nil {
		srv := monitor.NewServer(reg, logger)
		srv.HandleJSON("/state", func() any {
			return state{
				Family:   cfg.Family.String(),
				Running:  sim.Running(),
				Selected: sim.Selected(),
				Session:  sim.SessionState(),
				Remote:   sim.RemoteMode(),
				Laser:    sim.Laser(),
			}
		})
		if _, err := srv.Start(ctx, opts.MetricsAddr); err != nil {
			sim.Close()
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	logger.Info("simulator ready",
		zap.Stringer("family", cfg.Family),
		zap.Int("bootstrap", sim.BootstrapPort()),
		zap.Int("module", sim.ModulePort()),
		zap.Int("rc", sim.RCPort()))

	<-ctx.Done()
	logger.Info("stopping simulator")
	return sim.Close()
}

// commandHeader is the command word without arguments or query mark, so the
// metric label set stays small.
func commandHeader(line string) string {
	header, _, _ := strings.Cut(line, " ")
	return strings.ToUpper(strings.TrimSuffix(header, "?"))
}
