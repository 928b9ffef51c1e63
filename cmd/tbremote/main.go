// Command tbremote is an interactive remote-control shell for ONA-1000 and
// T-BERD 5800 test sets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/xiabin827/tbremote"
	"github.com/xiabin827/tbremote/internal/config"
	"github.com/xiabin827/tbremote/internal/logging"
	"github.com/xiabin827/tbremote/internal/monitor"
	"github.com/xiabin827/tbremote/internal/shell"
)

type options struct {
	Addr          string        `short:"i" long:"ipaddr" description:"Instrument IPv4 address (asked for when empty)"`
	Family        string        `short:"F" long:"family" description:"Instrument family: ona1000 or tberd5800"`
	Profile       string        `short:"p" long:"profile" description:"YAML instrument profile, overrides --family"`
	Timeout       time.Duration `short:"t" long:"timeout" description:"Response timeout"`
	RegisterDelay time.Duration `long:"register-delay" description:"Wait between register writes and the read-back"`
	Visible       bool          `long:"visible" description:"Keep the instrument screen live during remote control"`
	Verbose       bool          `short:"v" long:"verbose" description:"Echo every SCPI command"`
	LogLevel      string        `long:"log-level" description:"debug, info, warn or error"`
	LogFormat     string        `long:"log-format" description:"console or json"`
	MetricsAddr   string        `long:"metrics-addr" description:"Serve Prometheus metrics on this address"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tbremote: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts := options{
		Addr:          cfg.Addr,
		Family:        cfg.Family,
		Profile:       cfg.Profile,
		Timeout:       cfg.Timeout,
		RegisterDelay: cfg.RegisterDelay,
		Visible:       cfg.Visible,
		LogLevel:      cfg.LogLevel,
		LogFormat:     cfg.LogFormat,
		MetricsAddr:   cfg.MetricsAddr,
	}
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		os.Exit(2)
	}
	cfg.Family = opts.Family
	cfg.Profile = opts.Profile
	cfg.Timeout = opts.Timeout
	cfg.RegisterDelay = opts.RegisterDelay
	cfg.Visible = opts.Visible
	cfg.LogLevel = opts.LogLevel
	cfg.LogFormat = opts.LogFormat
	cfg.MetricsAddr = opts.MetricsAddr
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *tbremote.Metrics
	if cfg.MetricsAddr != "" {
		reg := monitor.NewRegistry()
		metrics = tbremote.NewMetrics(reg)
		if _, err := monitor.NewServer(reg, logger).Start(ctx, cfg.MetricsAddr); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	controllerCfg, err := cfg.ControllerConfig(logger, metrics)
	if err != nil {
		return err
	}
	factory := func(addr string) (shell.Session, error) {
		c, err := tbremote.NewController(addr, controllerCfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	editor := shell.NewLineEditor()
	defer editor.Close()
	sh := shell.New(editor, os.Stdout, logger)

	sess, err := sh.Open(ctx, opts.Addr, factory)
	if err != nil {
		return err
	}
	if c, ok := sess.(*tbremote.Controller); ok {
		defer c.Close()
	}
	logger.Info("connected", zap.String("family", controllerCfg.Profile.Family.String()))
	return sh.Run(ctx, sess, opts.Verbose)
}
