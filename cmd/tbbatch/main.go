// Command tbbatch runs a file of remote-control commands, one per line, and
// prints what each returned.
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
	"github.com/xiabin827/tbremote/internal/batch"
	"github.com/xiabin827/tbremote/internal/config"
	"github.com/xiabin827/tbremote/internal/logging"
)

const (
	defaultApp  = "TermEth100GL2Traffic 1"
	defaultAddr = "192.168.1.35"
	defaultFile = "testcmd.txt"
)

type options struct {
	App          string `short:"a" long:"app" description:"Application to open before the commands run"`
	Addr         string `short:"i" long:"ipaddr" description:"Instrument IPv4 address"`
	InFile       string `short:"f" long:"infile" description:"Command file to run"`
	OutFile      string `short:"o" long:"outfile" description:"Write the results here instead of the terminal"`
	ListCommands bool   `short:"l" long:"listcommands" description:"Print the command file format and exit"`
	Delay        int    `short:"D" long:"delay" description:"Seconds to wait for responses and application launch"`
	NoApp        bool   `short:"N" long:"noapp" description:"Do not open an application"`
	Family       string `short:"F" long:"family" description:"Instrument family: ona1000 or tberd5800"`
	Profile      string `short:"p" long:"profile" description:"YAML instrument profile, overrides --family"`
	LogLevel     string `long:"log-level" description:"debug, info, warn or error"`
}

const fileFormat = `Input file format:

  One command per line. Blank lines are skipped. Commands run in order and
  the run continues after a failing command. EXIT stops the run.
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tbbatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts := options{
		App:      defaultApp,
		Addr:     cfg.Addr,
		InFile:   defaultFile,
		Delay:    int(cfg.Timeout.Seconds()),
		Family:   cfg.Family,
		Profile:  cfg.Profile,
		LogLevel: cfg.LogLevel,
	}
	if opts.Addr == "" {
		opts.Addr = defaultAddr
	}
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		os.Exit(2)
	}

	if opts.ListCommands {
		fmt.Print(fileFormat)
		_, err := tbremote.NewDispatcher(nil, os.Stdout, nil).Run(context.Background(), tbremote.HelpCommand{})
		return err
	}

	if opts.Delay <= 0 {
		fmt.Println("Invalid delay value, setting default delay of 10")
		opts.Delay = 10
	}
	cfg.Addr = opts.Addr
	cfg.Family = opts.Family
	cfg.Profile = opts.Profile
	cfg.Timeout = time.Duration(opts.Delay) * time.Second
	cfg.LogLevel = opts.LogLevel
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	lines, err := batch.ReadCommandFile(opts.InFile)
	if err != nil {
		return err
	}

	controllerCfg, err := cfg.ControllerConfig(logger, nil)
	if err != nil {
		return err
	}
	ctrl, err := tbremote.NewController(cfg.Addr, controllerCfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := opts.App
	if opts.NoApp {
		app = ""
	}
	runner := batch.NewRunner(ctrl, batch.Options{
		App:     app,
		Timeout: cfg.Timeout,
		Out:     os.Stdout,
		Logger:  logger,
	})
	logger.Info("running command file", zap.String("file", opts.InFile), zap.String("run", runner.RunID()))

	report, err := runner.Run(ctx, lines)
	if err != nil {
		return err
	}

	fmt.Println("Final Results:")
	if opts.OutFile != "" {
		if err := report.WriteFile(opts.OutFile); err != nil {
			return err
		}
		fmt.Printf("Results written to %s\n", opts.OutFile)
	} else if err := report.Write(os.Stdout); err != nil {
		return err
	}
	return nil
}
