// Package shell is the interactive front end: it asks for the instrument
// address, connects, offers the application menu and then runs commands
// typed by the user until EXIT or end of input.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/xiabin827/tbremote"
)

// Session is the controller surface the shell drives.
type Session interface {
	tbremote.Instrument
	Connect(ctx context.Context) error
	IsConnected() bool
}

// Factory builds an unconnected session for an address. It returns a
// validation error for addresses that are not dotted-quad IPv4.
type Factory func(addr string) (Session, error)

// Editor reads user input. GetLine reads a command line, Prompt answers a
// menu question. *LineEditor implements both.
type Editor interface {
	GetLine(prompt string) (string, error)
	Prompt(question string) (string, error)
}

// Shell drives one interactive session against an instrument.
type Shell struct {
	editor Editor
	out    io.Writer
	logger *zap.Logger
}

// New creates a shell that reads from editor and prints to out. A nil logger
// disables logging.
func New(editor Editor, out io.Writer, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{editor: editor, out: out, logger: logger}
}

// Open connects to addr, asking for an address whenever the current one is
// empty, malformed or unreachable. It stops on end of input.
func (s *Shell) Open(ctx context.Context, addr string, factory Factory) (Session, error) {
	for {
		if addr == "" {
			line, err := s.editor.GetLine("Instrument IP address: ")
			if err != nil {
				return nil, err
			}
			addr = strings.TrimSpace(line)
			if addr == "" {
				continue
			}
		}

		sess, err := factory(addr)
		if err != nil {
			fmt.Fprintf(s.out, "%v\n", err)
			addr = ""
			continue
		}
		fmt.Fprintf(s.out, "Connecting to %s...\n", addr)
		if err := sess.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fmt.Fprintf(s.out, "Could not connect to %s: %v\n", addr, err)
			s.logger.Warn("connect failed", zap.String("addr", addr), zap.Error(err))
			addr = ""
			continue
		}
		fmt.Fprintf(s.out, "Connected to %s\n", addr)
		return sess, nil
	}
}

// Run offers the application menu once, then reads and dispatches commands.
// End of input leaves remote mode the same way EXIT does.
func (s *Shell) Run(ctx context.Context, sess Session, verbose bool) error {
	d := tbremote.NewDispatcher(sess, s.out, s.editor)
	d.Verbose = verbose

	if _, err := d.Run(ctx, tbremote.AppCommand{}); err != nil {
		fmt.Fprintf(s.out, "Application not opened: %v\n", err)
	}

	for {
		if app, ok := sess.Current(); ok {
			fmt.Fprintf(s.out, "Active application: %s\n", app)
		}
		line, err := s.editor.GetLine("tbremote> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.leave(ctx, sess)
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		res, err := d.Execute(ctx, line)
		if err != nil {
			var pe *tbremote.ParseError
			if errors.As(err, &pe) {
				fmt.Fprintf(s.out, "%v (type HELP for commands)\n", err)
			} else {
				fmt.Fprintf(s.out, "Error: %v\n", err)
			}
			s.logger.Debug("command failed", zap.String("line", line), zap.Error(err))
		} else {
			fmt.Fprintf(s.out, "Result: %s\n", tbremote.FormatValue(res.Value))
		}
		if res.Exit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Shell) leave(ctx context.Context, sess Session) error {
	if !sess.IsConnected() {
		return nil
	}
	fmt.Fprintln(s.out, "Exiting remote mode.")
	return sess.Exit(ctx)
}
