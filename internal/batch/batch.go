// Package batch runs a file of commands against an instrument without
// prompting and reports what each command returned.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiabin827/tbremote"
)

// Instrument is what the runner needs beyond the dispatcher's operations.
type Instrument interface {
	tbremote.Instrument
	Connect(ctx context.Context) error
	IsConnected() bool
}

// Options configures a Runner.
type Options struct {
	// App is connected to before the commands run; empty skips this step.
	App string

	// Timeout is passed to ConnectToApp and START commands.
	Timeout time.Duration

	// Out receives progress and dispatcher output. nil discards it.
	Out io.Writer

	Logger *zap.Logger
}

// Outcome records one executed command.
type Outcome struct {
	Index int
	Line  string
	Value any
	Err   error
}

// Text is the printed value: False for failures, otherwise tbremote.FormatValue.
func (o Outcome) Text() string {
	if o.Err != nil {
		return "False"
	}
	return tbremote.FormatValue(o.Value)
}

func (o Outcome) String() string {
	return fmt.Sprintf("(%d) %s returned %s", o.Index, o.Line, o.Text())
}

// Report is the result of one run.
type Report struct {
	RunID    string
	Outcomes []Outcome

	// Exited is true when a command in the file ended remote mode.
	Exited bool
}

// Write prints one line per outcome.
func (r *Report) Write(w io.Writer) error {
	for _, o := range r.Outcomes {
		if _, err := fmt.Fprintln(w, o.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the report to path, replacing any existing file.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Failed counts the commands that returned an error.
func (r *Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Runner executes command lines in auto mode, without prompting.
type Runner struct {
	inst       Instrument
	dispatcher *tbremote.Dispatcher
	opts       Options
	logger     *zap.Logger
	runID      string
}

// NewRunner creates a runner with a fresh run id.
func NewRunner(inst Instrument, opts Options) *Runner {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()

	d := tbremote.NewDispatcher(inst, opts.Out, nil)
	d.Timeout = opts.Timeout
	return &Runner{
		inst:       inst,
		dispatcher: d,
		opts:       opts,
		logger:     logger.With(zap.String("run", runID)),
		runID:      runID,
	}
}

// RunID identifies this runner in logs and reports.
func (r *Runner) RunID() string { return r.runID }

// ReadCommands returns the non-blank lines of src, trimmed.
func ReadCommands(src io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}
	return lines, nil
}

// ReadCommandFile is ReadCommands on a file.
func ReadCommandFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCommands(f)
}

// Run connects, opens Options.App, runs every line in order and leaves
// remote mode. A failing command is recorded and the run continues; a
// command that exits stops the run. The returned error is set only when the
// instrument could not be reached or ctx was cancelled.
func (r *Runner) Run(ctx context.Context, lines []string) (*Report, error) {
	report := &Report{RunID: r.runID}
	r.logger.Info("batch started", zap.Int("commands", len(lines)))

	if !r.inst.IsConnected() {
		if err := r.inst.Connect(ctx); err != nil {
			return report, fmt.Errorf("connect: %w", err)
		}
	}

	if r.opts.App != "" {
		if cur, ok := r.inst.Current(); ok {
			fmt.Fprintf(r.opts.Out, "Current App: %s\n", cur)
		}
		if _, err := r.inst.ConnectToApp(ctx, r.opts.App, "", tbremote.ConnectOptions{
			Timeout: r.opts.Timeout,
			Verbose: true,
		}); err != nil {
			fmt.Fprintf(r.opts.Out, "Connect to app %s failed: %v\n", r.opts.App, err)
			r.logger.Error("connect to app failed", zap.String("app", r.opts.App), zap.Error(err))
		}
	}

	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if cur, ok := r.inst.Current(); ok {
			fmt.Fprintf(r.opts.Out, "Current Application: %s\n", cur)
		}
		fmt.Fprintf(r.opts.Out, "command %s (%d/%d)\n", line, i+1, len(lines))

		res, err := r.dispatcher.Execute(ctx, line)
		outcome := Outcome{Index: i + 1, Line: line, Value: res.Value, Err: err}
		report.Outcomes = append(report.Outcomes, outcome)
		if err != nil {
			fmt.Fprintf(r.opts.Out, "Run command %s (%d/%d) failed: %v\n", line, i+1, len(lines), err)
			r.logger.Warn("command failed", zap.Int("index", i+1), zap.String("line", line), zap.Error(err))
		} else {
			r.logger.Debug("command done", zap.Int("index", i+1), zap.String("line", line), zap.String("value", outcome.Text()))
		}
		if res.Exit {
			report.Exited = true
			break
		}
	}

	if !report.Exited && r.inst.IsConnected() {
		fmt.Fprintln(r.opts.Out, "Exiting Remote Mode.")
		if err := r.inst.Exit(ctx); err != nil {
			fmt.Fprintf(r.opts.Out, "Exit failed: %v\n", err)
			r.logger.Warn("exit failed", zap.Error(err))
		}
	}

	r.logger.Info("batch finished", zap.Int("executed", len(report.Outcomes)), zap.Int("failed", report.Failed()))
	return report, nil
}
