package tbremote

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiabin827/tbremote/simulator"
)

// scriptedPrompter answers prompts from a fixed list.
type scriptedPrompter struct {
	answers   []string
	questions []string
}

func (p *scriptedPrompter) Prompt(question string) (string, error) {
	p.questions = append(p.questions, question)
	if len(p.answers) == 0 {
		return "", errors.New("no more answers")
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func TestDispatcher_AutoModeRejectsMenus(t *testing.T) {
	sim, ctrl := connectedSimulator(t, simulator.ONA1000)
	d := NewDispatcher(ctrl, nil, nil)
	require.True(t, d.Auto())

	for _, line := range []string{"APP", "MULTIAPP", "CLOSEAPP", "ACTIVE"} {
		res, err := d.Execute(context.Background(), line)
		assert.ErrorIs(t, err, ErrInteractiveOnly, line)
		assert.Equal(t, false, res.Value, line)
	}
	assert.Empty(t, sim.Commands())
}

func TestDispatcher_ParseFailure(t *testing.T) {
	_, ctrl := connectedSimulator(t, simulator.ONA1000)
	d := NewDispatcher(ctrl, nil, nil)

	res, err := d.Execute(context.Background(), "PEEK 1 2 3")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ParseArgCount, pe.Kind)
	assert.Equal(t, false, res.Value)
	assert.False(t, res.Exit)
}

func TestDispatcher_BatchSequence(t *testing.T) {
	sim, ctrl := connectedSimulator(t, simulator.ONA1000)
	sim.SetRegister(0, 0x10, 0x3C)
	var out bytes.Buffer
	d := NewDispatcher(ctrl, &out, nil)
	ctx := context.Background()

	res, err := d.Execute(ctx, "GETACTIVE")
	require.NoError(t, err)
	assert.Nil(t, res.Value)

	res, err = d.Execute(ctx, "START TermEth100GL2Traffic 1")
	require.NoError(t, err)
	app, ok := res.Value.(Application)
	require.True(t, ok)
	assert.Equal(t, "TermEth100GL2Traffic_1", app.ID)

	res, err = d.Execute(ctx, "PEEK 0 0x10")
	require.NoError(t, err)
	assert.Equal(t, 0x3C, res.Value)
	assert.Contains(t, out.String(), "= 0x3c")

	res, err = d.Execute(ctx, "POKE 0x05 0xFF")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Value)
	assert.Equal(t, 0xFF, sim.Register(0, 5))

	res, err = d.Execute(ctx, "SCPI :SYST:APPL:CAPP?")
	require.NoError(t, err)
	assert.Equal(t, "TermEth100GL2Traffic_1,", res.Value)

	res, err = d.Execute(ctx, "DELAY 0")
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)

	res, err = d.Execute(ctx, "LASER ON")
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
	res, err = d.Execute(ctx, "LASER ?")
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)

	res, err = d.Execute(ctx, "GETACTIVE")
	require.NoError(t, err)
	assert.Equal(t, app, res.Value)

	res, err = d.Execute(ctx, "CLOSEAPP TermEth100GL2Traffic_1")
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
	assert.Empty(t, sim.Running())

	res, err = d.Execute(ctx, "EXIT")
	require.NoError(t, err)
	assert.True(t, res.Exit)
	assert.False(t, ctrl.IsConnected())
}

func TestDispatcher_PeekFailureReturnsFalse(t *testing.T) {
	_, ctrl := connectedSimulator(t, simulator.ONA1000)
	d := NewDispatcher(ctrl, nil, nil)

	res, err := d.Execute(context.Background(), "PEEK 0x100")
	assert.True(t, IsValidation(err))
	assert.Equal(t, false, res.Value)
}

func TestDispatcher_InteractiveAppMenu(t *testing.T) {
	sim, ctrl := connectedSimulator(t, simulator.ONA1000)
	var out bytes.Buffer
	p := &scriptedPrompter{answers: []string{"4", "2"}}
	d := NewDispatcher(ctrl, &out, p)

	res, err := d.Execute(context.Background(), "APP")
	require.NoError(t, err)

	app := res.Value.(Application)
	assert.Equal(t, "TermEth10GL2Traffic_2", app.ID)
	assert.Equal(t, []string{"TermEth10GL2Traffic_2"}, sim.Running())
	assert.Contains(t, out.String(), "[0] Do not open")
	assert.NotContains(t, out.String(), "Current open application")
	assert.Len(t, p.questions, 2)
}

func TestDispatcher_InteractiveAppMenuSkip(t *testing.T) {
	sim, ctrl := connectedSimulator(t, simulator.ONA1000)
	d := NewDispatcher(ctrl, nil, &scriptedPrompter{answers: []string{"0"}})

	res, err := d.Execute(context.Background(), "APP")
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
	assert.Empty(t, sim.Running())
}

func TestDispatcher_InteractiveAppMenuRunning(t *testing.T) {
	sim, ctrl := connectedSimulator(t, simulator.ONA1000)
	sim.SetRunning("TermEth25GL2Traffic_1", "TermEth10GL2Traffic_2")
	var out bytes.Buffer
	// catalog has 6 entries, so 7 selects the running applications
	d := NewDispatcher(ctrl, &out, &scriptedPrompter{answers: []string{"7", "2"}})

	res, err := d.Execute(context.Background(), "MULTIAPP")
	require.NoError(t, err)

	assert.Equal(t, "TermEth10GL2Traffic_2", res.Value.(Application).ID)
	assert.Contains(t, out.String(), "[7] Current open application")
	assert.Len(t, sim.Running(), 2)
}

func TestDispatcher_InteractiveBadPort(t *testing.T) {
	_, ctrl := connectedSimulator(t, simulator.ONA1000)
	d := NewDispatcher(ctrl, nil, &scriptedPrompter{answers: []string{"1", "5"}})

	res, err := d.Execute(context.Background(), "APP")
	assert.True(t, IsValidation(err))
	assert.Equal(t, false, res.Value)
}

func TestDispatcher_InteractiveCloseChoosesNext(t *testing.T) {
	sim, ctrl := connectedSimulator(t, simulator.ONA1000)
	sim.SetRunning("TermEth25GL2Traffic_1", "TermEth10GL2Traffic_2")
	d := NewDispatcher(ctrl, nil, &scriptedPrompter{answers: []string{"1", "1"}})

	res, err := d.Execute(context.Background(), "CLOSEAPP")
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)

	assert.Equal(t, []string{"TermEth10GL2Traffic_2"}, sim.Running())
	cur, ok := ctrl.Current()
	require.True(t, ok)
	assert.Equal(t, "TermEth10GL2Traffic_2", cur.ID)
}

func TestDispatcher_Help(t *testing.T) {
	_, ctrl := connectedSimulator(t, simulator.ONA1000)

	var auto bytes.Buffer
	_, err := NewDispatcher(ctrl, &auto, nil).Execute(context.Background(), "HELP")
	require.NoError(t, err)
	assert.NotContains(t, auto.String(), "MULTIAPP")
	assert.Contains(t, auto.String(), "PEEK")

	var interactive bytes.Buffer
	_, err = NewDispatcher(ctrl, &interactive, &scriptedPrompter{}).Execute(context.Background(), "HELP")
	require.NoError(t, err)
	assert.Contains(t, interactive.String(), "MULTIAPP")
}

func TestController_ImplementsInstrument(t *testing.T) {
	var _ Instrument = (*Controller)(nil)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{true, "True"},
		{false, "False"},
		{0xFF, "0xff"},
		{0, "0x0"},
		{-1, "-0x1"},
		{"TermEth100GL2Traffic_1,", "TermEth100GL2Traffic_1,"},
		{ApplicationFromID("TermEth100GL2Traffic_1"), "TermEth100GL2Traffic_1"},
		{nil, "None"},
		{1.5, "1.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in), "FormatValue(%#v)", tt.in)
	}
}
