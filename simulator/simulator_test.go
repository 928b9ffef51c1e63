package simulator

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T, cfg Config) *Instrument {
	t.Helper()
	in := New(cfg)
	require.NoError(t, in.Start(context.Background()))
	t.Cleanup(func() { in.Close() })
	return in
}

type client struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, port int) *client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *client) query(t *testing.T, line string) string {
	t.Helper()
	c.send(t, line)
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(time.Second)))
	reply, err := c.r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(reply, "\r\n")
}

func TestInstrument_ONAPortDiscovery(t *testing.T) {
	in := start(t, Config{Family: ONA1000})
	assert.Zero(t, in.RCPort())

	c := dial(t, in.BootstrapPort())
	c.send(t, "*REM")
	list := c.query(t, ":PRTM:LIST?")
	assert.Equal(t, "OTDR-1:5030,TM400G-1:"+strconv.Itoa(in.ModulePort())+",", list)
	assert.Equal(t, "*REM", in.RemoteMode())

	m := dial(t, in.ModulePort())
	assert.Equal(t, NoError, m.query(t, ":SYST:ERR?"))
}

func TestInstrument_TBERDPortDiscovery(t *testing.T) {
	in := start(t, Config{Family: TBERD5800})
	require.NotZero(t, in.RCPort())

	c := dial(t, in.BootstrapPort())
	assert.Equal(t, "ON", c.query(t, "MOD:FUNC:SEL? BOTH,BASE,\"BERT\""))
	assert.Equal(t, strconv.Itoa(in.ModulePort()), c.query(t, "MOD:FUNC:PORT? BOTH,BASE,\"BERT\""))

	m := dial(t, in.ModulePort())
	assert.Equal(t, "1", m.query(t, ":SYST:FUNC:READY? BOTH,1,BERT"))
	assert.Equal(t, strconv.Itoa(in.RCPort()), m.query(t, ":SYST:FUNC:PORT? BOTH,1,BERT"))

	in.SetReady(false)
	assert.Equal(t, "-1", m.query(t, ":SYST:FUNC:PORT? BOTH,1,BERT"))
}

func TestInstrument_Lifecycle(t *testing.T) {
	in := start(t, Config{Family: ONA1000})
	c := dial(t, in.ModulePort())

	c.send(t, ":SYST:APPL:LAUN TermEth100GL2Traffic 2")
	assert.Equal(t, "TermEth100GL2Traffic_2", c.query(t, ":SYST:APPL:LAUN?"))
	assert.Equal(t, "TermEth100GL2Traffic_2,", c.query(t, ":SYST:APPL:CAPP?"))

	c.send(t, ":SYST:APPL:SEL TermEth100GL2Traffic_2")
	c.send(t, ":SESS:CREATE")
	assert.Equal(t, NoError, c.query(t, ":SYST:ERR?"))
	assert.Equal(t, "TermEth100GL2Traffic_2", in.Selected())
	assert.Equal(t, "created", in.SessionState())

	c.send(t, ":EXIT")
	assert.Equal(t, "", c.query(t, ":SYST:APPL:CAPP?"))
	assert.Empty(t, in.Running())

	c.send(t, ":SYST:APPL:LAUN NoSuchApp")
	assert.Equal(t, ErrAppNotFound, c.query(t, ":SYST:ERR?"))
}

func TestInstrument_ExitFailure(t *testing.T) {
	in := start(t, Config{Family: ONA1000})
	in.SetRunning("TermEth10GL2Traffic_1")
	in.FailExit("TermEth10GL2Traffic_1")
	c := dial(t, in.ModulePort())

	c.send(t, ":EXIT")
	assert.Equal(t, ErrNoSelection, c.query(t, ":SYST:ERR?"))

	c.send(t, ":SYST:APPL:SEL TermEth10GL2Traffic_1")
	c.send(t, ":EXIT")
	assert.Equal(t, ErrExitFailed, c.query(t, ":SYST:ERR?"))
	assert.Equal(t, []string{"TermEth10GL2Traffic_1"}, in.Running())
}

func TestInstrument_Registers(t *testing.T) {
	in := start(t, Config{Family: ONA1000})
	in.SetRegister(1, 0x40, 0x5A)
	c := dial(t, in.ModulePort())

	c.send(t, ":SENSE:EXPERT:I2C:PEEK:PAGESEL 1")
	c.send(t, ":SENSE:EXPERT:I2C:PEEK:REGADDR 64")
	c.send(t, ":SENSE:EXPERT:I2C:PEEK:TRIGGER")
	assert.Equal(t, "90", c.query(t, ":SENSE:DATA? :SENSE:EXPERT:I2C:PEEK:REGDATA"))

	c.send(t, ":SENSE:EXPERT:I2C:POKE:PAGESEL 0")
	c.send(t, ":SENSE:EXPERT:I2C:POKE:REGADDR 3")
	c.send(t, ":SENSE:EXPERT:I2C:POKE:REGDATA 255")
	c.send(t, ":SENSE:EXPERT:I2C:POKE:TRIGGER")
	assert.Equal(t, "1", c.query(t, ":SENSE:DATA? :SENSE:EXPERT:I2C:POKE:SUCCESS"))
	assert.Equal(t, 0xFF, in.Register(0, 3))

	c.send(t, ":SENSE:EXPERT:I2C:POKE:REGDATA 256")
	assert.Equal(t, ErrOutOfRange, c.query(t, ":SYST:ERR?"))
}

func TestInstrument_LaserAndErrors(t *testing.T) {
	in := start(t, Config{Family: ONA1000})
	c := dial(t, in.ModulePort())

	c.send(t, ":OUTPUT:OPTIC ON")
	assert.Equal(t, "ON", c.query(t, ":OUTPUT:OPTIC?"))
	assert.True(t, in.Laser())

	assert.Equal(t, "", c.query(t, ":FROB?"))
	assert.Equal(t, ErrUndefined, c.query(t, ":SYST:ERR?"))

	in.PushError(ErrOutOfRange)
	assert.Equal(t, ErrOutOfRange, c.query(t, ":SYST:ERR?"))
	assert.Equal(t, NoError, c.query(t, ":SYST:ERR?"))

	assert.NotContains(t, in.Commands(), ":SYST:ERR?")
	in.ResetCommands()
	assert.Empty(t, in.Commands())
}

func TestInstrument_OnCommand(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	in := start(t, Config{Family: ONA1000, OnCommand: func(line string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, line)
	}})
	c := dial(t, in.ModulePort())

	c.query(t, ":SYST:ERR?")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{":SYST:ERR?"}, seen)
}

func TestInstrument_CloseStopsListeners(t *testing.T) {
	in := New(Config{Family: ONA1000})
	require.NoError(t, in.Start(context.Background()))
	port := in.BootstrapPort()
	c := dial(t, port)

	require.NoError(t, in.Close())

	_, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 200*time.Millisecond)
	assert.Error(t, err)
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = c.r.ReadString('\n')
	assert.Error(t, err)
}
