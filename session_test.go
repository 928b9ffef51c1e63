package tbremote

import (
	"testing"
	"time"
)

func TestSession_Initial(t *testing.T) {
	s := NewSession(DefaultTimeout)

	if s.ConnState() != StateDisconnected {
		t.Errorf("initial conn state = %s, want disconnected", s.ConnState())
	}
	if s.IsConnected() {
		t.Error("IsConnected should be false initially")
	}
	if s.InSession() {
		t.Error("InSession should be false initially")
	}
	if _, ok := s.Current(); ok {
		t.Error("Current should report no application initially")
	}
	if s.Timeout() != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", s.Timeout(), DefaultTimeout)
	}
}

func TestSession_OverrideTimeout(t *testing.T) {
	s := NewSession(5 * time.Second)

	restore := s.OverrideTimeout(30 * time.Second)
	if s.Timeout() != 30*time.Second {
		t.Errorf("overridden timeout = %v, want 30s", s.Timeout())
	}
	restore()
	if s.Timeout() != 5*time.Second {
		t.Errorf("restored timeout = %v, want 5s", s.Timeout())
	}

	// Shorter overrides are allowed
	restore = s.OverrideTimeout(time.Second)
	if s.Timeout() != time.Second {
		t.Errorf("overridden timeout = %v, want 1s", s.Timeout())
	}
	restore()
	if s.Timeout() != 5*time.Second {
		t.Errorf("restored timeout = %v, want 5s", s.Timeout())
	}
}

func TestSession_AtLeastTimeout(t *testing.T) {
	s := NewSession(2 * time.Minute)

	restore := s.AtLeastTimeout(time.Minute)
	if s.Timeout() != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m (never shortened)", s.Timeout())
	}
	restore()

	restore = s.AtLeastTimeout(5 * time.Minute)
	if s.Timeout() != 5*time.Minute {
		t.Errorf("timeout = %v, want 5m", s.Timeout())
	}
	restore()
	if s.Timeout() != 2*time.Minute {
		t.Errorf("restored timeout = %v, want 2m", s.Timeout())
	}
}

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession(DefaultTimeout)
	app := ApplicationFromID("TermEth100GL2Traffic_1")

	s.setConnState(StateConnected, 5030)
	s.advance(SessionSelected)
	s.begin(app)
	s.advance(SessionRunning)

	if !s.InSession() {
		t.Error("InSession should be true after advancing")
	}
	cur, ok := s.Current()
	if !ok || !cur.Equal(app) {
		t.Errorf("Current = %v, %v; want %v", cur, ok, app)
	}

	// Ending the session clears the application but keeps the connection
	s.advance(SessionNone)
	if _, ok := s.Current(); ok {
		t.Error("Current should be cleared when the session ends")
	}
	if !s.IsConnected() || s.Port() != 5030 {
		t.Errorf("conn = %s port %d, want connected 5030", s.ConnState(), s.Port())
	}

	s.begin(app)
	s.reset()
	if s.IsConnected() || s.InSession() || s.Port() != 0 {
		t.Error("reset should return to the disconnected state")
	}
}

func TestSession_StateStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{StateDisconnected.String(), "disconnected"},
		{StatePortDiscovered.String(), "port-discovered"},
		{StateConnected.String(), "connected"},
		{ConnState(9).String(), "ConnState(9)"},
		{SessionNone.String(), "none"},
		{SessionSelected.String(), "selected"},
		{SessionCreated.String(), "created"},
		{SessionStarted.String(), "started"},
		{SessionRunning.String(), "running"},
		{SessionState(9).String(), "SessionState(9)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
