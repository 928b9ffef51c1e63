package tbremote

import (
	"testing"
)

func TestParseApplication(t *testing.T) {
	tests := []struct {
		in   string
		want Application
	}{
		{"TermEth100GL2Traffic 1", Application{Name: "TermEth100GL2Traffic", Port: "1"}},
		{"TermEth100GL2Traffic", Application{Name: "TermEth100GL2Traffic"}},
		{"TermEth 100GL2Traffic 2", Application{Name: "TermEth100GL2Traffic", Port: "2"}},
		{"  padded   1 ", Application{Name: "padded", Port: "1"}},
		{"", Application{}},
	}
	for _, tt := range tests {
		if got := ParseApplication(tt.in); got != tt.want {
			t.Errorf("ParseApplication(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestApplicationFromID(t *testing.T) {
	tests := []struct {
		id   string
		want Application
	}{
		{"TermEth100GL2Traffic_1", Application{Name: "TermEth100GL2Traffic", Port: "1", ID: "TermEth100GL2Traffic_1"}},
		{"BertTerm_P12", Application{Name: "BertTerm", Port: "2", ID: "BertTerm_P12"}},
		{"a_b_3", Application{Name: "ab", Port: "3", ID: "a_b_3"}},
		{"Standalone", Application{Name: "Standalone", ID: "Standalone"}},
	}
	for _, tt := range tests {
		if got := ApplicationFromID(tt.id); got != tt.want {
			t.Errorf("ApplicationFromID(%q) = %+v, want %+v", tt.id, got, tt.want)
		}
	}
}

func TestResolveApplication(t *testing.T) {
	if got := ResolveApplication("TermEth10GL2Traffic_2"); got.ID != "TermEth10GL2Traffic_2" {
		t.Errorf("composite id should resolve as an id, got %+v", got)
	}
	if got := ResolveApplication("TermEth10GL2Traffic 2"); got.ID != "" || got.Port != "2" {
		t.Errorf("name and port should resolve without an id, got %+v", got)
	}
}

func TestApplication_Equal(t *testing.T) {
	byID := ApplicationFromID("TermEth100GL2Traffic_1")
	byName := NewApplication("TermEth100GL2Traffic", "1")
	other := ApplicationFromID("TermEth100GL2Traffic_2")

	if !byID.Equal(byName) || !byName.Equal(byID) {
		t.Error("id and name/port forms of the same application should be equal")
	}
	if byID.Equal(other) {
		t.Error("applications on different ports should differ")
	}
	if byName.Equal(NewApplication("TermEth100GL2Traffic", "")) {
		t.Error("an application without a port should not match one with a port")
	}
	// Both ids present: ids decide even if the derived fields agree
	if ApplicationFromID("X_1").Equal(Application{Name: "X", Port: "1", ID: "Y_1"}) {
		t.Error("distinct ids should not be equal")
	}
}

func TestApplication_Identifiers(t *testing.T) {
	app := NewApplication("TermEth100GL2Traffic", "1")
	if got := app.SelectID(); got != "TermEth100GL2Traffic_1" {
		t.Errorf("SelectID = %q", got)
	}
	if got := app.String(); got != "TermEth100GL2Traffic 1" {
		t.Errorf("String = %q", got)
	}
	if got := app.LaunchName(); got != "TermEth100GL2Traffic" {
		t.Errorf("LaunchName = %q", got)
	}

	id := ApplicationFromID("BertTerm_P12")
	if id.SelectID() != "BertTerm_P12" || id.String() != "BertTerm_P12" {
		t.Errorf("id form should select and print by id, got %q / %q", id.SelectID(), id.String())
	}
	if !(Application{}).IsZero() || app.IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestPortsInUse(t *testing.T) {
	apps := ParseApplicationList("TermEth10GL2Traffic_1,TermEth25GL2Traffic_1,Standalone,")
	ports := PortsInUse(apps)

	if len(ports) != 1 {
		t.Fatalf("PortsInUse = %v, want one port", ports)
	}
	if owner := ports["1"]; owner.ID != "TermEth10GL2Traffic_1" {
		t.Errorf("port 1 owner = %v, want the first application", owner)
	}
}
