package tbremote

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestReadLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"LF", "TM400G-1:5030\n", "TM400G-1:5030"},
		{"CRLF", "0, \"No error\"\r\n", `0, "No error"`},
		{"Padded", "  ON  \n", "ON"},
		{"Empty", "\n", ""},
		{"NoTerminator", "partial", "partial"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadLine(bufio.NewReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadLine failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadLine_EOF(t *testing.T) {
	_, err := ReadLine(bufio.NewReader(strings.NewReader("")))
	if err != io.EOF {
		t.Errorf("ReadLine on empty input = %v, want io.EOF", err)
	}
}

func TestReadFrame_JoinsBufferedLines(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("OTDR-1:5030\nTM400G-1:5031\n\nTM400G-2:5032\n"))

	got, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	want := "OTDR-1:5030\nTM400G-1:5031\nTM400G-2:5032"
	if got != want {
		t.Errorf("ReadFrame = %q, want %q", got, want)
	}

	modules, err := ParseModuleList(got)
	if err != nil {
		t.Fatalf("ParseModuleList failed: %v", err)
	}
	if modules["TM400G-1"] != 5031 {
		t.Errorf("TM400G-1 port = %d, want 5031", modules["TM400G-1"])
	}
}

func TestReadFrame_StopsAtPartialLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("first\nsecond-without-newline"))

	got, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if got != "first" {
		t.Errorf("ReadFrame = %q, want %q", got, "first")
	}
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	if err := WriteLine(w, ":SYST:APPL:CAPP?\r\n"); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}
	if err := WriteLine(w, "*REM"); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Error("WriteLine should not flush")
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got, want := buf.String(), ":SYST:APPL:CAPP?\n*REM\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestIsQuery(t *testing.T) {
	tests := map[string]bool{
		":SYST:ERR?":       true,
		":PRTM:LIST?":      true,
		CmdPeekData:        true,
		"*REM":             false,
		":SYST:APPL:SEL x": false,
		CmdPokeTrigger:     false,
	}
	for cmd, want := range tests {
		if got := IsQuery(cmd); got != want {
			t.Errorf("IsQuery(%q) = %v, want %v", cmd, got, want)
		}
	}
}
