package tbremote

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestConn_ReadLine(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	c := NewConn(client)

	go server.Write([]byte("TermEth100GL2Traffic_1,\n"))

	line, err := c.ReadLine(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "TermEth100GL2Traffic_1," {
		t.Errorf("ReadLine = %q", line)
	}
}

func TestConn_ReadLineTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	_, err := NewConn(client).ReadLine(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("ReadLine on a silent peer = %v, want ErrTimeout", err)
	}
}

func TestConn_ReadLineClosed(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	server.Close()

	_, err := NewConn(client).ReadLine(context.Background(), time.Second)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("ReadLine after peer close = %v, want ErrClosed", err)
	}
}

func TestMergeDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if d := mergeDeadline(ctx, time.Hour); time.Until(d) > time.Second {
		t.Errorf("context deadline not applied: %v", d)
	}
	if d := mergeDeadline(context.Background(), time.Minute); time.Until(d) < 50*time.Second {
		t.Errorf("timeout not applied: %v", d)
	}
}
