package hub

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// fakePushSocket accepts one connection and writes the given lines.
type fakePushSocket struct {
	listener net.Listener

	mu    sync.Mutex
	conns []net.Conn
}

func newFakePushSocket(t *testing.T) *fakePushSocket {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	f := &fakePushSocket{listener: ln}
	t.Cleanup(func() {
		ln.Close()
		f.mu.Lock()
		for _, c := range f.conns {
			c.Close()
		}
		f.mu.Unlock()
	})

	return f
}

// acceptOne accepts a single connection in the background and returns a
// channel that yields it.
func (f *fakePushSocket) acceptOne(t *testing.T) <-chan net.Conn {
	t.Helper()

	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		ch <- conn
	}()
	return ch
}

func (f *fakePushSocket) port() int {
	return f.listener.Addr().(*net.TCPAddr).Port
}

func TestListener_ReceivesUpdates(t *testing.T) {
	socket := newFakePushSocket(t)
	connCh := socket.acceptOne(t)

	type update struct {
		ref         int
		value, prev float64
	}
	updates := make(chan update, 10)

	l := NewListener(ListenerConfig{Host: "127.0.0.1", Port: socket.port()})
	l.SetOnUpdate(func(ref int, value, prev float64) {
		updates <- update{ref, value, prev}
	})

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Close()

	if !l.IsConnected() {
		t.Error("IsConnected() = false after Start()")
	}

	conn := <-connCh
	conn.Write([]byte("DC,170,255,0\r\nTIME,12:00:00\r\nDC,31,21.5,20\r\n"))

	want := []update{
		{170, 255, 0},
		{31, 21.5, 20},
	}
	for i, w := range want {
		select {
		case got := <-updates:
			if got != w {
				t.Errorf("update %d = %+v, want %+v", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for update %d", i)
		}
	}

	stats := l.Stats()
	if stats.UpdatesRx != 2 {
		t.Errorf("UpdatesRx = %d, want 2", stats.UpdatesRx)
	}
	if stats.LinesRx != 3 {
		t.Errorf("LinesRx = %d, want 3", stats.LinesRx)
	}
}

func TestListener_OnConnect(t *testing.T) {
	socket := newFakePushSocket(t)
	socket.acceptOne(t)

	connected := make(chan struct{}, 1)

	l := NewListener(ListenerConfig{Host: "127.0.0.1", Port: socket.port()})
	l.SetOnConnect(func() { connected <- struct{}{} })

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Close()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("connect callback never fired")
	}
}

func TestListener_StartFailure(t *testing.T) {
	// Port with nothing listening
	l := NewListener(ListenerConfig{
		Host:        "127.0.0.1",
		Port:        1, // reserved port, nothing listens here
		DialTimeout: 500 * time.Millisecond,
	})

	if err := l.Start(context.Background()); err == nil {
		t.Fatal("Start() expected error for unreachable socket")
	}

	if l.IsConnected() {
		t.Error("IsConnected() = true after failed Start()")
	}
}

func TestListener_CloseIdempotent(t *testing.T) {
	socket := newFakePushSocket(t)
	socket.acceptOne(t)

	l := NewListener(ListenerConfig{Host: "127.0.0.1", Port: socket.port()})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := l.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if l.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestListener_CloseBeforeStart(t *testing.T) {
	l := NewListener(ListenerConfig{Host: "127.0.0.1", Port: 11000})
	if err := l.Close(); err != nil {
		t.Errorf("Close() before Start() error = %v", err)
	}
}

func TestListener_DoubleStart(t *testing.T) {
	socket := newFakePushSocket(t)
	socket.acceptOne(t)

	l := NewListener(ListenerConfig{Host: "127.0.0.1", Port: socket.port()})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Close()

	if err := l.Start(context.Background()); err == nil {
		t.Error("second Start() expected error")
	}
}

func TestListener_Reconnect(t *testing.T) {
	socket := newFakePushSocket(t)
	connCh := socket.acceptOne(t)

	connects := make(chan struct{}, 4)
	updates := make(chan int, 4)

	l := NewListener(ListenerConfig{
		Host:              "127.0.0.1",
		Port:              socket.port(),
		ReconnectInterval: 50 * time.Millisecond,
	})
	l.SetOnConnect(func() { connects <- struct{}{} })
	l.SetOnUpdate(func(ref int, _, _ float64) { updates <- ref })

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Close()

	<-connects // initial connection

	// Drop the connection server-side, then accept the reconnect
	firstConn := <-connCh
	reconnCh := socket.acceptOne(t)
	firstConn.Close()

	select {
	case <-connects:
	case <-time.After(5 * time.Second):
		t.Fatal("listener never reconnected")
	}

	// Updates flow again after the reconnect
	conn := <-reconnCh
	conn.Write([]byte("DC,7,1,0\r\n"))

	select {
	case ref := <-updates:
		if ref != 7 {
			t.Errorf("update ref = %d, want 7", ref)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update after reconnect")
	}

	if l.Stats().ReconnectsTotal != 1 {
		t.Errorf("ReconnectsTotal = %d, want 1", l.Stats().ReconnectsTotal)
	}
}
