package freqsync

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestDisplayClientRoundTrips(t *testing.T) {
	server := startFakeDisplayServer(t)
	server.setFrequency(7074000)
	client := connectedClient(t, server)

	hz, err := client.Frequency()
	if err != nil {
		t.Fatalf("get frequency failed: %v", err)
	}
	if hz != 7074000 {
		t.Errorf("expected 7074000, got %d", hz)
	}

	if err := client.SetFrequency(14030000); err != nil {
		t.Fatalf("set frequency failed: %v", err)
	}
	if got := server.currentFrequency(); got != 14030000 {
		t.Errorf("expected server at 14030000, got %d", got)
	}

	if err := client.SetMode("CW"); err != nil {
		t.Fatalf("set mode failed: %v", err)
	}
	if got := server.currentMode(); got != "CW" {
		t.Errorf("expected server mode CW, got %q", got)
	}
}

func TestDisplayClientConnectIsIdempotent(t *testing.T) {
	server := startFakeDisplayServer(t)
	client := connectedClient(t, server)

	if err := client.Connect(); err != nil {
		t.Fatalf("second connect failed: %v", err)
	}
	if !client.Connected() {
		t.Error("expected client to be connected")
	}
}

func TestDisplayClientConnectFailure(t *testing.T) {
	client := NewDisplayClient("127.0.0.1", 1, zap.NewNop())
	if err := client.Connect(); err == nil {
		t.Error("expected connect to fail")
	}
	if client.Connected() {
		t.Error("expected client to be disconnected")
	}
}

func TestDisplayClientDropsConnectionOnError(t *testing.T) {
	server := startFakeDisplayServer(t)
	client := connectedClient(t, server)

	server.close()
	if _, err := client.Frequency(); err == nil {
		t.Fatal("expected the read to fail after the server went away")
	}
	if client.Connected() {
		t.Error("expected the failed round trip to drop the connection")
	}
	if _, err := client.Frequency(); !errors.Is(err, ErrDisplayNotConnected) {
		t.Errorf("expected ErrDisplayNotConnected, got %v", err)
	}
}

func TestDisplayClientRejectedCommand(t *testing.T) {
	server := startFakeDisplayServer(t)
	server.rejectAll()
	client := connectedClient(t, server)

	if err := client.SetFrequency(14030000); err == nil {
		t.Error("expected a rejected frequency to surface as error")
	}
}

func connectedClient(t *testing.T, server *fakeDisplayServer) *DisplayClient {
	t.Helper()
	host, portStr, err := net.SplitHostPort(server.addr())
	if err != nil {
		t.Fatalf("invalid server address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	client := NewDisplayClient(host, port, zap.NewNop())
	if err := client.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

// fakeDisplayServer answers the rigctl subset the display exposes.
type fakeDisplayServer struct {
	listener net.Listener

	mu        sync.Mutex
	reject    bool
	frequency int
	mode      string
	conns     []net.Conn
}

func startFakeDisplayServer(t *testing.T) *fakeDisplayServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cannot start fake display: %v", err)
	}
	server := &fakeDisplayServer{listener: listener}
	t.Cleanup(server.close)
	go server.serve()
	return server
}

func (s *fakeDisplayServer) addr() string {
	return s.listener.Addr().String()
}

func (s *fakeDisplayServer) close() {
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
}

func (s *fakeDisplayServer) rejectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = true
}

func (s *fakeDisplayServer) setFrequency(hz int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frequency = hz
}

func (s *fakeDisplayServer) currentFrequency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frequency
}

func (s *fakeDisplayServer) currentMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *fakeDisplayServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *fakeDisplayServer) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		s.mu.Lock()
		reject := s.reject
		s.mu.Unlock()
		if reject {
			fmt.Fprintln(conn, "RPRT -1")
			continue
		}
		switch {
		case line == "f":
			s.mu.Lock()
			hz := s.frequency
			s.mu.Unlock()
			fmt.Fprintln(conn, hz)
		case strings.HasPrefix(line, "F "):
			hz, err := strconv.Atoi(strings.TrimPrefix(line, "F "))
			if err != nil {
				fmt.Fprintln(conn, "RPRT -1")
				continue
			}
			s.mu.Lock()
			s.frequency = hz
			s.mu.Unlock()
			fmt.Fprintln(conn, "RPRT 0")
		case strings.HasPrefix(line, "M "):
			s.mu.Lock()
			s.mode = strings.TrimPrefix(line, "M ")
			s.mu.Unlock()
			fmt.Fprintln(conn, "RPRT 0")
		default:
			fmt.Fprintln(conn, "RPRT -1")
		}
	}
}
