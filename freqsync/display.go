package freqsync

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrDisplayNotConnected is returned when the display connection is down.
var ErrDisplayNotConnected = errors.New("not connected to display")

const displayTimeout = 5 * time.Second

// DisplayClient speaks the rigctl subset the display exposes: "f" reads
// the frequency, "F <hz>" and "M <mode>" answer "RPRT 0".
type DisplayClient struct {
	addr    string
	timeout time.Duration
	log     *zap.Logger

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

// NewDisplayClient creates a client for the display's rigctl server at
// host:port.
func NewDisplayClient(host string, port int, log *zap.Logger) *DisplayClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &DisplayClient{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: displayTimeout,
		log:     log,
	}
}

// Connect dials the display. Connecting twice is a no-op.
func (d *DisplayClient) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", d.addr, d.timeout)
	if err != nil {
		return fmt.Errorf("cannot connect to display at %s: %w", d.addr, err)
	}
	d.conn = conn
	d.r = bufio.NewReader(conn)
	d.log.Info("connected to display", zap.String("address", d.addr))
	return nil
}

// Close drops the connection.
func (d *DisplayClient) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropLocked()
}

// Connected reports whether the client holds an open connection.
func (d *DisplayClient) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

func (d *DisplayClient) dropLocked() {
	if d.conn == nil {
		return
	}
	d.conn.Close()
	d.conn = nil
	d.r = nil
}

// roundTrip sends one command line and reads one reply line. Any I/O
// failure drops the connection; reconnection is the caller's call.
func (d *DisplayClient) roundTrip(command string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return "", ErrDisplayNotConnected
	}

	d.conn.SetDeadline(time.Now().Add(d.timeout))
	if _, err := fmt.Fprintf(d.conn, "%s\n", command); err != nil {
		d.dropLocked()
		return "", fmt.Errorf("display write failed: %w", err)
	}
	line, err := d.r.ReadString('\n')
	if err != nil {
		d.dropLocked()
		return "", fmt.Errorf("display read failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Frequency returns the display's tuned frequency in Hz.
func (d *DisplayClient) Frequency() (int, error) {
	resp, err := d.roundTrip("f")
	if err != nil {
		return 0, err
	}
	hz, err := strconv.Atoi(resp)
	if err != nil {
		return 0, fmt.Errorf("invalid display frequency %q", resp)
	}
	return hz, nil
}

// SetFrequency tunes the display.
func (d *DisplayClient) SetFrequency(hz int) error {
	resp, err := d.roundTrip(fmt.Sprintf("F %d", hz))
	if err != nil {
		return err
	}
	if !strings.Contains(resp, "RPRT 0") {
		return fmt.Errorf("display rejected frequency: %q", resp)
	}
	return nil
}

// SetMode switches the display's demodulator.
func (d *DisplayClient) SetMode(mode string) error {
	resp, err := d.roundTrip("M " + mode)
	if err != nil {
		return err
	}
	if !strings.Contains(resp, "RPRT 0") {
		return fmt.Errorf("display rejected mode: %q", resp)
	}
	return nil
}
