// Package rig is the exclusive owner of the FLRig XML-RPC channel to the
// transceiver. All radio state is read and mutated through gateway calls;
// no other component talks to the radio directly.
package rig

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kolo/xmlrpc"
	"go.uber.org/zap"
)

// Mode is an operating mode as FLRig names it.
type Mode string

const (
	ModeUSB   Mode = "USB"
	ModeLSB   Mode = "LSB"
	ModeCW    Mode = "CW"
	ModeCWR   Mode = "CW-R"
	ModeAM    Mode = "AM"
	ModeFM    Mode = "FM"
	ModeRTTY  Mode = "RTTY"
	ModeRTTYR Mode = "RTTY-R"
)

var validModes = map[Mode]bool{
	ModeUSB:   true,
	ModeLSB:   true,
	ModeCW:    true,
	ModeCWR:   true,
	ModeAM:    true,
	ModeFM:    true,
	ModeRTTY:  true,
	ModeRTTYR: true,
}

// State is a snapshot of the radio.
type State struct {
	FrequencyHz int
	Mode        Mode
	BandwidthHz int
	PowerWatts  float64
	PTT         bool
}

// Info describes the connected transceiver.
type Info struct {
	Transceiver string
	State       State
}

const (
	// DefaultMinInterval is the minimum spacing between consecutive
	// remote requests. The G90 CAT chain chokes on bursts.
	DefaultMinInterval = 50 * time.Millisecond

	// MaxPowerWatts is the transmit power ceiling of the G90.
	MaxPowerWatts = 10.0

	callTimeout = 5 * time.Second
)

// Control serializes all access to the single FLRig endpoint. Every call
// takes the process-wide mutex and keeps the minimum request spacing
// across the total call order, not per caller.
type Control struct {
	url         string
	minInterval time.Duration
	log         *zap.Logger

	mu       sync.Mutex
	client   *xmlrpc.Client
	lastCall time.Time
}

// New creates a gateway for the FLRig server at host:port. minInterval <= 0
// selects the default spacing.
func New(host string, port int, minInterval time.Duration, log *zap.Logger) *Control {
	return NewURL(fmt.Sprintf("http://%s:%d", host, port), minInterval, log)
}

// NewURL creates a gateway for the FLRig server at the given URL.
func NewURL(url string, minInterval time.Duration, log *zap.Logger) *Control {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Control{
		url:         url,
		minInterval: minInterval,
		log:         log,
	}
}

// Connect establishes the XML-RPC client and verifies the endpoint by
// asking for the transceiver name. Connecting twice is a no-op.
func (c *Control) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: callTimeout}).DialContext,
		ResponseHeaderTimeout: callTimeout,
	}
	client, err := xmlrpc.NewClient(c.url, transport)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	c.client = client
	var xcvr string
	if err := c.callLocked("rig.get_xcvr", nil, &xcvr); err != nil {
		client.Close()
		c.client = nil
		return fmt.Errorf("%w: no FLRig at %s: %v", ErrConnection, c.url, err)
	}
	c.log.Info("connected to FLRig", zap.String("transceiver", xcvr))
	return nil
}

// Disconnect drops the connection. Calls made afterwards fail with
// ErrNotConnected until Connect is called again.
func (c *Control) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return
	}
	c.client.Close()
	c.client = nil
	c.log.Info("disconnected from FLRig")
}

// Connected reports whether Connect has succeeded.
func (c *Control) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

func (c *Control) call(method string, args interface{}, reply interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callLocked(method, args, reply)
}

func (c *Control) callLocked(method string, args interface{}, reply interface{}) error {
	if c.client == nil {
		return ErrNotConnected
	}
	if wait := c.minInterval - time.Since(c.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	err := c.client.Call(method, args, reply)
	c.lastCall = time.Now()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return fmt.Errorf("%s: %w: %v", method, ErrTimeout, err)
		}
		return fmt.Errorf("%s: %w: %v", method, ErrCommunication, err)
	}
	return nil
}

// Frequency returns the current VFO frequency in Hz.
func (c *Control) Frequency() (int, error) {
	var raw interface{}
	if err := c.call("rig.get_vfo", nil, &raw); err != nil {
		return 0, err
	}
	hz, err := toInt(raw)
	if err != nil {
		return 0, fmt.Errorf("rig.get_vfo: %w: %v", ErrCommunication, err)
	}
	return hz, nil
}

// SetFrequency tunes the VFO. The set is fire-and-verify: FLRig gives no
// confirmation, callers that need certainty re-read the frequency.
func (c *Control) SetFrequency(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("%w: frequency %d Hz", ErrInvalidArgument, hz)
	}
	if err := c.call("rig.set_vfo", float64(hz), nil); err != nil {
		return err
	}
	c.log.Debug("set frequency", zap.Int("frequencyHz", hz))
	return nil
}

// Mode returns the current operating mode.
func (c *Control) Mode() (Mode, error) {
	var mode string
	if err := c.call("rig.get_mode", nil, &mode); err != nil {
		return "", err
	}
	return Mode(mode), nil
}

// SetMode switches the operating mode. Modes outside the fixed set fail
// before any remote call.
func (c *Control) SetMode(mode Mode) error {
	if !validModes[mode] {
		return fmt.Errorf("%w: mode %q", ErrInvalidArgument, mode)
	}
	if err := c.call("rig.set_mode", string(mode), nil); err != nil {
		return err
	}
	c.log.Debug("set mode", zap.String("mode", string(mode)))
	return nil
}

// Bandwidth returns the current filter bandwidth in Hz. FLRig answers
// sometimes with a plain string, sometimes with a list wrapping one.
func (c *Control) Bandwidth() (int, error) {
	var raw interface{}
	if err := c.call("rig.get_bw", nil, &raw); err != nil {
		return 0, err
	}
	hz, err := toInt(raw)
	if err != nil {
		return 0, fmt.Errorf("rig.get_bw: %w: %v", ErrCommunication, err)
	}
	return hz, nil
}

// SetBandwidth selects the filter bandwidth in Hz.
func (c *Control) SetBandwidth(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("%w: bandwidth %d Hz", ErrInvalidArgument, hz)
	}
	if err := c.call("rig.set_bw", float64(hz), nil); err != nil {
		return err
	}
	c.log.Debug("set bandwidth", zap.Int("bandwidthHz", hz))
	return nil
}

// Power returns the transmit power in watts.
func (c *Control) Power() (float64, error) {
	var raw interface{}
	if err := c.call("rig.get_power", nil, &raw); err != nil {
		return 0, err
	}
	watts, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("rig.get_power: %w: %v", ErrCommunication, err)
	}
	return watts, nil
}

// SetPower sets the transmit power in watts. Values outside [0, MaxPowerWatts]
// fail before any remote call.
func (c *Control) SetPower(watts float64) error {
	if watts < 0 || watts > MaxPowerWatts {
		return fmt.Errorf("%w: power %.1f W, must be within [0, %.0f]", ErrInvalidArgument, watts, MaxPowerWatts)
	}
	if err := c.call("rig.set_power", watts, nil); err != nil {
		return err
	}
	c.log.Debug("set power", zap.Float64("powerWatts", watts))
	return nil
}

// PTT returns the current transmit state.
func (c *Control) PTT() (bool, error) {
	var raw interface{}
	if err := c.call("rig.get_ptt", nil, &raw); err != nil {
		return false, err
	}
	v, err := toInt(raw)
	if err != nil {
		return false, fmt.Errorf("rig.get_ptt: %w: %v", ErrCommunication, err)
	}
	return v != 0, nil
}

// SetPTT keys or unkeys the transmitter. Every path that asserts transmit
// state must go through here.
func (c *Control) SetPTT(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := c.call("rig.set_ptt", v, nil); err != nil {
		return err
	}
	if on {
		c.log.Info("PTT on, transmitting")
	} else {
		c.log.Info("PTT off, receiving")
	}
	return nil
}

// State reads the complete rig state in one pass.
func (c *Control) State() (State, error) {
	frequency, err := c.Frequency()
	if err != nil {
		return State{}, err
	}
	mode, err := c.Mode()
	if err != nil {
		return State{}, err
	}
	bandwidth, err := c.Bandwidth()
	if err != nil {
		return State{}, err
	}
	power, err := c.Power()
	if err != nil {
		return State{}, err
	}
	ptt, err := c.PTT()
	if err != nil {
		return State{}, err
	}
	return State{
		FrequencyHz: frequency,
		Mode:        mode,
		BandwidthHz: bandwidth,
		PowerWatts:  power,
		PTT:         ptt,
	}, nil
}

// RigInfo returns the transceiver name and current state.
func (c *Control) RigInfo() (Info, error) {
	var xcvr string
	if err := c.call("rig.get_xcvr", nil, &xcvr); err != nil {
		return Info{}, err
	}
	state, err := c.State()
	if err != nil {
		return Info{}, err
	}
	return Info{Transceiver: xcvr, State: state}, nil
}
