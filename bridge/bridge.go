// Package bridge serves the rigctld text protocol to hamlib clients
// (WSJT-X, JTDX, fldigi) and translates each command into at most one
// gateway operation.
package bridge

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	hamlib "github.com/ftl/rigproxy/pkg/client"
	"github.com/ftl/rigproxy/pkg/protocol"
	"go.uber.org/zap"

	"github.com/g90sdr/rigbridge/rig"
)

// Rig is the gateway surface the bridge consumes.
type Rig interface {
	Frequency() (int, error)
	SetFrequency(hz int) error
	Mode() (rig.Mode, error)
	SetMode(mode rig.Mode) error
	PTT() (bool, error)
	SetPTT(on bool) error
	Disconnect()
}

// Options tune the bridge. Zero values select the defaults.
type Options struct {
	// PTTTimeout is the ceiling after which an open PTT session is
	// forcibly released.
	PTTTimeout time.Duration
	// PTTTick is the watchdog cadence.
	PTTTick time.Duration
	// Trace logs every request and reply.
	Trace bool
}

const workerJoinTimeout = 2 * time.Second

// Listen binds localAddress and starts serving rigctld clients against r.
// ownsRig marks whether this bridge is responsible for disconnecting the
// gateway on Close; a gateway shared with other consumers must be passed
// with ownsRig false so it is not torn down twice. Closing done stops the
// bridge.
func Listen(localAddress string, r Rig, ownsRig bool, done <-chan struct{}, opts Options, log *zap.Logger) (*Bridge, error) {
	if log == nil {
		log = zap.NewNop()
	}
	listener, err := net.Listen("tcp", localAddress)
	if err != nil {
		return nil, fmt.Errorf("cannot open local port %s: %w", localAddress, err)
	}

	result := &Bridge{
		listener: listener,
		rig:      r,
		ownsRig:  ownsRig,
		ptt:      newPTTGuard(r, opts.PTTTimeout, log),
		closed:   make(chan struct{}),
		trace:    opts.Trace,
		log:      log,
	}

	go result.run()
	go result.ptt.watch(result.closed, opts.PTTTick)
	go func() {
		select {
		case <-done:
			result.Close()
		case <-result.closed:
		}
	}()

	log.Info("rigctld bridge listening", zap.String("address", listener.Addr().String()))
	return result, nil
}

type Bridge struct {
	listener net.Listener
	rig      Rig
	ownsRig  bool
	ptt      *pttGuard
	closed   chan struct{}
	trace    bool
	log      *zap.Logger

	workers   sync.WaitGroup
	closeOnce sync.Once
}

// Addr returns the bound listener address.
func (b *Bridge) Addr() net.Addr {
	return b.listener.Addr()
}

func (b *Bridge) run() {
	for {
		c, err := b.listener.Accept()
		if err != nil {
			select {
			case <-b.closed:
			default:
				b.log.Error("accept failed", zap.Error(err))
				go b.Close()
			}
			return
		}

		conn := &inboundConnection{
			conn:   c,
			rig:    b.rig,
			ptt:    b.ptt,
			closed: make(chan struct{}),
			trace:  b.trace,
			log:    b.log.With(zap.String("client", c.RemoteAddr().String())),
		}
		conn.log.Info("client connected")

		b.workers.Add(1)
		go func() {
			defer b.workers.Done()
			conn.run()
		}()
		go func() {
			select {
			case <-b.closed:
				c.Close()
			case <-conn.closed:
				c.Close()
			}
		}()
	}
}

// Close shuts the bridge down: stop accepting, unblock and join the
// connection workers, force PTT off, and release the gateway if this
// bridge owns it. Close is idempotent.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
		b.listener.Close()
		if !waitTimeout(&b.workers, workerJoinTimeout) {
			b.log.Warn("connection workers did not finish in time")
		}
		// The one thing that must not survive a shutdown is a keyed
		// transmitter, whatever state the workers left behind.
		b.ptt.ForceOff()
		if b.ownsRig {
			b.rig.Disconnect()
		}
		b.log.Info("rigctld bridge stopped")
	})
}

// Wait blocks until the bridge is closed.
func (b *Bridge) Wait() {
	<-b.closed
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

type inboundConnection struct {
	conn   net.Conn
	rig    Rig
	ptt    *pttGuard
	closed chan struct{}
	trace  bool
	log    *zap.Logger
}

// shortCommands maps the hamlib single-letter commands to their long
// names. Dispatch happens per input line, so a command with fewer
// arguments than hamlib allows still gets an immediate reply.
var shortCommands = map[byte]string{
	'f': "get_freq",
	'F': "set_freq",
	'm': "get_mode",
	'M': "set_mode",
	't': "get_ptt",
	'T': "set_ptt",
	'v': "get_vfo",
	'V': "set_vfo",
	's': "get_split_vfo",
	'S': "set_split_vfo",
	'q': "quit",
	'Q': "quit",
}

// parseCommandLine splits one input line into the long command name and
// its arguments. Long commands arrive with a leading backslash.
func parseCommandLine(line string) (string, []string) {
	fields := strings.Fields(line)
	head := fields[0]
	args := fields[1:]
	if strings.HasPrefix(head, "\\") {
		return strings.ToLower(strings.TrimPrefix(head, "\\")), args
	}
	if len(head) == 1 {
		if name, ok := shortCommands[head[0]]; ok {
			return name, args
		}
	}
	return strings.ToLower(head), args
}

func (c *inboundConnection) run() {
	defer c.Close()
	defer c.conn.Close()
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if c.trace {
			c.log.Info("request", zap.String("request", line))
		}

		name, args := parseCommandLine(line)
		resp, quit, err := c.handleCommand(name, args)
		if err != nil {
			// Gateway failures become the generic protocol failure
			// reply; no internal detail crosses the wire.
			c.log.Warn("request failed", zap.String("request", line), zap.Error(err))
			resp = protocol.Response{Command: protocol.CommandKey(name), Result: "-1"}
		}

		response := resp.Format()
		if c.trace {
			c.log.Info("reply", zap.String("response", response))
		}
		fmt.Fprintln(c.conn, response)

		if quit {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-c.closed:
		default:
			c.log.Info("connection closed", zap.Error(err))
		}
		return
	}
	c.log.Info("client disconnected")
}

func (c *inboundConnection) handleCommand(name string, args []string) (protocol.Response, bool, error) {
	key := protocol.CommandKey(name)
	switch name {
	case "chk_vfo":
		return protocol.ChkVFOResponse, false, nil

	case "dump_state":
		return dumpStateResponse, false, nil

	case "get_powerstat":
		return protocol.Response{
			Command: key,
			Data:    []string{"1"},
			Keys:    []string{"Power Status"},
			Result:  "0",
		}, false, nil

	case "get_freq":
		hz, err := c.rig.Frequency()
		if err != nil {
			return protocol.NoResponse, false, fmt.Errorf("get_freq: %w", err)
		}
		return protocol.GetFreqResponse(hz), false, nil

	case "set_freq":
		if len(args) < 1 {
			return protocol.NoResponse, false, fmt.Errorf("set_freq: no arguments")
		}
		// WSJT-X sends the frequency as a float, e.g. 14074055.000000.
		frequency, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return protocol.NoResponse, false, fmt.Errorf("set_freq: invalid frequency: %w", err)
		}
		if err := c.rig.SetFrequency(int(frequency)); err != nil {
			return protocol.NoResponse, false, fmt.Errorf("set_freq: %w", err)
		}
		return protocol.OKResponse(key), false, nil

	case "get_mode":
		mode, err := c.rig.Mode()
		if err != nil {
			return protocol.NoResponse, false, fmt.Errorf("get_mode: %w", err)
		}
		return protocol.GetModeResponse(string(toHamlibMode(mode)), 0), false, nil

	case "set_mode":
		// the passband argument is optional and ignored, the rig's
		// filters are selected through the gateway's bandwidth calls
		if len(args) < 1 {
			return protocol.NoResponse, false, fmt.Errorf("set_mode: no arguments")
		}
		mode := toRigMode(hamlib.Mode(strings.ToUpper(args[0])))
		if err := c.rig.SetMode(mode); err != nil {
			return protocol.NoResponse, false, fmt.Errorf("set_mode: %w", err)
		}
		return protocol.OKResponse(key), false, nil

	case "get_ptt":
		on, err := c.rig.PTT()
		if err != nil {
			return protocol.NoResponse, false, fmt.Errorf("get_ptt: %w", err)
		}
		return protocol.GetPTTResponse(on), false, nil

	case "set_ptt":
		if len(args) < 1 {
			return protocol.NoResponse, false, fmt.Errorf("set_ptt: no arguments")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return protocol.NoResponse, false, fmt.Errorf("set_ptt: invalid argument: %w", err)
		}
		if err := c.ptt.Set(v == 1); err != nil {
			return protocol.NoResponse, false, fmt.Errorf("set_ptt: %w", err)
		}
		return protocol.OKResponse(key), false, nil

	case "get_vfo":
		// single VFO radio
		return protocol.GetVFOResponse(string(hamlib.VFOA)), false, nil

	case "set_vfo":
		// accepted, ignored
		return protocol.OKResponse(key), false, nil

	case "get_split_vfo":
		return protocol.GetSplitVFOResponse(false, string(hamlib.VFOA)), false, nil

	case "set_split_vfo":
		// accepted, ignored
		return protocol.OKResponse(key), false, nil

	case "quit":
		return protocol.OKResponse(key), true, nil

	default:
		c.log.Warn("unknown request", zap.String("request", name))
		return protocol.Response{Command: key, Result: "-1"}, false, nil
	}
}

func (c *inboundConnection) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}
