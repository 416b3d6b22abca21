package bridge

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPTTTimeout is the maximum duration a PTT session may stay
	// open before the watchdog forces the transmitter off.
	DefaultPTTTimeout = 3 * time.Minute

	// DefaultPTTTick is the watchdog cadence.
	DefaultPTTTick = time.Second
)

// pttGuard is the only path through which bridge connections key the
// transmitter. It tracks the single PTT session and shares one mutex
// between explicit releases and the watchdog's forced release, so the
// two can never race.
type pttGuard struct {
	rig     Rig
	timeout time.Duration
	log     *zap.Logger

	mu        sync.Mutex
	active    bool
	startedAt time.Time
}

func newPTTGuard(r Rig, timeout time.Duration, log *zap.Logger) *pttGuard {
	if timeout <= 0 {
		timeout = DefaultPTTTimeout
	}
	return &pttGuard{
		rig:     r,
		timeout: timeout,
		log:     log,
	}
}

// Set keys or unkeys the transmitter and tracks the session. When a set
// fails, a second best-effort forced release follows immediately: a
// stuck transmitter is the one failure that cannot be retried later.
func (g *pttGuard) Set(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if on {
		if err := g.rig.SetPTT(true); err != nil {
			g.forceOffLocked()
			return err
		}
		g.active = true
		g.startedAt = time.Now()
		return nil
	}

	if err := g.rig.SetPTT(false); err != nil {
		g.forceOffLocked()
		return err
	}
	if g.active {
		g.log.Info("PTT session closed", zap.Duration("txDuration", time.Since(g.startedAt)))
	}
	g.active = false
	return nil
}

// ForceOff unconditionally releases the transmitter and clears the
// session.
func (g *pttGuard) ForceOff() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forceOffLocked()
}

func (g *pttGuard) forceOffLocked() {
	g.active = false
	if err := g.rig.SetPTT(false); err != nil {
		g.log.Error("forced PTT release failed", zap.Error(err))
	}
}

// watch enforces the session ceiling. An automated client that forgets
// to release the key must never leave the transmitter keyed.
func (g *pttGuard) watch(closed <-chan struct{}, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultPTTTick
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-closed:
			return
		case <-t.C:
			g.mu.Lock()
			if g.active && time.Since(g.startedAt) > g.timeout {
				g.log.Warn("PTT timeout, forcing off",
					zap.Duration("txDuration", time.Since(g.startedAt)),
					zap.Duration("limit", g.timeout))
				g.forceOffLocked()
			}
			g.mu.Unlock()
		}
	}
}
