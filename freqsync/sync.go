// Package freqsync keeps the spectrum display and the radio tuned to the
// same frequency. It polls both sides at a fixed cadence, detects which
// side changed, and propagates with a deterministic conflict rule: the
// radio wins.
package freqsync

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/g90sdr/rigbridge/rig"
)

// Rig is the gateway surface the synchronizer consumes.
type Rig interface {
	Frequency() (int, error)
	SetFrequency(hz int) error
	Mode() (rig.Mode, error)
}

// Display is the spectrum display's remote control surface.
type Display interface {
	Frequency() (int, error)
	SetFrequency(hz int) error
	SetMode(mode string) error
}

const (
	// DefaultInterval is the pause between synchronization cycles.
	DefaultInterval = 500 * time.Millisecond

	errorBackoff = time.Second
	stopTimeout  = 2 * time.Second
)

// cursor holds the last observed values. Change direction is detected by
// comparing a fresh reading against it; a propagated value updates both
// frequency cursors so the echo of a push is not mistaken for a new
// change.
type cursor struct {
	rigFrequency     int
	displayFrequency int
	mode             rig.Mode
}

type Synchronizer struct {
	rig      Rig
	display  Display
	interval time.Duration
	log      *zap.Logger

	cur     cursor
	closed  chan struct{}
	stopped chan struct{}
}

// New creates a synchronizer between r and d. interval <= 0 selects the
// default cadence.
func New(r Rig, d Display, interval time.Duration, log *zap.Logger) *Synchronizer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		rig:      r,
		display:  d,
		interval: interval,
		log:      log,
		closed:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start runs one immediate cycle so both ends begin consistent, then
// enters the periodic loop. A failed initial cycle is logged, not fatal.
func (s *Synchronizer) Start() {
	if err := s.syncOnce(); err != nil {
		s.log.Warn("initial sync failed", zap.Error(err))
	}
	go s.run()
}

func (s *Synchronizer) run() {
	defer close(s.stopped)
	s.log.Info("frequency sync loop started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-s.closed:
			s.log.Info("frequency sync loop stopped")
			return
		case <-time.After(s.interval):
		}

		if err := s.syncOnce(); err != nil {
			// Transient by assumption; the loop itself never dies on a
			// failed cycle.
			s.log.Warn("sync cycle failed", zap.Error(err))
			select {
			case <-s.closed:
			case <-time.After(errorBackoff):
			}
		}
	}
}

// Stop ends the loop cooperatively and waits for it within a bounded
// timeout.
func (s *Synchronizer) Stop() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	select {
	case <-s.stopped:
	case <-time.After(stopTimeout):
		s.log.Warn("sync loop did not stop in time")
	}
}

// syncOnce performs one bidirectional synchronization cycle. A write
// failure aborts the remaining writes of the cycle and leaves the
// cursors stale, so the next cycle retries the same propagation.
func (s *Synchronizer) syncOnce() error {
	rigFrequency, err := s.rig.Frequency()
	if err != nil {
		return fmt.Errorf("cannot read rig frequency: %w", err)
	}
	rigMode, err := s.rig.Mode()
	if err != nil {
		return fmt.Errorf("cannot read rig mode: %w", err)
	}
	displayFrequency, err := s.display.Frequency()
	if err != nil {
		// The display may not be tuned yet. Substitute the last known
		// value, treating it as unchanged this cycle.
		s.log.Debug("cannot read display frequency", zap.Error(err))
		displayFrequency = s.cur.displayFrequency
	}

	rigChanged := rigFrequency != s.cur.rigFrequency
	displayChanged := displayFrequency != s.cur.displayFrequency
	modeChanged := rigMode != s.cur.mode

	switch {
	case rigChanged && displayChanged:
		// Both sides moved in the same cycle: the radio is authoritative.
		s.log.Info("conflicting changes, radio wins",
			zap.Int("rigFrequencyHz", rigFrequency),
			zap.Int("displayFrequencyHz", displayFrequency))
		if err := s.display.SetFrequency(rigFrequency); err != nil {
			return fmt.Errorf("cannot push frequency to display: %w", err)
		}
		s.cur.rigFrequency = rigFrequency
		s.cur.displayFrequency = rigFrequency
		s.log.Info("rig -> display", zap.Int("frequencyHz", rigFrequency))

	case rigChanged:
		if err := s.display.SetFrequency(rigFrequency); err != nil {
			return fmt.Errorf("cannot push frequency to display: %w", err)
		}
		s.cur.rigFrequency = rigFrequency
		s.cur.displayFrequency = rigFrequency
		s.log.Info("rig -> display", zap.Int("frequencyHz", rigFrequency))

	case displayChanged:
		if err := s.rig.SetFrequency(displayFrequency); err != nil {
			return fmt.Errorf("cannot push frequency to rig: %w", err)
		}
		s.cur.rigFrequency = displayFrequency
		s.cur.displayFrequency = displayFrequency
		s.log.Info("display -> rig", zap.Int("frequencyHz", displayFrequency))
	}

	// Mode goes one way only, radio to display.
	if modeChanged {
		if err := s.display.SetMode(string(rigMode)); err != nil {
			return fmt.Errorf("cannot push mode to display: %w", err)
		}
		s.cur.mode = rigMode
		s.log.Info("mode -> display", zap.String("mode", string(rigMode)))
	}

	return nil
}
