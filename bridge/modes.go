package bridge

import (
	hamlib "github.com/ftl/rigproxy/pkg/client"

	"github.com/g90sdr/rigbridge/rig"
)

// The two directions are separate explicit maps because the mapping is
// not invertible: the packet modes collapse onto USB/LSB.

var hamlibToRigMode = map[hamlib.Mode]rig.Mode{
	hamlib.ModeUSB:    rig.ModeUSB,
	hamlib.ModeLSB:    rig.ModeLSB,
	hamlib.ModeCW:     rig.ModeCW,
	hamlib.ModeCWR:    rig.ModeCWR,
	hamlib.ModeAM:     rig.ModeAM,
	hamlib.ModeFM:     rig.ModeFM,
	hamlib.ModeRTTY:   rig.ModeRTTY,
	hamlib.ModeRTTYR:  rig.ModeRTTYR,
	hamlib.ModePKTUSB: rig.ModeUSB,
	hamlib.ModePKTLSB: rig.ModeLSB,
}

var rigToHamlibMode = map[rig.Mode]hamlib.Mode{
	rig.ModeUSB:   hamlib.ModeUSB,
	rig.ModeLSB:   hamlib.ModeLSB,
	rig.ModeCW:    hamlib.ModeCW,
	rig.ModeCWR:   hamlib.ModeCWR,
	rig.ModeAM:    hamlib.ModeAM,
	rig.ModeFM:    hamlib.ModeFM,
	rig.ModeRTTY:  hamlib.ModeRTTY,
	rig.ModeRTTYR: hamlib.ModeRTTYR,
}

func toRigMode(mode hamlib.Mode) rig.Mode {
	if m, ok := hamlibToRigMode[mode]; ok {
		return m
	}
	return rig.ModeUSB
}

func toHamlibMode(mode rig.Mode) hamlib.Mode {
	if m, ok := rigToHamlibMode[mode]; ok {
		return m
	}
	return hamlib.ModeUSB
}
