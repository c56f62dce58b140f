// H-bridge flyback controller
// Converts two drive-request lines into four switch enables while tracking
// stored coil energy, forcing a flyback interval on release and refusing a
// direction reversal until the previous direction has discharged.
package core

// DischargeFloor is the on-counter level at which discharge is considered
// complete. The original hardware drains to <=1 rather than 0; keep it.
const DischargeFloor = 1

// MinDriveTicks is the shortest drive request for which energy accounting is
// exact. Shorter pulses are still safe (the controller falls back to flyback
// within one tick) but the on-counter may read low by the latch activation
// delay. Recommended minimum in practice is 12 ticks.
const MinDriveTicks = 3

// Outputs are the four switch enables of the bridge. Both high-side switches
// on together is the flyback discharge path and the fail-safe default.
type Outputs struct {
	HSForward bool // high-side, forward leg
	HSReverse bool // high-side, reverse leg
	LSForward bool // low-side, forward leg
	LSReverse bool // low-side, reverse leg
}

// latch update decided in phase A, applied in phase B
type latchOp uint8

const (
	latchHold latchOp = iota
	latchForward
	latchReverse
	latchClear
)

// HBridge is one controller instance. All state is plain scalars; a zero
// value is NOT usable because the flyback latch must start true; use
// NewHBridge.
//
// A tick runs in two phases mirroring the dual-clock-edge update of the
// original hardware: phase A (edge tracking and energy counters) reads the
// drive latches as left by the previous tick, phase B then applies the latch
// update phase A decided. Outputs are recomputed after phase B.
type HBridge struct {
	// drive latches (phase B registers)
	forward bool
	reverse bool

	// flyback latch; true whenever neither drive latch is set
	flyback bool

	// energy proxies, in ticks
	fwdOn   uint16
	revOn   uint16
	fbTicks uint16

	// direction most recently successfully driven (never set on a block)
	lastForward bool

	inFlyback bool
	blocked   bool
	edgeSeen  bool

	pending latchOp

	resetActive bool
}

// NewHBridge returns a controller in the fail-safe state: flyback latch set,
// everything else cleared.
func NewHBridge() *HBridge {
	return &HBridge{flyback: true}
}

// Reset asserts or releases the asynchronous reset. While asserted the
// controller holds the fail-safe state and Tick is a no-op apart from
// returning the fail-safe outputs.
func (h *HBridge) Reset(active bool) {
	h.resetActive = active
	if active {
		h.failsafe()
	}
}

// ResetActive reports whether reset is currently asserted.
func (h *HBridge) ResetActive() bool {
	return h.resetActive
}

func (h *HBridge) failsafe() {
	reset := h.resetActive
	*h = HBridge{flyback: true, resetActive: reset}
}

// Tick advances the controller one logical cycle and returns the switch
// outputs. forward and reverse must not both be true; if they are, forward
// wins (degraded but safe, see the energy counter ordering).
func (h *HBridge) Tick(forward, reverse bool) Outputs {
	if h.resetActive {
		h.failsafe()
		return h.Outputs()
	}
	h.phaseA(forward, reverse)
	h.phaseB()
	return h.Outputs()
}

// phaseA runs the edge/mode tracker and the energy counters against the
// previous tick's drive latches.
func (h *HBridge) phaseA(fwd, rev bool) {
	h.pending = latchHold

	if fwd || rev {
		// edgeSeen suppresses re-triggering while the request is held.
		// It is deliberately NOT set on a blocked attempt, so a held
		// request is re-evaluated every tick and succeeds on its own
		// once discharge catches up.
		if !h.edgeSeen {
			dirForward := fwd // forward checked first: forward priority
			if dirForward != h.lastForward && h.inFlyback {
				if h.owed() > h.fbTicks {
					// reversal refused; flyback keeps counting below
					if !h.blocked {
						recordEvent(EvtBlock, boolByte(dirForward), uint32(h.owed()), uint32(h.fbTicks))
					}
					h.blocked = true
				} else {
					h.beginDrive(dirForward)
				}
			} else {
				h.beginDrive(dirForward)
			}
		}
	} else {
		h.edgeSeen = false
		h.blocked = false
		switch {
		case h.forward || h.reverse:
			h.beginFlyback()
		case !h.flyback:
			// a request shorter than the latch activation delay can
			// drop the flyback latch without ever raising a drive
			// latch; force it back
			h.flyback = true
			recordEvent(EvtCleanup, 0, 0, 0)
		}
	}

	h.countEnergy(fwd, rev)
}

// phaseB applies the latch update decided in phase A. Runs a half-tick after
// phase A in the original hardware; here it is the second sub-step of Tick.
func (h *HBridge) phaseB() {
	switch h.pending {
	case latchForward:
		h.forward, h.reverse = true, false
	case latchReverse:
		h.forward, h.reverse = false, true
	case latchClear:
		h.forward, h.reverse = false, false
	}
	h.pending = latchHold
}

// beginDrive starts a drive cycle in the given direction. The opposite
// on-counter is zeroed so no stale energy carries across directions.
func (h *HBridge) beginDrive(forward bool) {
	h.flyback = false
	h.inFlyback = false
	h.blocked = false
	h.fbTicks = 0
	if forward {
		h.revOn = 0
		h.pending = latchForward
	} else {
		h.fwdOn = 0
		h.pending = latchReverse
	}
	h.lastForward = forward
	h.edgeSeen = true
	recordEvent(EvtDriveStart, boolByte(forward), uint32(h.fwdOn), uint32(h.revOn))
}

// beginFlyback opens both drive latches and starts the mandatory discharge
// interval.
func (h *HBridge) beginFlyback() {
	h.flyback = true
	h.inFlyback = true
	h.fbTicks = 0
	h.pending = latchClear
	recordEvent(EvtFlybackStart, boolByte(h.lastForward), uint32(h.owed()), 0)
}

// countEnergy advances the saturating counters. Only one drive branch can
// fire per tick; forward is checked first so a contract violation (both
// requests high) degrades to forward priority rather than double counting.
func (h *HBridge) countEnergy(fwd, rev bool) {
	switch {
	case h.forward && fwd:
		h.fwdOn = satAdd16(h.fwdOn)
	case h.reverse && rev:
		h.revOn = satAdd16(h.revOn)
	}

	if h.flyback && h.inFlyback && !h.forward && !h.reverse {
		h.fbTicks = satAdd16(h.fbTicks)
		if h.lastForward {
			h.fwdOn = satSub16(h.fwdOn)
		} else {
			h.revOn = satSub16(h.revOn)
		}
		if h.owed() <= DischargeFloor {
			// sole path by which a pending blocked reversal becomes
			// permitted on a later tick
			h.blocked = false
			h.inFlyback = false
			h.fwdOn = 0
			h.revOn = 0
			h.fbTicks = 0
			recordEvent(EvtDischargeDone, boolByte(h.lastForward), 0, 0)
		}
	}
}

// owed returns the on-counter of the last successfully driven direction.
func (h *HBridge) owed() uint16 {
	if h.lastForward {
		return h.fwdOn
	}
	return h.revOn
}

// Outputs computes the switch enables from the current latches. Pure
// combinational: no state of its own.
func (h *HBridge) Outputs() Outputs {
	return Outputs{
		HSForward: h.forward || h.flyback,
		HSReverse: h.reverse || h.flyback,
		LSForward: h.forward,
		LSReverse: h.reverse,
	}
}

// Diagnostics. Read-only; not control inputs.

// DriveForward reports whether the forward drive latch is set.
func (h *HBridge) DriveForward() bool { return h.forward }

// DriveReverse reports whether the reverse drive latch is set.
func (h *HBridge) DriveReverse() bool { return h.reverse }

// FlybackLatch reports whether the flyback latch is set.
func (h *HBridge) FlybackLatch() bool { return h.flyback }

// LastDirectionForward reports the direction most recently successfully
// driven. Blocked attempts never update it.
func (h *HBridge) LastDirectionForward() bool { return h.lastForward }

// ForwardOnTicks returns the accumulated forward on-time.
func (h *HBridge) ForwardOnTicks() uint16 { return h.fwdOn }

// ReverseOnTicks returns the accumulated reverse on-time.
func (h *HBridge) ReverseOnTicks() uint16 { return h.revOn }

// FlybackTicks returns the ticks spent discharging since flyback began.
func (h *HBridge) FlybackTicks() uint16 { return h.fbTicks }

// InFlybackMode reports whether a mandatory discharge window is active.
func (h *HBridge) InFlybackMode() bool { return h.inFlyback }

// DirectionBlocked reports whether an opposite-direction request is
// currently being refused.
func (h *HBridge) DirectionBlocked() bool { return h.blocked }

func satAdd16(v uint16) uint16 {
	if v == 0xFFFF {
		return v
	}
	return v + 1
}

func satSub16(v uint16) uint16 {
	if v == 0 {
		return 0
	}
	return v - 1
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
