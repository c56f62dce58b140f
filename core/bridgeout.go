// Bridge output binding
// Runs an HBridge controller from a periodic control-tick timer and drives
// its four switch enables through the GPIO HAL.
package core

import (
	"errors"
)

// BridgePins are the four output pins of one switch bank
type BridgePins struct {
	HSForward GPIOPin
	HSReverse GPIOPin
	LSForward GPIOPin
	LSReverse GPIOPin
}

// BridgeOut binds one HBridge instance to hardware
type BridgeOut struct {
	OID        uint8      // Object ID
	Pins       BridgePins // Switch enable output pins
	CycleTicks uint32     // Control tick period in timer ticks

	HB *HBridge

	// Request lines as last commanded by the host
	reqForward bool
	reqReverse bool

	// Clock-scheduled request change (queue_hbridge)
	queued     bool
	queueClock uint32
	queueFwd   bool
	queueRev   bool

	// Optional request input pins (config_hbridge_input)
	inputs bool
	fwdPin GPIOPin
	revPin GPIOPin

	stopped bool

	lastOut    Outputs
	outApplied bool

	// Control tick timer
	Timer Timer
}

// Global registry of bridge outputs
var bridges = make(map[uint8]*BridgeOut)

// NewBridgeOut configures the four output pins and starts the control tick.
// The pins come up in the fail-safe state (both high-side enables on).
func NewBridgeOut(oid uint8, pins BridgePins, cycleTicks uint32) (*BridgeOut, error) {
	if cycleTicks == 0 {
		return nil, errors.New("bridge cycle_ticks must be non-zero")
	}
	if _, exists := bridges[oid]; exists {
		return nil, errors.New("bridge OID already configured")
	}

	b := &BridgeOut{
		OID:        oid,
		Pins:       pins,
		CycleTicks: cycleTicks,
		HB:         NewHBridge(),
	}

	gpio := MustGPIO()
	for _, pin := range []GPIOPin{pins.HSForward, pins.HSReverse, pins.LSForward, pins.LSReverse} {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, err
		}
	}
	b.applyOutputs(b.HB.Outputs())

	b.Timer.Handler = bridgeTickEvent
	b.Timer.WakeTime = GetTime() + cycleTicks
	ScheduleTimer(&b.Timer)

	bridges[oid] = b
	return b, nil
}

// GetBridge returns a configured bridge by OID
func GetBridge(oid uint8) (*BridgeOut, bool) {
	b, ok := bridges[oid]
	return b, ok
}

// SetRequests updates the drive request lines, effective next control tick
func (b *BridgeOut) SetRequests(forward, reverse bool) {
	b.reqForward = forward
	b.reqReverse = reverse
	b.queued = false
}

// QueueRequests schedules a request line change at a clock value
func (b *BridgeOut) QueueRequests(clock uint32, forward, reverse bool) {
	b.queueClock = clock
	b.queueFwd = forward
	b.queueRev = reverse
	b.queued = true
}

// SetRequestInputs attaches two GPIO input pins that are sampled as the
// request lines on every control tick, overriding host-commanded requests.
func (b *BridgeOut) SetRequestInputs(fwdPin, revPin GPIOPin) {
	b.fwdPin = fwdPin
	b.revPin = revPin
	b.inputs = true
}

// bridgeTickEvent is the control tick handler: resolve the request lines,
// advance the controller one cycle and push any output change to the pins.
func bridgeTickEvent(t *Timer) uint8 {
	// Find the BridgeOut instance that owns this timer
	var b *BridgeOut
	for _, bPtr := range bridges {
		if bPtr != nil && &bPtr.Timer == t {
			b = bPtr
			break
		}
	}

	if b == nil || b.stopped {
		return SF_DONE
	}

	// Apply a queued request change once its clock is reached
	if b.queued && int32(GetTime()-b.queueClock) >= 0 {
		b.reqForward = b.queueFwd
		b.reqReverse = b.queueRev
		b.queued = false
	}

	fwd, rev := b.reqForward, b.reqReverse
	if b.inputs {
		gpio := MustGPIO()
		fwd = gpio.ReadPin(b.fwdPin)
		rev = gpio.ReadPin(b.revPin)
	}

	out := b.HB.Tick(fwd, rev)
	b.applyOutputs(out)

	t.WakeTime += b.CycleTicks
	return SF_RESCHEDULE
}

// applyOutputs writes the switch enables, break before make: enables going
// low are written before enables going high so no leg can momentarily short.
func (b *BridgeOut) applyOutputs(out Outputs) {
	if b.outApplied && out == b.lastOut {
		return
	}

	gpio := MustGPIO()
	pins := [4]GPIOPin{b.Pins.HSForward, b.Pins.HSReverse, b.Pins.LSForward, b.Pins.LSReverse}
	next := [4]bool{out.HSForward, out.HSReverse, out.LSForward, out.LSReverse}
	prev := [4]bool{b.lastOut.HSForward, b.lastOut.HSReverse, b.lastOut.LSForward, b.lastOut.LSReverse}

	for i := range pins {
		if !next[i] && (!b.outApplied || prev[i]) {
			_ = gpio.SetPin(pins[i], false)
		}
	}
	for i := range pins {
		if next[i] && (!b.outApplied || !prev[i]) {
			_ = gpio.SetPin(pins[i], true)
		}
	}

	b.lastOut = out
	b.outApplied = true
}

// ShutdownBridge forces one bridge into the fail-safe state and stops its
// control tick. The controller stays in reset until the host reconfigures.
func ShutdownBridge(b *BridgeOut) {
	b.HB.Reset(true)
	b.applyOutputs(b.HB.Outputs())
	b.stopped = true
	UnscheduleTimer(&b.Timer)
}

// ShutdownAllBridges forces every configured bridge into the fail-safe
// state. Called from the global shutdown handler.
func ShutdownAllBridges() {
	for _, b := range bridges {
		if b != nil {
			ShutdownBridge(b)
		}
	}
}
