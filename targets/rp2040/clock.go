//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"github.com/Yeuph/Coil-Driver/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // raw timer high word
	timerTIMERAWL = timerBase + 0x0C // raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// The hardware timer counts microseconds. The firmware clock runs at
// core.TimerFreq, so hardware reads are scaled up. The scaling holds up
// across uint32 wraparound since multiplication is consistent mod 2^32.
const ticksPerMicrosecond = core.TimerFreq / 1000000

// InitClock registers the clock constants for the data dictionary.
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	core.RegisterConstant("CLOCK_FREQ", uint32(core.TimerFreq))
}

// GetHardwareTime reads the low 32 bits of the microsecond counter and
// scales it to firmware ticks.
func GetHardwareTime() uint32 {
	return timerRAWL.Get() * ticksPerMicrosecond
}

// GetHardwareUptime reads the full 64-bit microsecond counter.
func GetHardwareUptime() uint64 {
	// Read high, low, high again to detect rollover during the read.
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return ((uint64(high1) << 32) | uint64(low)) * ticksPerMicrosecond
		}
	}
}

// UpdateSystemTime pushes the hardware time into the core timer. Called
// from the main loop.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
