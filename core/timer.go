package core

// Timer frequency of the controller clock
const (
	TimerFreq = 12000000 // 12MHz default timer frequency
)

var bootTime uint64 // Time at boot for uptime calculation

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// GetUptime returns 64-bit uptime in timer ticks
func GetUptime() uint64 {
	// With hardware attached this would read a 64-bit counter; on the
	// host side the 32-bit tick value is all there is.
	return uint64(GetTime())
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return (us * TimerFreq) / 1000000
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return (ticks * 1000000) / TimerFreq
}

// TimerInit initializes the system timer
func TimerInit() {
	bootTime = uint64(GetTime())
}

// ProcessTimers runs all timers that are due at the current time
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
