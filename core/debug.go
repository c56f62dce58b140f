package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// ControllerEvent captures a controller transition for post-mortem analysis
type ControllerEvent struct {
	EventType uint8  // Event type code
	Direction uint8  // 1=forward, 0=reverse (where it applies)
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtDriveStart    = 1 // drive latch activation decided
	EvtBlock         = 2 // reversal refused by the direction guard
	EvtFlybackStart  = 3 // discharge window opened
	EvtDischargeDone = 4 // on-counter drained to the floor
	EvtCleanup       = 5 // short-pulse flyback cleanup
	EvtOvercurrent   = 6 // current sense window violation
	EvtEmergencyStop = 7 // host emergency stop or internal shutdown
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	// Disabled by default; the tick path must stay cheap
	debugEnabled bool = false

	// Controller event ring buffer (non-blocking, for post-mortem)
	eventRing     [EventRingSize]ControllerEvent
	eventRingHead uint8
	eventsEnabled bool = true

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function.
// Platforms can redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetEventsEnabled enables or disables event capture (useful in benchmarks)
func SetEventsEnabled(enabled bool) {
	eventsEnabled = enabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if the channel is full (drops the message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
			// Channel full, drop message
		}
	}
}

// recordEvent captures a controller event in the ring buffer.
// Always non-blocking and cheap enough for the tick path.
func recordEvent(eventType, direction uint8, value1, value2 uint32) {
	if !eventsEnabled {
		return
	}
	idx := eventRingHead
	eventRing[idx] = ControllerEvent{
		EventType: eventType,
		Direction: direction,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// DumpEventRing outputs the controller event ring (call on shutdown/error)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENTS] === Controller Event Dump ===")

	// Read from oldest to newest
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		idx := (start + i) % EventRingSize
		evt := &eventRing[idx]
		if evt.EventType == 0 {
			continue // Empty slot
		}

		var name string
		switch evt.EventType {
		case EvtDriveStart:
			name = "DRIVE_START"
		case EvtBlock:
			name = "DIR_BLOCK"
		case EvtFlybackStart:
			name = "FLYBACK"
		case EvtDischargeDone:
			name = "DISCHARGED"
		case EvtCleanup:
			name = "CLEANUP"
		case EvtOvercurrent:
			name = "OVERCURRENT"
		case EvtEmergencyStop:
			name = "ESTOP"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[EVENTS] " + name +
			" dir=" + itoa(int(evt.Direction)) +
			" clock=" + itoa(int(evt.Clock)) +
			" v1=" + itoa(int(evt.Value1)) +
			" v2=" + itoa(int(evt.Value2)))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	for i := range eventRing {
		eventRing[i] = ControllerEvent{}
	}
	eventRingHead = 0
}
