// Current sense sampling
// Oversampled ADC sampling of the load current shunt with min/max range
// checking. A sustained range violation shuts every bridge down into the
// fail-safe flyback state.
package core

import (
	"errors"

	"github.com/Yeuph/Coil-Driver/protocol"
)

// CurrentSense is one sampled current measurement channel
type CurrentSense struct {
	OID     uint8
	Channel ADCChannelID
	Timer   Timer

	// Sampling schedule
	SampleTicks uint32 // Ticks between individual samples
	SampleCount uint8  // Samples accumulated per report
	RestTicks   uint32 // Ticks from first sample of one report to the next

	// Range checking
	MinValue        uint16
	MaxValue        uint16
	RangeCheckCount uint8 // Consecutive violations before shutdown (0 = immediate)

	accum        uint16 // Truncating sum, host scales by sample count
	sampleIdx    uint8
	invalidCount uint8

	reportPending bool // Set in timer context, consumed by CurrentSenseTask
	reportValue   uint16
	nextClock     uint32

	stopped bool
}

var currentSensors = make(map[uint8]*CurrentSense)

// GetCurrentSense returns a configured sensor by OID
func GetCurrentSense(oid uint8) (*CurrentSense, bool) {
	cs, ok := currentSensors[oid]
	return cs, ok
}

// InitCurrentSenseCommands registers the current sense command set
func InitCurrentSenseCommands() {
	RegisterCommand("config_current_sense", "oid=%c channel=%c",
		handleConfigCurrentSense)
	RegisterCommand("query_current_sense",
		"oid=%c clock=%u sample_ticks=%u sample_count=%c rest_ticks=%u min_value=%hu max_value=%hu range_check_count=%c",
		handleQueryCurrentSense)

	RegisterResponse("current_state", "oid=%c next_clock=%u value=%hu")
}

// handleConfigCurrentSense creates a current sense channel
func handleConfigCurrentSense(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	channel, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if _, exists := currentSensors[uint8(oid)]; exists {
		return errors.New("current sense OID already configured")
	}

	cs := &CurrentSense{
		OID:     uint8(oid),
		Channel: ADCChannelID(channel),
	}
	if err := MustADC().ConfigureChannel(cs.Channel); err != nil {
		return err
	}

	currentSensors[uint8(oid)] = cs
	return nil
}

// handleQueryCurrentSense starts (or restarts) periodic sampling
func handleQueryCurrentSense(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	clock, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	sampleTicks, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	sampleCount, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	restTicks, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	minValue, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	maxValue, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	rangeCheckCount, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	cs, ok := GetCurrentSense(uint8(oid))
	if !ok {
		return errors.New("unknown current sense OID")
	}

	UnscheduleTimer(&cs.Timer)

	cs.SampleTicks = sampleTicks
	cs.SampleCount = uint8(sampleCount)
	cs.RestTicks = restTicks
	cs.MinValue = uint16(minValue)
	cs.MaxValue = uint16(maxValue)
	cs.RangeCheckCount = uint8(rangeCheckCount)
	cs.accum = 0
	cs.sampleIdx = 0
	cs.invalidCount = 0
	cs.stopped = false

	if cs.SampleCount == 0 {
		// Sampling disabled
		return nil
	}

	cs.Timer.Handler = currentSenseEvent
	cs.Timer.WakeTime = clock
	ScheduleTimer(&cs.Timer)
	return nil
}

// currentSenseEvent accumulates one sample per invocation. After the final
// sample of a report window it range checks the sum and hands the value to
// the task loop for reporting.
func currentSenseEvent(t *Timer) uint8 {
	var cs *CurrentSense
	for _, c := range currentSensors {
		if c != nil && &c.Timer == t {
			cs = c
			break
		}
	}

	if cs == nil || cs.stopped {
		return SF_DONE
	}

	raw, err := MustADC().ReadRaw(cs.Channel)
	if err != nil {
		// Conversion failure, retry on the next sample slot
		t.WakeTime += cs.SampleTicks
		return SF_RESCHEDULE
	}
	cs.accum += uint16(raw)
	cs.sampleIdx++

	if cs.sampleIdx < cs.SampleCount {
		t.WakeTime += cs.SampleTicks
		return SF_RESCHEDULE
	}

	// Report window complete
	value := cs.accum
	cs.accum = 0
	cs.sampleIdx = 0

	if value < cs.MinValue || value > cs.MaxValue {
		cs.invalidCount++
		if cs.invalidCount >= cs.RangeCheckCount {
			recordEvent(EvtOvercurrent, 0, uint32(value), uint32(cs.OID))
			TryShutdown("current sense out of range")
			return SF_DONE
		}
	} else {
		cs.invalidCount = 0
	}

	// Advance to the start of the next window
	t.WakeTime += cs.RestTicks - uint32(cs.SampleCount-1)*cs.SampleTicks
	cs.reportValue = value
	cs.nextClock = t.WakeTime
	cs.reportPending = true
	return SF_RESCHEDULE
}

// CurrentSenseTask sends pending reports. Called from the main loop so the
// serial transmit never runs in timer context.
func CurrentSenseTask() {
	for _, cs := range currentSensors {
		if cs == nil || !cs.reportPending {
			continue
		}
		cs.reportPending = false
		oid, nextClock, value := cs.OID, cs.nextClock, cs.reportValue
		SendResponse("current_state", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(oid))
			protocol.EncodeVLQUint(output, nextClock)
			protocol.EncodeVLQUint(output, uint32(value))
		})
	}
}

// ShutdownAllCurrentSense stops all sampling timers
func ShutdownAllCurrentSense() {
	for _, cs := range currentSensors {
		if cs != nil {
			cs.stopped = true
			UnscheduleTimer(&cs.Timer)
		}
	}
}
