package core

import (
	"testing"

	"github.com/Yeuph/Coil-Driver/protocol"
)

// MockADCDriver is a test implementation of ADCDriver
type MockADCDriver struct {
	value      ADCValue
	configured map[ADCChannelID]bool
	reads      int
}

func NewMockADCDriver(value ADCValue) *MockADCDriver {
	return &MockADCDriver{
		value:      value,
		configured: make(map[ADCChannelID]bool),
	}
}

func (m *MockADCDriver) ConfigureChannel(ch ADCChannelID) error {
	m.configured[ch] = true
	return nil
}

func (m *MockADCDriver) ReadRaw(ch ADCChannelID) (ADCValue, error) {
	m.reads++
	return m.value, nil
}

func setupCurrentSense(adcValue ADCValue) *MockADCDriver {
	resetBridges()
	currentSensors = make(map[uint8]*CurrentSense)
	globalRegistry = NewCommandRegistry()
	globalDictionary = NewDictionary(globalRegistry)
	InitCoreCommands()
	InitCurrentSenseCommands()
	ResetFirmwareState()

	mock := NewMockADCDriver(adcValue)
	SetADCDriver(mock)
	return mock
}

// queryArgs builds query_current_sense arguments
func queryArgs(oid uint8, clock, sampleTicks uint32, sampleCount uint8, restTicks uint32, minVal, maxVal uint16, rangeCount uint8) []byte {
	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, uint32(oid))
	protocol.EncodeVLQUint(output, clock)
	protocol.EncodeVLQUint(output, sampleTicks)
	protocol.EncodeVLQUint(output, uint32(sampleCount))
	protocol.EncodeVLQUint(output, restTicks)
	protocol.EncodeVLQUint(output, uint32(minVal))
	protocol.EncodeVLQUint(output, uint32(maxVal))
	protocol.EncodeVLQUint(output, uint32(rangeCount))
	return output.Result()
}

func TestCurrentSenseConfig(t *testing.T) {
	mock := setupCurrentSense(100)

	data := encodeArgs(1, 2) // oid=1 channel=2
	if err := handleConfigCurrentSense(&data); err != nil {
		t.Fatalf("config_current_sense failed: %v", err)
	}

	if !mock.configured[2] {
		t.Error("ADC channel not configured")
	}
	if _, ok := GetCurrentSense(1); !ok {
		t.Error("Sensor not registered under its OID")
	}

	data = encodeArgs(1, 2)
	if err := handleConfigCurrentSense(&data); err == nil {
		t.Error("Duplicate OID must be rejected")
	}
}

func TestCurrentSenseOversampling(t *testing.T) {
	setupCurrentSense(100)

	data := encodeArgs(1, 0)
	if err := handleConfigCurrentSense(&data); err != nil {
		t.Fatalf("config_current_sense failed: %v", err)
	}

	// 4 samples of 100 every 10 ticks, report window 100 ticks
	data = queryArgs(1, 100, 10, 4, 100, 0, 0xFFFF, 3)
	if err := handleQueryCurrentSense(&data); err != nil {
		t.Fatalf("query_current_sense failed: %v", err)
	}

	cs, _ := GetCurrentSense(1)

	SetTime(130)
	ProcessTimers()

	if !cs.reportPending {
		t.Fatal("Report must be pending after the final sample")
	}
	if cs.reportValue != 400 {
		t.Errorf("Expected accumulated value 400, got %d", cs.reportValue)
	}
	// Next window starts rest_ticks after the first sample
	if cs.nextClock != 200 {
		t.Errorf("Expected next window at clock 200, got %d", cs.nextClock)
	}

	// The task loop consumes the pending report
	CurrentSenseTask()
	if cs.reportPending {
		t.Error("CurrentSenseTask must clear the pending flag")
	}

	// Second window
	SetTime(230)
	ProcessTimers()
	if !cs.reportPending || cs.reportValue != 400 {
		t.Errorf("Second window: pending=%v value=%d", cs.reportPending, cs.reportValue)
	}
}

func TestCurrentSenseRangeViolationShutsDown(t *testing.T) {
	setupCurrentSense(2000)

	cfgData := encodeArgs(1, 0)
	if err := handleConfigCurrentSense(&cfgData); err != nil {
		t.Fatalf("config_current_sense failed: %v", err)
	}

	// A bridge must drop to fail-safe when the shutdown fires
	mock := MustGPIO().(*MockGPIODriver)
	b, err := NewBridgeOut(1, testPins, 100)
	if err != nil {
		t.Fatalf("NewBridgeOut failed: %v", err)
	}
	b.SetRequests(true, false)
	SetTime(100)
	ProcessTimers()
	mock.checkPins(t, testPins, true, false, true, false)

	// Window sum 2 * 2000 = 4000, limit 1000, first violation trips
	data := queryArgs(1, 150, 10, 2, 100, 500, 1000, 1)
	if err := handleQueryCurrentSense(&data); err != nil {
		t.Fatalf("query_current_sense failed: %v", err)
	}

	SetTime(160)
	ProcessTimers()

	if !IsShutdown() {
		t.Fatal("Range violation must shut the firmware down")
	}
	mock.checkPins(t, testPins, true, true, false, false)
	if !b.HB.ResetActive() {
		t.Error("Bridges must be held in reset after shutdown")
	}

	ResetFirmwareState()
}

func TestCurrentSenseToleratesTransientViolation(t *testing.T) {
	mockADC := setupCurrentSense(2000)

	data := encodeArgs(1, 0)
	if err := handleConfigCurrentSense(&data); err != nil {
		t.Fatalf("config_current_sense failed: %v", err)
	}

	// Three consecutive violations required
	data = queryArgs(1, 100, 10, 1, 50, 500, 1000, 3)
	if err := handleQueryCurrentSense(&data); err != nil {
		t.Fatalf("query_current_sense failed: %v", err)
	}

	cs, _ := GetCurrentSense(1)

	// Two bad windows
	SetTime(100)
	ProcessTimers()
	SetTime(150)
	ProcessTimers()

	if IsShutdown() {
		t.Fatal("Shutdown before the violation count was reached")
	}
	if cs.invalidCount != 2 {
		t.Errorf("Expected invalid count 2, got %d", cs.invalidCount)
	}

	// A good window clears the count
	mockADC.value = 700
	SetTime(200)
	ProcessTimers()
	if cs.invalidCount != 0 {
		t.Errorf("In-range window must reset the count, got %d", cs.invalidCount)
	}

	ResetFirmwareState()
}
