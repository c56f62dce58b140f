// Package mcu manages a connection to the coil driver controller: the
// serial link, the data dictionary and typed wrappers around the H-bridge
// command set.
package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Yeuph/Coil-Driver/host/serial"
	"github.com/Yeuph/Coil-Driver/protocol"
)

// Bootstrap message IDs known before the dictionary is loaded
const (
	identifyResponseID = 0
	identifyID         = 1
)

// MCU is a connection to the controller board
type MCU struct {
	transport *protocol.HostTransport
	port      serial.Port

	dictionary     *Dictionary
	dictionaryData []byte

	// Message name -> ID, extracted from the dictionary format strings
	commandIDs  map[string]int
	responseIDs map[string]int

	connected bool
}

// Dictionary is the parsed controller data dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// BridgeState is a decoded hbridge_state response
type BridgeState struct {
	OID              uint8
	Forward          bool
	Reverse          bool
	Flyback          bool
	Blocked          bool
	LastDirForward   bool
	ForwardOnTicks   uint16
	ReverseOnTicks   uint16
	FlybackTicks     uint16
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{}
}

// Connect connects via serial port with the default configuration
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	m.port = port
	m.transport = protocol.NewHostTransport(port)
	m.connected = true

	// Give the board time to settle if it just powered on
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Close closes the connection
func (m *MCU) Close() error {
	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			return err
		}
	}
	m.connected = false
	return nil
}

// RetrieveDictionary fetches the complete dictionary in identify chunks
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return fmt.Errorf("not connected")
	}

	var dictBuffer bytes.Buffer
	offset := uint32(0)
	chunkSize := uint8(40)
	maxIterations := 1000

	for i := 0; i < maxIterations; i++ {
		chunk, err := m.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}

		if len(chunk) == 0 {
			break
		}

		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))

		if len(chunk) < int(chunkSize) {
			break
		}
	}

	m.dictionaryData = dictBuffer.Bytes()

	// The firmware sends the dictionary zlib-compressed
	if decompressed, err := tryDecompress(m.dictionaryData); err == nil {
		m.dictionaryData = decompressed
	}

	if err := m.parseDictionary(); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}

	return nil
}

// sendIdentify requests one dictionary chunk
func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := m.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify: %w", err)
	}

	resp, err := m.transport.ReceiveResponse(1 * time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to receive identify response: %w", err)
	}

	payload := resp.Payload
	cmdID, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response command ID: %w", err)
	}
	if cmdID != identifyResponseID {
		return nil, fmt.Errorf("unexpected response command ID: %d", cmdID)
	}

	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response offset: %w", err)
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}

	return protocol.DecodeVLQBytes(&payload)
}

// tryDecompress expands zlib-compressed dictionary data
func tryDecompress(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x78 {
		return nil, fmt.Errorf("not zlib compressed")
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// parseDictionary parses the JSON and indexes message names.
// Dictionary keys are full format strings ("update_hbridge oid=%c ...");
// the name is the first token.
func (m *MCU) parseDictionary() error {
	dict := &Dictionary{}
	if err := json.Unmarshal(m.dictionaryData, dict); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	m.dictionary = dict
	m.commandIDs = make(map[string]int, len(dict.Commands))
	for format, id := range dict.Commands {
		name := strings.Fields(format)[0]
		m.commandIDs[name] = id
	}
	m.responseIDs = make(map[string]int, len(dict.Responses))
	for format, id := range dict.Responses {
		name := strings.Fields(format)[0]
		m.responseIDs[name] = id
	}
	return nil
}

// GetDictionary returns the parsed dictionary
func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

// GetDictionaryRaw returns the raw dictionary bytes
func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

// IsConnected reports whether the board is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// SendCommand sends a command by dictionary name
func (m *MCU) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	if !m.connected {
		return fmt.Errorf("not connected")
	}
	if m.dictionary == nil {
		return fmt.Errorf("dictionary not loaded")
	}

	cmdID, ok := m.commandIDs[name]
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}
	return m.transport.SendCommand(uint16(cmdID), args)
}

// ConfigHBridge configures a bridge output on the controller
func (m *MCU) ConfigHBridge(oid uint8, hsFwd, hsRev, lsFwd, lsRev, cycleTicks uint32) error {
	return m.SendCommand("config_hbridge", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, hsFwd)
		protocol.EncodeVLQUint(output, hsRev)
		protocol.EncodeVLQUint(output, lsFwd)
		protocol.EncodeVLQUint(output, lsRev)
		protocol.EncodeVLQUint(output, cycleTicks)
	})
}

// SetRequests sets the drive request lines of a bridge
func (m *MCU) SetRequests(oid uint8, forward, reverse bool) error {
	return m.SendCommand("update_hbridge", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, boolArg(forward))
		protocol.EncodeVLQUint(output, boolArg(reverse))
	})
}

// QueueRequests schedules a request change at a controller clock value
func (m *MCU) QueueRequests(oid uint8, clock uint32, forward, reverse bool) error {
	return m.SendCommand("queue_hbridge", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, clock)
		protocol.EncodeVLQUint(output, boolArg(forward))
		protocol.EncodeVLQUint(output, boolArg(reverse))
	})
}

// SetBridgeReset asserts or releases a bridge's controller reset
func (m *MCU) SetBridgeReset(oid uint8, active bool) error {
	return m.SendCommand("hbridge_reset", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, boolArg(active))
	})
}

// EmergencyStop forces every bridge into the fail-safe state
func (m *MCU) EmergencyStop() error {
	return m.SendCommand("emergency_stop", nil)
}

// QueryBridgeState requests and decodes a bridge's diagnostic state
func (m *MCU) QueryBridgeState(oid uint8) (*BridgeState, error) {
	stateID, ok := m.responseIDs["hbridge_state"]
	if !ok {
		return nil, fmt.Errorf("controller does not report hbridge_state")
	}

	err := m.SendCommand("hbridge_query_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
	})
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := m.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return nil, fmt.Errorf("no hbridge_state response: %w", err)
		}

		payload := resp.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil || int(cmdID) != stateID {
			// Some other asynchronous response; keep waiting
			continue
		}

		return decodeBridgeState(payload)
	}
	return nil, fmt.Errorf("no hbridge_state response within deadline")
}

func decodeBridgeState(payload []byte) (*BridgeState, error) {
	fields := make([]uint32, 9)
	for i := range fields {
		v, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("truncated hbridge_state: %w", err)
		}
		fields[i] = v
	}

	return &BridgeState{
		OID:            uint8(fields[0]),
		Forward:        fields[1] != 0,
		Reverse:        fields[2] != 0,
		Flyback:        fields[3] != 0,
		Blocked:        fields[4] != 0,
		LastDirForward: fields[5] != 0,
		ForwardOnTicks: uint16(fields[6]),
		ReverseOnTicks: uint16(fields[7]),
		FlybackTicks:   uint16(fields[8]),
	}, nil
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// PrintDictionary prints a dictionary summary
func (m *MCU) PrintDictionary() {
	if m.dictionary == nil {
		fmt.Println("No dictionary loaded")
		return
	}

	fmt.Println("\n=== Controller Dictionary ===")
	fmt.Printf("Version: %s\n", m.dictionary.Version)
	fmt.Printf("Build: %s\n", m.dictionary.BuildVersions)

	fmt.Println("\nConfig:")
	for k, v := range m.dictionary.Config {
		fmt.Printf("  %s = %s\n", k, v)
	}

	fmt.Printf("\nCommands (%d):\n", len(m.dictionary.Commands))
	for name, id := range m.dictionary.Commands {
		fmt.Printf("  [%d] %s\n", id, name)
	}

	fmt.Printf("\nResponses (%d):\n", len(m.dictionary.Responses))
	for name, id := range m.dictionary.Responses {
		fmt.Printf("  [%d] %s\n", id, name)
	}

	if len(m.dictionary.Enumerations) > 0 {
		fmt.Printf("\nEnumerations (%d):\n", len(m.dictionary.Enumerations))
		for name, values := range m.dictionary.Enumerations {
			fmt.Printf("  %s: %d values\n", name, len(values))
		}
	}

	fmt.Println("=============================")
}
