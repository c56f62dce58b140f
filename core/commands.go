package core

import (
	"sync/atomic"

	"github.com/Yeuph/Coil-Driver/protocol"
)

// FirmwareState holds the global firmware state
type FirmwareState struct {
	configCRC  uint32 // atomic
	isShutdown uint32 // atomic bool
	moveCount  uint16
}

var globalState = &FirmwareState{
	moveCount: 16, // Command queue size reported to the host
}

// InitCoreCommands registers the base protocol commands.
// IMPORTANT: registration order matters for the bootstrap pair; the host
// only knows two message IDs before it has the dictionary:
//
//	identify_response = ID 0
//	identify = ID 1
func InitCoreCommands() {
	// Bootstrap messages - MUST be first
	RegisterResponse("identify_response", "offset=%u data=%*s")        // ID 0
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)  // ID 1

	// Other commands (order doesn't matter after bootstrap)
	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("config_reset", "", handleConfigReset)
	RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
	RegisterCommand("allocate_oids", "count=%c", handleAllocateOids)
	RegisterCommand("emergency_stop", "", handleEmergencyStop)
	RegisterCommand("reset", "", handleReset)

	// Response messages (controller -> host)
	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c move_count=%hu")
	RegisterResponse("shutdown", "reason=%*s")
}

// handleIdentify returns chunks of the data dictionary
func handleIdentify(data *[]byte) error {
	// Decode arguments: offset (uint32), count (uint8)
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	count8, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count := uint8(count8)

	chunk := GetGlobalDictionary().GetChunk(offset, count)

	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})

	return nil
}

// handleGetUptime reports the 64-bit uptime
func handleGetUptime(data *[]byte) error {
	uptime := GetUptime()
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

// handleGetClock reports the current 32-bit clock
func handleGetClock(data *[]byte) error {
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, GetTime())
	})
	return nil
}

// handleGetConfig reports the current configuration state
func handleGetConfig(data *[]byte) error {
	crc := atomic.LoadUint32(&globalState.configCRC)
	isConfig := uint32(0)
	if crc != 0 {
		isConfig = 1
	}
	isShutdown := uint32(0)
	if IsShutdown() {
		isShutdown = 1
	}

	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, isConfig)
		protocol.EncodeVLQUint(output, crc)
		protocol.EncodeVLQUint(output, isShutdown)
		protocol.EncodeVLQUint(output, uint32(globalState.moveCount))
	})
	return nil
}

// handleConfigReset clears the stored config CRC
func handleConfigReset(data *[]byte) error {
	atomic.StoreUint32(&globalState.configCRC, 0)
	return nil
}

// handleFinalizeConfig stores the host's config CRC
func handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&globalState.configCRC, crc)
	return nil
}

// handleAllocateOids allocates object IDs (currently a no-op)
func handleAllocateOids(data *[]byte) error {
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	_ = count // Currently unused
	return nil
}

// handleEmergencyStop forces every bridge into the fail-safe flyback state
// and stops all sampling activity.
func handleEmergencyStop(data *[]byte) error {
	TryShutdown("emergency stop")
	return nil
}

// TryShutdown triggers a firmware shutdown with a reason message.
// Used by safety mechanisms such as current sense range checking; every
// bridge drops to the fail-safe state (both high-side switches on).
func TryShutdown(reason string) {
	atomic.StoreUint32(&globalState.isShutdown, 1)
	recordEvent(EvtEmergencyStop, 0, 0, 0)

	ShutdownAllBridges()
	ShutdownAllCurrentSense()

	SendResponse("shutdown", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQBytes(output, []byte(reason))
	})
	DebugPrintln("[SHUTDOWN] " + reason)
	DumpEventRing()
}

// IsShutdown returns true if the firmware is in shutdown state
func IsShutdown() bool {
	return atomic.LoadUint32(&globalState.isShutdown) != 0
}

// ResetFirmwareState resets the firmware state for reconnection.
// Called when the transport detects a host reset or a restart was requested.
func ResetFirmwareState() {
	atomic.StoreUint32(&globalState.configCRC, 0)
	atomic.StoreUint32(&globalState.isShutdown, 0)
	// moveCount is not reset - it's a firmware constant
}

// SendResponse sends a response message using the global transport
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		// All responses are registered at init; a miss is a firmware bug
		panic("Response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

// Global transport for sending responses (set by main)
var globalTransport *protocol.Transport

// SetGlobalTransport sets the global transport for sending responses
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// Global reset handler (set by target-specific code)
var globalResetHandler func()

// resetPending is set when a reset command is received.
// The actual reset happens in the main loop after the ACK went out.
var resetPending uint32 // atomic bool

// SetResetHandler sets the platform-specific reset handler
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// handleReset triggers a hardware reset of the controller board.
// NOTE: deferred until after the ACK is sent to the host.
func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// CheckPendingReset checks if a reset was requested and executes it.
// Call from the main loop after all pending messages are sent.
func CheckPendingReset() {
	if atomic.LoadUint32(&resetPending) != 0 {
		if globalResetHandler != nil {
			globalResetHandler()
			// Should never return - the handler resets the MCU
		}
	}
}
