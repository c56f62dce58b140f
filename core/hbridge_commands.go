package core

import (
	"errors"

	"github.com/Yeuph/Coil-Driver/protocol"
)

// InitHBridgeCommands registers the H-bridge command set
func InitHBridgeCommands() {
	RegisterCommand("config_hbridge",
		"oid=%c hs_fwd_pin=%u hs_rev_pin=%u ls_fwd_pin=%u ls_rev_pin=%u cycle_ticks=%u",
		handleConfigHBridge)
	RegisterCommand("config_hbridge_input",
		"oid=%c fwd_pin=%u rev_pin=%u pull_up=%c",
		handleConfigHBridgeInput)
	RegisterCommand("update_hbridge",
		"oid=%c forward=%c reverse=%c",
		handleUpdateHBridge)
	RegisterCommand("queue_hbridge",
		"oid=%c clock=%u forward=%c reverse=%c",
		handleQueueHBridge)
	RegisterCommand("hbridge_reset",
		"oid=%c active=%c",
		handleHBridgeReset)
	RegisterCommand("hbridge_query_state",
		"oid=%c",
		handleHBridgeQueryState)

	RegisterResponse("hbridge_state",
		"oid=%c forward=%c reverse=%c flyback=%c blocked=%c last_dir=%c fwd_on=%u rev_on=%u flyback_ticks=%u")
}

// handleConfigHBridge creates a bridge output binding
func handleConfigHBridge(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	hsFwd, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	hsRev, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	lsFwd, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	lsRev, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	cycleTicks, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	pins := BridgePins{
		HSForward: GPIOPin(hsFwd),
		HSReverse: GPIOPin(hsRev),
		LSForward: GPIOPin(lsFwd),
		LSReverse: GPIOPin(lsRev),
	}
	_, err = NewBridgeOut(uint8(oid), pins, cycleTicks)
	return err
}

// handleUpdateHBridge sets the drive request lines of a bridge.
// Takes effect on the next control tick.
func handleUpdateHBridge(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	fwd, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	rev, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	b, ok := GetBridge(uint8(oid))
	if !ok {
		return errors.New("unknown bridge OID")
	}
	if IsShutdown() {
		return errors.New("controller is shut down")
	}
	b.SetRequests(fwd != 0, rev != 0)
	return nil
}

// handleQueueHBridge schedules a request line change at a clock value
func handleQueueHBridge(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	clock, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	fwd, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	rev, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	b, ok := GetBridge(uint8(oid))
	if !ok {
		return errors.New("unknown bridge OID")
	}
	if IsShutdown() {
		return errors.New("controller is shut down")
	}
	b.QueueRequests(clock, fwd != 0, rev != 0)
	return nil
}

// handleHBridgeReset asserts or releases the controller reset.
// While asserted the bridge is pinned in the fail-safe flyback state and
// ignores both request lines.
func handleHBridgeReset(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	active, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	b, ok := GetBridge(uint8(oid))
	if !ok {
		return errors.New("unknown bridge OID")
	}
	b.HB.Reset(active != 0)
	b.applyOutputs(b.HB.Outputs())
	return nil
}

// handleHBridgeQueryState reports the controller's diagnostic state
func handleHBridgeQueryState(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	b, ok := GetBridge(uint8(oid))
	if !ok {
		return errors.New("unknown bridge OID")
	}

	hb := b.HB
	SendResponse("hbridge_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(b.OID))
		protocol.EncodeVLQUint(output, uint32(boolByte(hb.DriveForward())))
		protocol.EncodeVLQUint(output, uint32(boolByte(hb.DriveReverse())))
		protocol.EncodeVLQUint(output, uint32(boolByte(hb.FlybackLatch())))
		protocol.EncodeVLQUint(output, uint32(boolByte(hb.DirectionBlocked())))
		protocol.EncodeVLQUint(output, uint32(boolByte(hb.LastDirectionForward())))
		protocol.EncodeVLQUint(output, uint32(hb.ForwardOnTicks()))
		protocol.EncodeVLQUint(output, uint32(hb.ReverseOnTicks()))
		protocol.EncodeVLQUint(output, uint32(hb.FlybackTicks()))
	})
	return nil
}
