package core

import (
	"errors"

	"github.com/Yeuph/Coil-Driver/protocol"
)

// handleConfigHBridgeInput attaches two sampled input pins to a bridge.
// Once attached, the control tick reads the drive requests from the pins
// instead of the host-commanded request lines.
//
// Format: "config_hbridge_input oid=%c fwd_pin=%u rev_pin=%u pull_up=%c"
func handleConfigHBridgeInput(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	fwdPin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	revPin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	pullUp, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	b, ok := GetBridge(uint8(oid))
	if !ok {
		return errors.New("unknown bridge OID")
	}

	gpio := MustGPIO()
	for _, pin := range []GPIOPin{GPIOPin(fwdPin), GPIOPin(revPin)} {
		if pullUp != 0 {
			err = gpio.ConfigureInputPullUp(pin)
		} else {
			err = gpio.ConfigureInputPullDown(pin)
		}
		if err != nil {
			return err
		}
	}

	b.SetRequestInputs(GPIOPin(fwdPin), GPIOPin(revPin))
	return nil
}
