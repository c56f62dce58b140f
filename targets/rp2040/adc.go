//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"sync"

	"github.com/Yeuph/Coil-Driver/core"
)

// RPADCDriver implements core.ADCDriver using TinyGo's machine.ADC.
// Used by the current sense channels to watch the coil supply.
type RPADCDriver struct {
	mu       sync.Mutex
	channels map[core.ADCChannelID]*machine.ADC
}

func NewRPADCDriver() *RPADCDriver {
	machine.InitADC()
	return &RPADCDriver{
		channels: make(map[core.ADCChannelID]*machine.ADC),
	}
}

// adcChannel translates a pin enumeration index to a hardware channel.
// Indices 30-34 (ADC0-ADC3, ADC_TEMPERATURE) map to channels 0-4.
func adcChannel(ch core.ADCChannelID) core.ADCChannelID {
	if ch >= 30 && ch <= 34 {
		return ch - 30
	}
	return ch
}

func (d *RPADCDriver) ConfigureChannel(ch core.ADCChannelID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch = adcChannel(ch)

	// The internal temperature sensor (channel 4) is driven through the
	// ADC peripheral registers directly, nothing to configure here.
	if ch == 4 {
		return nil
	}
	if _, ok := d.channels[ch]; ok {
		return nil
	}

	var adc machine.ADC
	switch ch {
	case 0:
		adc = machine.ADC{Pin: machine.ADC0}
	case 1:
		adc = machine.ADC{Pin: machine.ADC1}
	case 2:
		adc = machine.ADC{Pin: machine.ADC2}
	case 3:
		adc = machine.ADC{Pin: machine.ADC3}
	default:
		return errors.New("unsupported ADC channel")
	}

	if err := adc.Configure(machine.ADCConfig{}); err != nil {
		return err
	}
	d.channels[ch] = &adc
	return nil
}

// ReadRaw samples a channel in the 16-bit range core code expects.
// machine.ADC.Get already scales the 12-bit conversion up to 16 bits;
// only the raw temperature read needs shifting here.
func (d *RPADCDriver) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	ch = adcChannel(ch)

	if ch == 4 {
		return core.ADCValue(rawInternalTemp()) << 4, nil
	}

	adc, ok := d.channels[ch]
	if !ok {
		if err := d.ConfigureChannel(ch); err != nil {
			return 0, err
		}
		adc = d.channels[ch]
	}
	return core.ADCValue(adc.Get()), nil
}

// rawInternalTemp reads the 12-bit raw value from the internal
// temperature sensor on ADC channel 4.
func rawInternalTemp() uint16 {
	if rp.ADC.CS.Get()&rp.ADC_CS_EN == 0 {
		machine.InitADC()
	}

	rp.ADC.CS.SetBits(rp.ADC_CS_TS_EN)

	const tempChannel = 4
	rp.ADC.CS.ReplaceBits(
		uint32(tempChannel)<<rp.ADC_CS_AINSEL_Pos,
		rp.ADC_CS_AINSEL_Msk,
		0,
	)

	rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	for !rp.ADC.CS.HasBits(rp.ADC_CS_READY) {
	}

	return uint16(rp.ADC.RESULT.Get())
}
