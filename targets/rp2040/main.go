//go:build rp2040

package main

import (
	"machine"
	"time"

	"github.com/Yeuph/Coil-Driver/core"
	"github.com/Yeuph/Coil-Driver/protocol"
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	messagesReceived uint32
	messagesSent     uint32
	msgErrors        uint32

	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Disable the watchdog on boot so a previous watchdog reset does not
	// carry over into this run.
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitClock()
	core.TimerInit()

	core.InitCoreCommands()
	core.InitHBridgeCommands()
	core.InitCurrentSenseCommands()

	// Pin enumeration must be registered before BuildDictionary.
	registerRP2040Pins()

	core.SetGPIODriver(NewRPGPIODriver())
	core.SetADCDriver(NewRPADCDriver())

	core.GetGlobalDictionary().BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, handleCommand)
	transport.SetResetCallback(func() {
		// Host reconnected: drop in-flight data and clear firmware state.
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
	})
	// ACKs must reach the host before the response that follows them.
	transport.SetFlushCallback(func() {
		writeUSB()
	})
	core.SetGlobalTransport(transport)

	// A watchdog reset handles USB re-enumeration more reliably than ARM
	// SYSRESETREQ on the RP2040.
	core.SetResetHandler(func() {
		err = machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
		if err != nil {
			return
		}
		err = machine.Watchdog.Start()
		if err != nil {
			return
		}
		for {
			time.Sleep(1 * time.Millisecond)
		}
	})

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgErrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				originalLen := len(data)
				inputBuf := protocol.NewSliceInputBuffer(data)

				transport.Receive(inputBuf)
				messagesReceived++

				consumed := originalLen - inputBuf.Available()
				if consumed > 0 {
					inputBuffer.Pop(consumed)
				}
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
				messagesSent++
			}

			// Reset only after all pending output has been sent.
			core.CheckPendingReset()

			core.ProcessTimers()

			// Send any current sense reports queued by timer handlers.
			core.CurrentSenseTask()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop continuously drains USB into the input FIFO.
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgErrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgErrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			if usbWasDisconnected {
				// Fresh connection: reset everything.
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				core.ResetFirmwareState()
				messagesReceived = 0
				messagesSent = 0
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{data}) == 0 {
				msgErrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func handleCommand(cmdID uint16, data *[]byte) error {
	return core.DispatchCommand(cmdID, data)
}

// registerRP2040Pins registers the combined pin enumeration: GPIO pins at
// indices 0-29, ADC channels at 30-34.
func registerRP2040Pins() {
	pinNames := make([]string, 35)
	for i := 0; i < 30; i++ {
		pinNames[i] = "gpio" + itoa(i)
	}
	pinNames[30] = "ADC0"
	pinNames[31] = "ADC1"
	pinNames[32] = "ADC2"
	pinNames[33] = "ADC3"
	pinNames[34] = "ADC_TEMPERATURE"
	core.RegisterEnumeration("pin", pinNames)
}

// itoa avoids strconv on the embedded target.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [12]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

// writeUSB flushes the output buffer, tolerating partial writes and
// detecting disconnects.
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				// Host is gone; drop stale data rather than retrying it
				// against a dead link.
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
