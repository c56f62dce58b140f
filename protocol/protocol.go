// Package protocol implements the framed serial wire protocol spoken
// between the coil driver firmware and its host. The framing, sequence
// handling and VLQ argument encoding follow Klipper's MCU protocol so
// standard host tooling can talk to the board.
package protocol

// Frame layout constants
const (
	MessageMax = 512 // Output buffer size, holds several frames

	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10 // High nibble of every sequence byte
	MessageSeqMask   = 0x0F
)
