// pkg/vpw/factory.go
// Builders for every outbound request frame. Each constructor returns a
// fully-formed Message ready to hand to the device.

package vpw

import "fmt"

// Factory builds outbound PCM request frames.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// readBlock builds the generic mode 0x3C single-block query.
func (f *Factory) readBlock(id BlockId) *Message {
	return New([]byte{PriorityPhysical, AddrPcm, AddrTool, ModeReadBlock, byte(id)})
}

// VinRequest builds the query for VIN block i (1..3).
func (f *Factory) VinRequest(i int) (*Message, error) {
	if i < 1 || i > 3 {
		return nil, fmt.Errorf("VIN block index out of range: %d", i)
	}
	return f.readBlock(BlockVin1 + BlockId(i-1)), nil
}

// SerialRequest builds the query for serial number block i (1..3).
func (f *Factory) SerialRequest(i int) (*Message, error) {
	if i < 1 || i > 3 {
		return nil, fmt.Errorf("serial block index out of range: %d", i)
	}
	return f.readBlock(BlockSerial1 + BlockId(i-1)), nil
}

func (f *Factory) BccRequest() *Message {
	return f.readBlock(BlockBCC)
}

func (f *Factory) MecRequest() *Message {
	return f.readBlock(BlockMEC)
}

func (f *Factory) OsIDRequest() *Message {
	return f.readBlock(BlockOperatingSystemID)
}

func (f *Factory) HardwareIDRequest() *Message {
	return f.readBlock(BlockHardwareID)
}

func (f *Factory) CalIDRequest() *Message {
	return f.readBlock(BlockCalibrationID)
}

// SeedRequest asks the PCM for the 16-bit unlock seed.
func (f *Factory) SeedRequest() *Message {
	return New([]byte{PriorityPhysical, AddrPcm, AddrTool, ModeSeedKey, 0x01})
}

// UnlockRequest answers the seed with the derived key.
func (f *Factory) UnlockRequest(key uint16) *Message {
	return New([]byte{
		PriorityPhysical, AddrPcm, AddrTool, ModeSeedKey, 0x02,
		byte(key >> 8), byte(key),
	})
}

// UploadRequest asks permission to upload size bytes to a 24-bit RAM address.
func (f *Factory) UploadRequest(size uint32, address uint32) *Message {
	return New([]byte{
		PriorityPhysical, AddrPcm, AddrTool, ModeUploadRequest, 0x01,
		byte(size >> 8), byte(size),
		byte(address >> 16), byte(address >> 8), byte(address),
	})
}

// BlockMessage builds one kernel payload chunk: a 10-byte header, the chunk
// bytes, and the trailing block sum. When execute is set the PCM jumps to the
// frame's address after storing the payload.
func (f *Factory) BlockMessage(payload []byte, offset, length int, address uint32, execute bool) *Message {
	chunk := payload[offset : offset+length]

	frame := make([]byte, 10+length+2)
	frame[0] = PriorityBlock
	frame[1] = AddrPcm
	frame[2] = AddrTool
	frame[3] = ModeBlockData
	if execute {
		frame[4] = 0x80
	}
	frame[5] = byte(length >> 8)
	frame[6] = byte(length)
	frame[7] = byte(address >> 16)
	frame[8] = byte(address >> 8)
	frame[9] = byte(address)
	copy(frame[10:], chunk)

	return New(AppendBlockSum(frame))
}

// FlashBlockMessage builds one 192-byte full-flash write frame. The header is
// fixed for the write kernel's streaming interface.
func (f *Factory) FlashBlockMessage(data []byte) *Message {
	frame := make([]byte, 10+len(data)+2)
	copy(frame, []byte{PriorityBlock, AddrPcm, AddrTool, ModeBlockData, 0x00,
		byte(len(data) >> 8), byte(len(data)), 0xFF, 0xA0, 0x00})
	copy(frame[10:], data)
	return New(AppendBlockSum(frame))
}

// ReadRequest asks the read kernel for length bytes at a 24-bit address.
func (f *Factory) ReadRequest(address uint32, length uint16) *Message {
	return New([]byte{
		PriorityPhysical, AddrPcm, AddrTool, ModeReadRequest, 0x01,
		byte(length >> 8), byte(length),
		byte(address >> 16), byte(address >> 8), byte(address),
	})
}

// WriteBlockRequest builds the mode 0x3B write for a 6-byte block.
func (f *Factory) WriteBlockRequest(id BlockId, data []byte) (*Message, error) {
	if len(data) != WriteLength {
		return nil, fmt.Errorf("block write payload must be %d bytes, got %d", WriteLength, len(data))
	}
	frame := make([]byte, 5+WriteLength)
	copy(frame, []byte{PriorityPhysical, AddrPcm, AddrTool, ModeWriteBlock, byte(id)})
	copy(frame[5:], data)
	return New(frame), nil
}

// WriteBlockAck is the exact frame the PCM sends when a block write lands.
func (f *Factory) WriteBlockAck(id BlockId) *Message {
	return New([]byte{PriorityPhysical, AddrTool, AddrPcm, ModeWriteBlockReply, byte(id)})
}

// StartFullFlash arms the write kernel for a full flash stream.
func (f *Factory) StartFullFlash() *Message {
	return New([]byte{PriorityPhysical, AddrPcm, AddrTool, ModeReadBlock, 0x01})
}

// HighSpeedCheck asks the PCM whether it will tolerate 4x bus speed.
func (f *Factory) HighSpeedCheck() *Message {
	return New([]byte{PriorityPhysical, AddrPcm, AddrTool, ModeHighSpeedCheck})
}

// HighSpeedOKResponse is the prefix of the PCM's permission reply. Trailing
// bytes vary between operating systems, so callers compare prefixes only.
func (f *Factory) HighSpeedOKResponse() *Message {
	return New([]byte{PriorityPhysical, AddrTool, AddrPcm, ModeHighSpeedReply})
}

// BeginHighSpeed tells every module on the bus to switch to 4x now.
func (f *Factory) BeginHighSpeed() *Message {
	return New([]byte{PriorityPhysical, AddrBroadcast, AddrTool, ModeBeginHighSpeed})
}

// DisableNormalMessageTransmission quiets bus chatter from other modules.
func (f *Factory) DisableNormalMessageTransmission() *Message {
	return New([]byte{PriorityPhysical, AddrBroadcast, AddrTool, ModeSilenceBus})
}

// DevicePresentNotification is the tool-present keep-alive broadcast.
func (f *Factory) DevicePresentNotification() *Message {
	return New([]byte{PriorityPhysical, AddrBroadcast, AddrTool, ModeTesterPresent})
}

// ExitKernel tells a running kernel to hand control back to the OS.
func (f *Factory) ExitKernel() *Message {
	return New([]byte{PriorityPhysical, AddrPcm, AddrTool, ModeExitKernel})
}
