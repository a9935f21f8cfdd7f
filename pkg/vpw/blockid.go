// pkg/vpw/blockid.go
package vpw

// BlockId identifies a logical read/write block inside the PCM. The same id
// space is used by mode 0x3C reads and mode 0x3B writes.
type BlockId byte

const (
	BlockVin1 BlockId = 0x01
	BlockVin2 BlockId = 0x02
	BlockVin3 BlockId = 0x03

	BlockHardwareID BlockId = 0x04

	BlockSerial1 BlockId = 0x05
	BlockSerial2 BlockId = 0x06
	BlockSerial3 BlockId = 0x07

	BlockBCC BlockId = 0x08

	BlockOperatingSystemID BlockId = 0x0A
	BlockCalibrationID     BlockId = 0x0B

	BlockMEC BlockId = 0xA0
)

// WriteLength is the fixed payload size of a writable block.
const WriteLength = 6

func (b BlockId) String() string {
	switch b {
	case BlockVin1, BlockVin2, BlockVin3:
		return "VIN"
	case BlockSerial1, BlockSerial2, BlockSerial3:
		return "serial"
	case BlockBCC:
		return "BCC"
	case BlockMEC:
		return "MEC"
	case BlockHardwareID:
		return "hardware ID"
	case BlockOperatingSystemID:
		return "OS ID"
	case BlockCalibrationID:
		return "calibration ID"
	}
	return "unknown block"
}
