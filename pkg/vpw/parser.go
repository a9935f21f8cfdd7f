// pkg/vpw/parser.go
// Decoders for every inbound response frame. Each parser takes raw frame
// bytes and returns a typed Response; nothing here touches the device.

package vpw

import (
	"bytes"
	"strconv"
)

// Parser decodes PCM response frames.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// replyHeader is the expected prefix of a mode 0x7C block read reply.
func replyHeader(id BlockId) []byte {
	return []byte{PriorityPhysical, AddrTool, AddrPcm, ModeReadBlockReply, byte(id)}
}

// blockPayload validates a 0x7C reply for the given block and returns its
// payload bytes, or nil when the frame doesn't match.
func blockPayload(b []byte, id BlockId) []byte {
	header := replyHeader(id)
	if len(b) < len(header)+1 || !bytes.HasPrefix(b, header) {
		return nil
	}
	return b[5:]
}

// ParseVinResponses assembles the 17-character VIN from its three blocks.
// Block 1 carries a leading pad byte and the first five characters.
func (p *Parser) ParseVinResponses(b1, b2, b3 []byte) Response[string] {
	p1 := blockPayload(b1, BlockVin1)
	p2 := blockPayload(b2, BlockVin2)
	p3 := blockPayload(b3, BlockVin3)
	if len(p1) < 6 || len(p2) < 6 || len(p3) < 6 {
		return Failf[string](Error, "VIN block mismatch")
	}
	vin := make([]byte, 0, 17)
	vin = append(vin, p1[1:6]...)
	vin = append(vin, p2[:6]...)
	vin = append(vin, p3[:6]...)
	return OK(string(vin))
}

// ParseSerialResponses assembles the 12-character serial number; each block
// contributes its last four payload bytes.
func (p *Parser) ParseSerialResponses(b1, b2, b3 []byte) Response[string] {
	p1 := blockPayload(b1, BlockSerial1)
	p2 := blockPayload(b2, BlockSerial2)
	p3 := blockPayload(b3, BlockSerial3)
	if len(p1) < 6 || len(p2) < 6 || len(p3) < 6 {
		return Failf[string](Error, "serial block mismatch")
	}
	serial := make([]byte, 0, 12)
	serial = append(serial, p1[2:6]...)
	serial = append(serial, p2[2:6]...)
	serial = append(serial, p3[2:6]...)
	return OK(string(serial))
}

// ParseBccResponse returns the 4-character broadcast code.
func (p *Parser) ParseBccResponse(b []byte) Response[string] {
	payload := blockPayload(b, BlockBCC)
	if len(payload) < 4 {
		return Failf[string](Error, "BCC response too short")
	}
	return OK(string(payload[:4]))
}

// ParseMecResponse returns the module evaluation copy number.
func (p *Parser) ParseMecResponse(b []byte) Response[string] {
	payload := blockPayload(b, BlockMEC)
	if len(payload) < 1 {
		return Failf[string](Error, "MEC response too short")
	}
	return OK(strconv.Itoa(int(payload[0])))
}

// ParseBlockUint32 extracts a 32-bit big-endian identifier (OS, hardware or
// calibration id) from a 0x7C reply.
func (p *Parser) ParseBlockUint32(b []byte, id BlockId) Response[uint32] {
	payload := blockPayload(b, id)
	if len(payload) < 4 {
		return Failf[uint32](Error, "identifier response too short")
	}
	v := uint32(payload[0])<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
	return OK(v)
}

var alreadyUnlocked = []byte{PriorityPhysical, AddrTool, AddrPcm, ModeSeedKeyReply, 0x01, 0x37}

// IsUnlocked recognizes the seed reply a PCM sends when it is already
// unlocked.
func (p *Parser) IsUnlocked(b []byte) bool {
	return bytes.HasPrefix(b, alreadyUnlocked)
}

// ParseSeed returns the 16-bit seed. A seed of 0x0000 means the operating
// system does not require an unlock.
func (p *Parser) ParseSeed(b []byte) Response[uint16] {
	header := []byte{PriorityPhysical, AddrTool, AddrPcm, ModeSeedKeyReply, 0x01}
	if len(b) < 7 || !bytes.HasPrefix(b, header) {
		return Failf[uint16](UnexpectedResponse, "not a seed response")
	}
	return OK(uint16(b[5])<<8 | uint16(b[6]))
}

// ParseUnlockResponse decodes the key reply. The second return value is a
// human-readable diagnostic for refusals.
func (p *Parser) ParseUnlockResponse(b []byte) (Response[bool], string) {
	header := []byte{PriorityPhysical, AddrTool, AddrPcm, ModeSeedKeyReply, 0x02}
	if len(b) < 6 || !bytes.HasPrefix(b, header) {
		return Failf[bool](UnexpectedResponse, "not an unlock response"), ""
	}
	switch b[5] {
	case 0x34:
		return OK(true), ""
	case 0x35:
		return Fail[bool](Refused), "the PCM did not accept the key"
	case 0x36:
		return Fail[bool](Refused), "too many unlock attempts, let the PCM rest"
	case 0x37:
		return Fail[bool](Refused), "unlock delay not yet expired"
	}
	return Fail[bool](UnexpectedResponse), "unrecognized unlock status"
}

// ParseUploadResponse reports whether the PCM granted the upload request.
func (p *Parser) ParseUploadResponse(b []byte) Response[bool] {
	header := []byte{PriorityPhysical, AddrTool, AddrPcm, ModeUploadReply}
	if len(b) < 5 || !bytes.HasPrefix(b, header) {
		return Fail[bool](UnexpectedResponse)
	}
	if b[4] != 0x00 {
		return Fail[bool](Refused)
	}
	return OK(true)
}

// ParseReadResponse reports whether the kernel accepted a read request and a
// payload frame will follow. A recognized rejection parses as Success(false).
func (p *Parser) ParseReadResponse(b []byte) Response[bool] {
	header := []byte{PriorityPhysical, AddrTool, AddrPcm, ModeReadReply}
	if len(b) < 5 || !bytes.HasPrefix(b, header) {
		return Fail[bool](UnexpectedResponse)
	}
	return OK(b[4] == 0x01)
}

// ParseStartFullFlashResponse validates the write kernel's acknowledgement of
// the start-full-flash command.
func (p *Parser) ParseStartFullFlashResponse(b []byte) Response[bool] {
	header := []byte{PriorityPhysical, AddrTool, AddrPcm, ModeReadBlockReply, 0x01}
	if len(b) < 5 || !bytes.HasPrefix(b, header) {
		return Fail[bool](UnexpectedResponse)
	}
	return OK(true)
}

// IsChatter reports frames the transaction layer should discard: tool-present
// keep-alives (mode 0x3F, from any sender) and runt frames shorter than a
// header.
func (p *Parser) IsChatter(b []byte) bool {
	if len(b) < 4 {
		return true
	}
	return b[3] == ModeTesterPresent
}
