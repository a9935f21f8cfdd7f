// internal/session/identifiers.go
// Identifier queries: VIN, serial number, BCC, MEC and the three 32-bit ids.

package session

import (
	"fmt"

	"pcmflash/pkg/vpw"
)

// queryThreeBlocks runs the strict 1-2-3 request/response sequence shared by
// the VIN and serial queries. A missing response collapses the whole query.
func (s *Session) queryThreeBlocks(what string, request func(int) (*vpw.Message, error)) ([][]byte, vpw.Response[string]) {
	blocks := make([][]byte, 0, 3)
	for i := 1; i <= 3; i++ {
		req, err := request(i)
		if err != nil {
			return nil, vpw.Failf[string](vpw.Error, err.Error())
		}
		if !s.dev.SendFrame(req) {
			return nil, vpw.Failf[string](vpw.Error, fmt.Sprintf("send failed for %s block %d", what, i))
		}
		resp := s.receiveResponse()
		if resp == nil {
			return nil, vpw.Failf[string](vpw.Timeout, fmt.Sprintf("no response to %s block %d", what, i))
		}
		blocks = append(blocks, resp.Bytes())
	}
	return blocks, vpw.Response[string]{}
}

// QueryVin reads the 17-character VIN.
func (s *Session) QueryVin() vpw.Response[string] {
	blocks, fail := s.queryThreeBlocks("VIN", s.factory.VinRequest)
	if blocks == nil {
		return fail
	}
	return s.parser.ParseVinResponses(blocks[0], blocks[1], blocks[2])
}

// QuerySerial reads the 12-character serial number.
func (s *Session) QuerySerial() vpw.Response[string] {
	blocks, fail := s.queryThreeBlocks("serial", s.factory.SerialRequest)
	if blocks == nil {
		return fail
	}
	return s.parser.ParseSerialResponses(blocks[0], blocks[1], blocks[2])
}

// querySingle runs one request/response pair.
func (s *Session) querySingle(what string, req *vpw.Message) ([]byte, vpw.Response[string]) {
	if !s.dev.SendFrame(req) {
		return nil, vpw.Failf[string](vpw.Error, fmt.Sprintf("send failed for %s", what))
	}
	resp := s.receiveResponse()
	if resp == nil {
		return nil, vpw.Failf[string](vpw.Timeout, fmt.Sprintf("no response to %s query", what))
	}
	return resp.Bytes(), vpw.Response[string]{}
}

// QueryBcc reads the broadcast code.
func (s *Session) QueryBcc() vpw.Response[string] {
	raw, fail := s.querySingle("BCC", s.factory.BccRequest())
	if raw == nil {
		return fail
	}
	return s.parser.ParseBccResponse(raw)
}

// QueryMec reads the module evaluation copy number.
func (s *Session) QueryMec() vpw.Response[string] {
	raw, fail := s.querySingle("MEC", s.factory.MecRequest())
	if raw == nil {
		return fail
	}
	return s.parser.ParseMecResponse(raw)
}

// queryUint32 is the shared path for the OS, hardware and calibration ids.
func (s *Session) queryUint32(what string, req *vpw.Message, id vpw.BlockId) vpw.Response[uint32] {
	if !s.dev.SendFrame(req) {
		return vpw.Failf[uint32](vpw.Error, fmt.Sprintf("send failed for %s", what))
	}
	resp := s.receiveResponse()
	if resp == nil {
		return vpw.Failf[uint32](vpw.Timeout, fmt.Sprintf("no response to %s query", what))
	}
	return s.parser.ParseBlockUint32(resp.Bytes(), id)
}

func (s *Session) QueryOperatingSystemID() vpw.Response[uint32] {
	return s.queryUint32("OS ID", s.factory.OsIDRequest(), vpw.BlockOperatingSystemID)
}

func (s *Session) QueryHardwareID() vpw.Response[uint32] {
	return s.queryUint32("hardware ID", s.factory.HardwareIDRequest(), vpw.BlockHardwareID)
}

func (s *Session) QueryCalibrationID() vpw.Response[uint32] {
	return s.queryUint32("calibration ID", s.factory.CalIDRequest(), vpw.BlockCalibrationID)
}
