package session

import (
	"strings"
	"testing"

	"pcmflash/internal/device"
	"pcmflash/pkg/vpw"
)

// identifierResponder answers 0x3C queries from a block table.
func identifierResponder(blocks map[byte][]byte) func(*vpw.Message, *device.MockDevice) {
	return func(m *vpw.Message, d *device.MockDevice) {
		b := m.Bytes()
		if b[3] != vpw.ModeReadBlock {
			return
		}
		payload, ok := blocks[b[4]]
		if !ok {
			return
		}
		frame := append([]byte{0x6C, 0xF0, 0x10, 0x7C, b[4]}, payload...)
		d.Enqueue(frame)
	}
}

func TestQueryVin(t *testing.T) {
	s, dev, _ := newTestSession(t)
	dev.Responder = identifierResponder(map[byte][]byte{
		0x01: append([]byte{0x00}, []byte("1G1YY")...),
		0x02: []byte("22G965"),
		0x03: []byte("100001"),
	})

	r := s.QueryVin()
	if !r.Ok() {
		t.Fatalf("VIN query failed: %s (%s)", r.Status, r.Message)
	}
	if r.Value != "1G1YY22G965100001" {
		t.Errorf("VIN %q", r.Value)
	}
}

func TestQueryVinMissingBlockCollapses(t *testing.T) {
	s, dev, _ := newTestSession(t)
	// Block 2 never answers.
	dev.Responder = identifierResponder(map[byte][]byte{
		0x01: append([]byte{0x00}, []byte("1G1YY")...),
		0x03: []byte("100001"),
	})

	r := s.QueryVin()
	if r.Status != vpw.Timeout {
		t.Fatalf("expected Timeout, got %s", r.Status)
	}
	if !strings.Contains(r.Message, "block 2") {
		t.Errorf("diagnostic must name the missing block, got %q", r.Message)
	}
}

func TestQueryVinStrictOrder(t *testing.T) {
	s, dev, _ := newTestSession(t)
	dev.Responder = identifierResponder(map[byte][]byte{
		0x01: append([]byte{0x00}, []byte("1G1YY")...),
		0x02: []byte("22G965"),
		0x03: []byte("100001"),
	})

	if r := s.QueryVin(); !r.Ok() {
		t.Fatalf("VIN query failed: %s", r.Status)
	}

	var order []byte
	for _, m := range dev.Sent {
		if m.Mode() == vpw.ModeReadBlock {
			order = append(order, m.Bytes()[4])
		}
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("request order %v, want [1 2 3]", order)
	}
}

func TestQueryIdentifiers(t *testing.T) {
	s, dev, _ := newTestSession(t)
	dev.Responder = identifierResponder(map[byte][]byte{
		0x08: []byte("YKRD"),
		0xA0: {0x02},
		0x0A: {0x00, 0xBC, 0x61, 0x4E},
	})

	bcc := s.QueryBcc()
	if !bcc.Ok() || bcc.Value != "YKRD" {
		t.Errorf("BCC %q (%s)", bcc.Value, bcc.Status)
	}

	mec := s.QueryMec()
	if !mec.Ok() || mec.Value != "2" {
		t.Errorf("MEC %q (%s)", mec.Value, mec.Status)
	}

	osID := s.QueryOperatingSystemID()
	if !osID.Ok() || osID.Value != 12345678 {
		t.Errorf("OS id %d (%s)", osID.Value, osID.Status)
	}
}

func TestQuerySerial(t *testing.T) {
	s, dev, _ := newTestSession(t)
	dev.Responder = identifierResponder(map[byte][]byte{
		0x05: {0, 0, 'P', 'T', '1', '2'},
		0x06: {0, 0, '3', '4', '5', '6'},
		0x07: {0, 0, '7', '8', '9', 'A'},
	})

	r := s.QuerySerial()
	if !r.Ok() || r.Value != "PT123456789A" {
		t.Errorf("serial %q (%s)", r.Value, r.Status)
	}
}
