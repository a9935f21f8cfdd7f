package session

import (
	"testing"

	"pcmflash/internal/device"
	"pcmflash/pkg/vpw"
)

// seedKeyResponder simulates a locked PCM with the given seed, accepting
// only the right key for algorithm 1.
func seedKeyResponder(seed uint16) func(*vpw.Message, *device.MockDevice) {
	return func(m *vpw.Message, d *device.MockDevice) {
		b := m.Bytes()
		if b[3] != vpw.ModeSeedKey {
			return
		}
		switch b[4] {
		case 0x01:
			d.Enqueue([]byte{0x6C, 0xF0, 0x10, 0x67, 0x01, byte(seed >> 8), byte(seed)})
		case 0x02:
			key := uint16(b[5])<<8 | uint16(b[6])
			status := byte(0x35)
			if key == vpw.Key(1, seed) {
				status = 0x34
			}
			d.Enqueue([]byte{0x6C, 0xF0, 0x10, 0x67, 0x02, status})
		}
	}
}

func TestUnlockExchange(t *testing.T) {
	s, dev, _ := newTestSession(t)
	dev.Responder = seedKeyResponder(0x1234)

	r := s.Unlock(1)
	if !r.Ok() {
		t.Fatalf("unlock failed: %s (%s)", r.Status, r.Message)
	}
	if !s.Unlocked() {
		t.Error("session must record the unlock")
	}
}

func TestUnlockWrongAlgorithmRefused(t *testing.T) {
	s, dev, log := newTestSession(t)
	dev.Responder = seedKeyResponder(0x1234)

	r := s.Unlock(3) // derives the wrong key
	if r.Status != vpw.Refused {
		t.Fatalf("expected Refused, got %s", r.Status)
	}
	if s.Unlocked() {
		t.Error("a refused unlock must not mark the session unlocked")
	}
	if len(log.users) == 0 {
		t.Error("the refusal diagnostic must reach the user")
	}
}

func TestUnlockZeroSeedSkipsKeyExchange(t *testing.T) {
	s, dev, _ := newTestSession(t)
	dev.Responder = seedKeyResponder(0x0000)

	r := s.Unlock(1)
	if !r.Ok() {
		t.Fatalf("expected success for seed 0000, got %s", r.Status)
	}
	if !s.Unlocked() {
		t.Error("zero seed means no unlock required")
	}

	// No key frame may have gone out.
	for _, m := range dev.Sent {
		b := m.Bytes()
		if b[3] == vpw.ModeSeedKey && b[4] == 0x02 {
			t.Error("unlock frame sent despite zero seed")
		}
	}
}

func TestUnlockAlreadyUnlocked(t *testing.T) {
	s, dev, _ := newTestSession(t)
	dev.Responder = func(m *vpw.Message, d *device.MockDevice) {
		if b := m.Bytes(); b[3] == vpw.ModeSeedKey && b[4] == 0x01 {
			d.Enqueue([]byte{0x6C, 0xF0, 0x10, 0x67, 0x01, 0x37})
		}
	}

	r := s.Unlock(1)
	if !r.Ok() {
		t.Fatalf("expected success, got %s", r.Status)
	}
	if !s.Unlocked() {
		t.Error("already-unlocked reply must mark the session unlocked")
	}
}

func TestUnlockTimesOutQuietly(t *testing.T) {
	s, _, _ := newTestSession(t)

	r := s.Unlock(1)
	if r.Ok() {
		t.Fatal("expected a failure with a silent PCM")
	}
	if s.Unlocked() {
		t.Error("session must stay locked")
	}
}
