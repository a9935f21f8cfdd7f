package session

import (
	"testing"

	"pcmflash/internal/device"
	"pcmflash/pkg/vpw"
)

// testLogger routes session output into the test log.
type testLogger struct {
	t     *testing.T
	users []string
}

func (l *testLogger) User(msg string) {
	l.users = append(l.users, msg)
	l.t.Logf("user: %s", msg)
}

func (l *testLogger) Debug(msg string) {
	l.t.Logf("debug: %s", msg)
}

func newTestSession(t *testing.T) (*Session, *device.MockDevice, *testLogger) {
	t.Helper()
	dev := device.NewMockDevice()
	log := &testLogger{t: t}
	return New(dev, log), dev, log
}

// countMode counts sent frames with the given mode byte.
func countMode(dev *device.MockDevice, mode byte) int {
	n := 0
	for _, m := range dev.SentModes() {
		if m == mode {
			n++
		}
	}
	return n
}

func TestSendRequestRetriesThroughSendFailures(t *testing.T) {
	s, dev, _ := newTestSession(t)
	dev.FailSends = 2
	dev.Responder = func(m *vpw.Message, d *device.MockDevice) {
		d.Enqueue([]byte{0x6C, 0xF0, 0x10, 0x7C, 0x01, 1, 2, 3, 4, 5, 6})
	}

	r := s.sendRequest(s.factory.BccRequest(), 5)
	if !r.Ok() {
		t.Fatalf("expected success after retries, got %s", r.Status)
	}
	if len(dev.Sent) != 3 {
		t.Errorf("expected 3 send attempts, got %d", len(dev.Sent))
	}
}

func TestSendRequestExhaustsRetries(t *testing.T) {
	s, dev, _ := newTestSession(t)

	r := s.sendRequest(s.factory.BccRequest(), 3)
	if r.Status != vpw.Error {
		t.Fatalf("expected Error, got %s", r.Status)
	}
	if len(dev.Sent) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(dev.Sent))
	}
}

func TestReceiveResponseDropsChatter(t *testing.T) {
	s, dev, _ := newTestSession(t)
	dev.Enqueue(
		[]byte{0x6C, 0xFE, 0x40, 0x3F}, // another tool's keep-alive
		[]byte{0x6C, 0xF0, 0x10, 0x7C, 0x01, 1, 2, 3, 4, 5, 6},
	)

	f := s.receiveResponse()
	if f == nil {
		t.Fatal("expected a frame")
	}
	if f.Mode() != vpw.ModeReadBlockReply {
		t.Errorf("expected the reply frame, got mode %02X", f.Mode())
	}
}

func TestCloseDisposesDeviceOnce(t *testing.T) {
	s, dev, _ := newTestSession(t)
	s.Close()
	s.Close()
	if dev.Disposed != 1 {
		t.Errorf("device disposed %d times, want exactly once", dev.Disposed)
	}
}

func TestCloseRecoversRunningKernel(t *testing.T) {
	s, dev, _ := newTestSession(t)
	s.kernelRunning = true
	s.busSpeed = device.FourX
	s.Close()

	if got := countMode(dev, vpw.ModeExitKernel); got != 2 {
		t.Errorf("expected 2 exit-kernel frames, got %d", got)
	}
	if len(dev.SpeedChanges) == 0 || dev.SpeedChanges[len(dev.SpeedChanges)-1] != device.OneX {
		t.Error("device was not forced back to 1x")
	}
}
