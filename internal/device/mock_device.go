// internal/device/mock_device.go
// Scripted in-memory device for exercising session logic without hardware.

package device

import (
	"pcmflash/pkg/vpw"
)

// MockDevice replays a canned frame queue and records everything the session
// does to it. A Responder, when set, may synthesize a reply per outbound
// frame; its replies join the back of the queue, behind any frames already
// enqueued.
type MockDevice struct {
	// Responses are popped front-to-back by ReceiveFrame.
	Responses []*vpw.Message

	// Responder, if non-nil, is invoked on every successful SendFrame (not
	// on the ones FailSends turns into failures) and may push replies onto
	// Responses.
	Responder func(m *vpw.Message, d *MockDevice)

	Sent         []*vpw.Message
	SpeedChanges []VpwSpeed
	Scenario     TimeoutScenario
	Cleared      int
	Disposed     int

	FourXCapable bool
	SendSize     int
	FailSends    int // first n sends report failure
	speed        VpwSpeed
}

// NewMockDevice returns a 4x-capable mock with a generous frame size.
func NewMockDevice() *MockDevice {
	return &MockDevice{FourXCapable: true, SendSize: 4096 + 12}
}

func (d *MockDevice) Initialize() bool {
	return true
}

func (d *MockDevice) SendFrame(m *vpw.Message) bool {
	d.Sent = append(d.Sent, m)
	if d.FailSends > 0 {
		d.FailSends--
		return false
	}
	if d.Responder != nil {
		d.Responder(m, d)
	}
	return true
}

func (d *MockDevice) ReceiveFrame() *vpw.Message {
	if len(d.Responses) == 0 {
		return nil
	}
	m := d.Responses[0]
	d.Responses = d.Responses[1:]
	return m
}

func (d *MockDevice) Enqueue(frames ...[]byte) {
	for _, f := range frames {
		d.Responses = append(d.Responses, vpw.Received(f, vpw.TransportOK))
	}
}

func (d *MockDevice) SetSpeed(speed VpwSpeed) bool {
	d.speed = speed
	d.SpeedChanges = append(d.SpeedChanges, speed)
	return true
}

func (d *MockDevice) Speed() VpwSpeed {
	return d.speed
}

func (d *MockDevice) ClearQueue() {
	d.Cleared++
	d.Responses = nil
}

func (d *MockDevice) SetTimeout(scenario TimeoutScenario) {
	d.Scenario = scenario
}

func (d *MockDevice) Supports4x() bool {
	return d.FourXCapable
}

func (d *MockDevice) MaxSendSize() int {
	return d.SendSize
}

func (d *MockDevice) Dispose() {
	d.Disposed++
}

// SentModes lists the mode byte of every frame sent, in order.
func (d *MockDevice) SentModes() []byte {
	modes := make([]byte, 0, len(d.Sent))
	for _, m := range d.Sent {
		modes = append(modes, m.Mode())
	}
	return modes
}
