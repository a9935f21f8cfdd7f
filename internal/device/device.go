// internal/device/device.go
// The half-duplex byte channel the PCM session talks through. Concrete
// drivers live next to this interface; the session owns exactly one Device
// and closes it exactly once.

package device

import (
	"time"

	"pcmflash/pkg/vpw"
)

// VpwSpeed is the bus signalling rate.
type VpwSpeed int

const (
	OneX VpwSpeed = iota
	FourX
)

func (s VpwSpeed) String() string {
	if s == FourX {
		return "4x"
	}
	return "1x"
}

// TimeoutScenario selects the receive window for the current operation.
type TimeoutScenario int

const (
	ScenarioRead TimeoutScenario = iota
	ScenarioWrite
	ScenarioMaximum
)

// Timeout maps a scenario to its receive window.
func (s TimeoutScenario) Timeout() time.Duration {
	switch s {
	case ScenarioRead:
		return 3000 * time.Millisecond
	case ScenarioWrite:
		return 1000 * time.Millisecond
	case ScenarioMaximum:
		return 30 * time.Second
	}
	return 1000 * time.Millisecond
}

// Device is a pass-through scantool: a half-duplex frame channel to the VPW
// bus. ReceiveFrame returns nil when nothing arrives inside the configured
// timeout window.
type Device interface {
	Initialize() bool
	SendFrame(m *vpw.Message) bool
	ReceiveFrame() *vpw.Message
	SetSpeed(speed VpwSpeed) bool
	ClearQueue()
	SetTimeout(scenario TimeoutScenario)
	Supports4x() bool
	MaxSendSize() int
	Dispose()
}
