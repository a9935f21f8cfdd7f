// internal/session/session.go
// A Session owns one scantool device and runs every high-level PCM
// operation over it: identifier queries, unlock, 4x negotiation, kernel
// upload, bulk read, flash write.

package session

import (
	"time"

	"github.com/rs/xid"

	"pcmflash/internal/device"
	"pcmflash/pkg/vpw"
)

// Logger is the observational sink the session reports through. User lines
// are meant for the person holding the cable, Debug lines for the log file.
type Logger interface {
	User(msg string)
	Debug(msg string)
}

// PcmInfo describes the flash geometry and unlock algorithm of the target.
type PcmInfo struct {
	ImageBaseAddress  uint32
	ImageSize         int
	KernelBaseAddress uint32
	KeyAlgorithmID    uint16
}

// P01/P59 512 KiB controllers, the usual target.
var DefaultPcmInfo = PcmInfo{
	ImageBaseAddress:  0x000000,
	ImageSize:         512 * 1024,
	KernelBaseAddress: 0xFF9150,
	KeyAlgorithmID:    40,
}

// Session drives one PCM through one device. Not safe for concurrent use;
// all operations run on a single logical task.
type Session struct {
	dev     device.Device
	factory *vpw.Factory
	parser  *vpw.Parser
	log     Logger
	id      string

	// Progress, when set, receives upload/read/write percentages.
	Progress func(percent int)

	busSpeed      device.VpwSpeed
	unlocked      bool
	kernelRunning bool
	speedFault    bool
	closed        bool
}

// New binds a session to a device. The session takes exclusive ownership;
// the device is disposed exactly once, on Close.
func New(dev device.Device, log Logger) *Session {
	return &Session{
		dev:     dev,
		factory: vpw.NewFactory(),
		parser:  vpw.NewParser(),
		log:     log,
		id:      xid.New().String(),
	}
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Unlocked() bool            { return s.unlocked }
func (s *Session) KernelRunning() bool       { return s.kernelRunning }
func (s *Session) BusSpeed() device.VpwSpeed { return s.busSpeed }

// Close runs the recovery sequence if a kernel may still be live, then
// disposes the device. Safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.kernelRunning || s.busSpeed == device.FourX || s.speedFault {
		s.recover()
	}
	s.dev.Dispose()
}

// retryDelay sits between transaction attempts.
const retryDelay = 10 * time.Millisecond

// sendRequest is the transaction layer: bounded request/response plumbing
// with no interpretation of the reply.
func (s *Session) sendRequest(m *vpw.Message, retries int) vpw.Response[*vpw.Message] {
	for i := retries; i > 0; i-- {
		if !s.dev.SendFrame(m) {
			time.Sleep(retryDelay)
			continue
		}
		if f := s.receiveResponse(); f != nil {
			return vpw.OK(f)
		}
		time.Sleep(retryDelay)
	}
	return vpw.Fail[*vpw.Message](vpw.Error)
}

// receiveResponse pulls the next frame, discarding tool-present chatter.
// Returns nil when the device times out.
func (s *Session) receiveResponse() *vpw.Message {
	for {
		f := s.dev.ReceiveFrame()
		if f == nil {
			return nil
		}
		if s.parser.IsChatter(f.Bytes()) {
			continue
		}
		return f
	}
}

// suppressChatter quiets the other bus modules. Best effort: a missed
// suppression only costs retries later.
func (s *Session) suppressChatter() {
	s.dev.SendFrame(s.factory.DisableNormalMessageTransmission())
}

// notifyDevicePresent broadcasts the tool-present keep-alive.
func (s *Session) notifyDevicePresent() {
	s.dev.SendFrame(s.factory.DevicePresentNotification())
}

// recover forces a wayward PCM back to normal operation: exit-kernel once at
// the current bus speed, then the device back to 1x and exit-kernel again, so
// the request lands at either bus speed. Every send is best effort; the goal
// is a car that starts.
func (s *Session) recover() {
	exit := s.factory.ExitKernel()
	s.dev.SendFrame(exit)
	s.dev.SetSpeed(device.OneX)
	s.dev.SendFrame(exit)
	s.busSpeed = device.OneX
	s.kernelRunning = false
	s.speedFault = false
}

// Recover is the standalone rescue command for a PCM left mid-flash.
func (s *Session) Recover() {
	s.log.User("Sending exit-kernel and forcing 1x bus speed...")
	s.recover()
	s.log.User("Recovery sequence sent.")
}

func (s *Session) progress(percent int) {
	if s.Progress != nil {
		s.Progress(percent)
	}
}
