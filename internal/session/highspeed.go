// internal/session/highspeed.go
// 1x to 4x bus speed negotiation.

package session

import (
	"bytes"

	"pcmflash/internal/device"
	"pcmflash/pkg/vpw"
)

// NegotiateHighSpeed moves the bus to 4x VPW when both the device and the
// PCM agree. A device without 4x support is a quiet success at 1x. Every
// failure path leaves the session's bus speed matching the device.
func (s *Session) NegotiateHighSpeed() vpw.Response[bool] {
	if !s.dev.Supports4x() {
		s.log.Debug("device has no 4x mode, staying at 1x")
		return vpw.OK(true)
	}

	if !s.dev.SendFrame(s.factory.HighSpeedCheck()) {
		return vpw.Failf[bool](vpw.Error, "could not send high-speed check")
	}
	resp := s.receiveResponse()
	if resp == nil {
		return vpw.Failf[bool](vpw.Timeout, "no reply to high-speed check")
	}

	// The permission reply varies after the mode byte, so this is a prefix
	// compare, not frame equality.
	ok := s.factory.HighSpeedOKResponse().Bytes()
	if !bytes.HasPrefix(resp.Bytes(), ok) {
		s.log.User("PCM declined 4x bus speed.")
		return vpw.OK(false)
	}

	s.dev.SendFrame(s.factory.BeginHighSpeed())
	if !s.dev.SetSpeed(device.FourX) {
		// The PCM heard the broadcast but the device did not follow. That
		// mismatch is fatal for the bus; make sure Close drags the PCM
		// back to 1x even though the session never reached 4x.
		s.speedFault = true
		return vpw.Failf[bool](vpw.Error, "device refused 4x after PCM agreed")
	}
	s.busSpeed = device.FourX
	s.log.User("Bus speed raised to 4x.")
	return vpw.OK(true)
}
