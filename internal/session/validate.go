// internal/session/validate.go
package session

import (
	"pcmflash/pkg/vpw"
)

const (
	validateAttempts = 5
	validateWindow   = 10
)

// validator is a pure predicate over one response frame.
type validator func(b []byte) vpw.Response[bool]

// sendAndValidate sends a frame until the validator accepts one of the
// responses. pingKernel inserts a tool-present ping before retries, which
// nudges a busy kernel into answering.
func (s *Session) sendAndValidate(msg *vpw.Message, accept validator, description, successText, failureText string, pingKernel bool) bool {
	s.log.Debug("sending " + description)

	for attempt := 0; attempt < validateAttempts; attempt++ {
		if !s.dev.SendFrame(msg) {
			if pingKernel {
				s.waitForKernel(1)
			}
			continue
		}
		if s.waitForSuccess(accept) {
			if successText != "" {
				s.log.User(successText)
			}
			return true
		}
		if pingKernel {
			s.waitForKernel(1)
		}
	}

	if failureText != "" {
		s.log.User(failureText)
	}
	return false
}

// waitForSuccess feeds subsequent frames to the validator, bounded.
func (s *Session) waitForSuccess(accept validator) bool {
	for i := 0; i < validateWindow; i++ {
		f := s.receiveResponse()
		if f == nil {
			return false
		}
		if r := accept(f.Bytes()); r.Ok() && r.Value {
			return true
		}
	}
	return false
}

// waitForKernel pings a running kernel until anything comes back.
func (s *Session) waitForKernel(attempts int) bool {
	for i := 0; i < attempts; i++ {
		s.notifyDevicePresent()
		if s.dev.ReceiveFrame() != nil {
			return true
		}
	}
	return false
}
