// internal/session/unlock.go
// The mode 0x27 seed/key exchange.

package session

import (
	"fmt"

	"pcmflash/pkg/vpw"
)

// Unlock runs the seed/key exchange with the given algorithm. Idempotent:
// an already-unlocked PCM and a zero seed both count as success.
func (s *Session) Unlock(algorithmID uint16) vpw.Response[bool] {
	s.notifyDevicePresent()

	seedResp := s.sendRequest(s.factory.SeedRequest(), 5)
	if !seedResp.Ok() {
		return vpw.Failf[bool](seedResp.Status, "no seed response from PCM")
	}
	raw := seedResp.Value.Bytes()

	if s.parser.IsUnlocked(raw) {
		s.log.Debug("PCM reports it is already unlocked")
		s.unlocked = true
		return vpw.OK(true)
	}

	seed := s.parser.ParseSeed(raw)
	if !seed.Ok() {
		return vpw.Failf[bool](seed.Status, seed.Message)
	}
	if seed.Value == 0x0000 {
		s.log.Debug("seed 0000, no unlock required")
		s.unlocked = true
		return vpw.OK(true)
	}

	key := vpw.Key(algorithmID, seed.Value)
	s.log.Debug(fmt.Sprintf("seed %04X, key %04X (algorithm %d)", seed.Value, key, algorithmID))

	unlockResp := s.sendRequest(s.factory.UnlockRequest(key), 5)
	if !unlockResp.Ok() {
		return vpw.Failf[bool](unlockResp.Status, "no unlock response from PCM")
	}

	result, diag := s.parser.ParseUnlockResponse(unlockResp.Value.Bytes())
	if diag != "" {
		s.log.User(diag)
	}
	if result.Ok() {
		s.unlocked = true
	}
	return result
}
