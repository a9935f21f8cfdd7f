// internal/session/read.go
// Bulk read: stream the flash image out of a running read kernel.

package session

import (
	"context"
	"fmt"

	"pcmflash/pkg/vpw"
)

// readBlockSize fits comfortably inside one VPW frame.
const readBlockSize = 200

const readAttempts = 5

// ReadContents pulls the full flash image through the read kernel. The
// kernel must already be running. Whatever happens, the exit path runs: the
// kernel is told to quit twice and the bus is forced back to 1x, because a
// PCM left in kernel mode or at 4x may not start the engine.
func (s *Session) ReadContents(ctx context.Context, info PcmInfo) vpw.Response[[]byte] {
	if !s.kernelRunning {
		return vpw.Failf[[]byte](vpw.Error, "read kernel is not running")
	}

	defer func() {
		s.log.Debug("read finished, sending exit-kernel and restoring 1x")
		s.recover()
	}()

	image := make([]byte, info.ImageSize)
	end := info.ImageBaseAddress + uint32(info.ImageSize)

	for addr := info.ImageBaseAddress; addr < end; addr += readBlockSize {
		if err := ctx.Err(); err != nil {
			return vpw.Failf[[]byte](vpw.Cancelled, "read cancelled")
		}

		length := uint32(readBlockSize)
		if addr+length > end {
			length = end - addr
		}

		s.suppressChatter()
		if !s.tryReadBlock(image, info.ImageBaseAddress, addr, uint16(length)) {
			return vpw.Failf[[]byte](vpw.Error,
				fmt.Sprintf("giving up on block at %06X", addr))
		}

		done := int(addr - info.ImageBaseAddress + length)
		s.progress(done * 100 / info.ImageSize)
	}

	return vpw.OK(image)
}

// tryReadBlock requests one block and copies its payload into the image.
// The kernel answers with an acceptance frame followed by a payload frame,
// either literal (0x01) or run-length encoded (0x02).
func (s *Session) tryReadBlock(image []byte, base, addr uint32, length uint16) bool {
	for attempt := 0; attempt < readAttempts; attempt++ {
		if !s.dev.SendFrame(s.factory.ReadRequest(addr, length)) {
			continue
		}

		ack := s.receiveResponse()
		if ack == nil {
			continue
		}
		accepted := s.parser.ParseReadResponse(ack.Bytes())
		if !accepted.Ok() || !accepted.Value {
			continue
		}

		payload := s.receiveResponse()
		if payload == nil {
			continue
		}
		if s.storePayload(image, base, addr, length, payload.Bytes()) {
			return true
		}
	}
	return false
}

// storePayload decodes one payload frame into image[addr-base ...].
func (s *Session) storePayload(image []byte, base, addr uint32, length uint16, b []byte) bool {
	if len(b) < 11 {
		return false
	}
	dst := int(addr - base)

	switch b[4] {
	case 0x01:
		// Literal: length bytes starting at b[10].
		if len(b) < 10+int(length) {
			return false
		}
		copy(image[dst:dst+int(length)], b[10:10+int(length)])
		return true
	case 0x02:
		// Run-length encoded: one value byte repeated run times.
		run := int(b[5])<<8 | int(b[6])
		if run <= 0 {
			return false
		}
		if dst+run > len(image) {
			run = len(image) - dst
		}
		for i := 0; i < run; i++ {
			image[dst+i] = b[10]
		}
		return true
	}
	return false
}
