// internal/session/upload.go
// Kernel upload: chunk the payload into device-sized block messages, send
// high-to-low, and let the lowest-addressed chunk trigger execution.

package session

import (
	"context"
	"fmt"

	"pcmflash/pkg/vpw"
)

// blockOverhead is the 10-byte block message header plus the 2-byte sum.
const blockOverhead = 12

// chunk is one planned block message.
type chunk struct {
	offset  int
	length  int
	execute bool
}

// planChunks slices a payload for upload. The remainder goes first at the
// highest offset; full chunks follow from high to low so that every byte
// above the entry point is resident before the offset-0 chunk arrives and
// starts execution. Exactly one chunk carries the execute flag.
func planChunks(payloadLen, chunkSize int) []chunk {
	if payloadLen <= 0 || chunkSize <= 0 {
		return nil
	}
	n := payloadLen / chunkSize
	r := payloadLen % chunkSize

	plan := make([]chunk, 0, n+1)
	if r > 0 {
		plan = append(plan, chunk{offset: n * chunkSize, length: r, execute: r == payloadLen})
	}
	for i := n; i >= 1; i-- {
		offset := (i - 1) * chunkSize
		plan = append(plan, chunk{offset: offset, length: chunkSize, execute: offset == 0})
	}
	return plan
}

// PCMExecute loads payload into PCM RAM at base and transfers control to it.
// On success the kernel owns the bus until exit-kernel.
func (s *Session) PCMExecute(ctx context.Context, payload []byte, base uint32) vpw.Response[bool] {
	if s.kernelRunning {
		return vpw.Failf[bool](vpw.Error, "a kernel is already running")
	}
	if len(payload) == 0 {
		return vpw.Failf[bool](vpw.Error, "empty kernel payload")
	}

	s.suppressChatter()

	s.log.User(fmt.Sprintf("Requesting permission to upload %d bytes to %06X...", len(payload), base))
	permission := s.sendRequest(s.factory.UploadRequest(uint32(len(payload)), base), 5)
	if !permission.Ok() {
		return vpw.Failf[bool](permission.Status, "PCM did not answer the upload request")
	}
	if granted := s.parser.ParseUploadResponse(permission.Value.Bytes()); !granted.Ok() {
		return vpw.Failf[bool](granted.Status, "PCM denied the upload request")
	}

	chunkSize := s.dev.MaxSendSize() - blockOverhead
	sent := 0
	for _, c := range planChunks(len(payload), chunkSize) {
		if err := ctx.Err(); err != nil {
			return vpw.Failf[bool](vpw.Cancelled, "upload cancelled")
		}
		s.suppressChatter()

		msg := s.factory.BlockMessage(payload, c.offset, c.length, base+uint32(c.offset), c.execute)
		resp := s.sendRequest(msg, 5)
		if !resp.Ok() {
			return vpw.Failf[bool](resp.Status,
				fmt.Sprintf("upload failed at offset %d", c.offset))
		}

		sent += c.length
		s.progress(sent * 100 / len(payload))
	}

	s.kernelRunning = true
	s.log.User("Kernel uploaded and started.")
	return vpw.OK(true)
}
