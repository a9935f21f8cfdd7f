// internal/session/write.go
// Block writes (VIN and friends) and the full flash write path.

package session

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"pcmflash/internal/device"
	"pcmflash/pkg/vpw"
)

// flashChunkSize is the write kernel's streaming block size.
const flashChunkSize = 192

// WriteBlock writes one 6-byte block. The PCM acknowledges with an exact
// echo frame; anything else from a live PCM is a rejection, which is a
// different failure than a dead bus.
func (s *Session) WriteBlock(id vpw.BlockId, data []byte) vpw.Response[bool] {
	if !s.unlocked {
		return vpw.Failf[bool](vpw.Error, "PCM is not unlocked")
	}
	req, err := s.factory.WriteBlockRequest(id, data)
	if err != nil {
		return vpw.Failf[bool](vpw.Error, err.Error())
	}

	resp := s.sendRequest(req, 5)
	if !resp.Ok() {
		return vpw.Failf[bool](resp.Status, fmt.Sprintf("no response writing %s block", id))
	}

	expected := s.factory.WriteBlockAck(id).Bytes()
	if !bytes.Equal(resp.Value.Bytes(), expected) {
		return vpw.Failf[bool](vpw.Refused, "PCM rejected attempt")
	}
	return vpw.OK(true)
}

// WriteVin writes a 17-character VIN across its three blocks, in order.
func (s *Session) WriteVin(vin string) vpw.Response[bool] {
	if !s.unlocked {
		return vpw.Failf[bool](vpw.Error, "PCM is not unlocked")
	}
	if len(vin) != 17 {
		return vpw.Failf[bool](vpw.Error, fmt.Sprintf("VIN must be 17 characters, got %d", len(vin)))
	}

	v := []byte(vin)
	blocks := []struct {
		id   vpw.BlockId
		data []byte
	}{
		{vpw.BlockVin1, append([]byte{0x00}, v[0:5]...)},
		{vpw.BlockVin2, v[5:11]},
		{vpw.BlockVin3, v[11:17]},
	}

	for _, b := range blocks {
		if r := s.WriteBlock(b.id, b.data); !r.Ok() {
			return vpw.Failf[bool](vpw.Error,
				fmt.Sprintf("VIN write failed on %s: %s", blockName(b.id), r.Message))
		}
	}
	return vpw.OK(true)
}

func blockName(id vpw.BlockId) string {
	switch id {
	case vpw.BlockVin1:
		return "block 1"
	case vpw.BlockVin2:
		return "block 2"
	case vpw.BlockVin3:
		return "block 3"
	}
	return id.String()
}

// Write streams a flash image into the PCM through the write kernel,
// loading the kernel first if none is running. Only the full write is
// implemented; the calibration-only path is still open.
func (s *Session) Write(ctx context.Context, full bool, info PcmInfo, kernelFile string, stream io.Reader) vpw.Response[bool] {
	if !full {
		return vpw.Failf[bool](vpw.Error, "calibration-only write is not implemented")
	}

	// Chatter accumulated in the device queue must not be mistaken for
	// write acknowledgements.
	s.dev.ClearQueue()

	if !s.kernelRunning {
		kernel := ReadKernelFile(kernelFile)
		if !kernel.Ok() {
			return vpw.Failf[bool](kernel.Status, kernel.Message)
		}
		if err := ctx.Err(); err != nil {
			return vpw.Failf[bool](vpw.Cancelled, "write cancelled before kernel upload")
		}
		if r := s.PCMExecute(ctx, kernel.Value, info.KernelBaseAddress); !r.Ok() {
			return r
		}
	}

	// Flash erase and programming stall the kernel for whole seconds.
	s.dev.SetTimeout(device.ScenarioMaximum)

	if !s.sendAndValidate(
		s.factory.StartFullFlash(),
		s.parser.ParseStartFullFlashResponse,
		"start full flash",
		"Flash write started.",
		"The PCM never acknowledged the flash write request.",
		true,
	) {
		return vpw.Failf[bool](vpw.Error, "start full flash refused")
	}

	written := 0
	buf := make([]byte, flashChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return vpw.Failf[bool](vpw.Cancelled, "write cancelled")
		}

		n, err := io.ReadFull(stream, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return vpw.Failf[bool](vpw.Error, fmt.Sprintf("image stream: %v", err))
		}
		if n == 0 {
			break
		}

		msg := s.factory.FlashBlockMessage(buf[:n])
		if !s.sendAndValidate(
			msg,
			s.parser.ParseStartFullFlashResponse,
			fmt.Sprintf("flash block at %d", written),
			"",
			"",
			true,
		) {
			return vpw.Failf[bool](vpw.Error,
				fmt.Sprintf("flash write failed %d bytes in", written))
		}

		written += n
		if info.ImageSize > 0 {
			s.progress(written * 100 / info.ImageSize)
		}
		if err == io.ErrUnexpectedEOF {
			break
		}
	}

	s.log.User(fmt.Sprintf("Flash write complete, %d bytes.", written))
	return vpw.OK(true)
}
