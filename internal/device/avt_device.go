//go:build !mips && !mipsle

// internal/device/avt_device.go
// AVT-852 USB pass-through driver. Uses direct USB bulk transfers; the AVT
// speaks a small length-prefixed wrapper around raw VPW frames.

package device

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"pcmflash/pkg/vpw"
)

const (
	avtVendorID  = 0x0403
	avtProductID = 0xCB52

	avtEndpointOut = 0x02
	avtEndpointIn  = 0x81

	// The AVT transmit buffer takes a whole kernel chunk at once.
	avtMaxSendSize = 4096 + 12

	// Wrapper opcodes.
	avtOpFrame     = 0x0C // payload is one VPW frame
	avtOpSetSpeed  = 0xC1 // one operand byte: 0 = 1x, 1 = 4x
	avtOpFlush     = 0x60
	avtAckSetSpeed = 0x91
)

// AvtDevice is the USB-attached AVT pass-through box.
type AvtDevice struct {
	ctx     *gousb.Context
	device  *gousb.Device
	cfg     *gousb.Config
	intf    *gousb.Interface
	epOut   *gousb.OutEndpoint
	epIn    *gousb.InEndpoint
	log     *logrus.Entry
	timeout time.Duration
}

// OpenAvt opens the AVT box by vendor/product id and claims its bulk
// endpoints.
func OpenAvt(log *logrus.Entry) (*AvtDevice, error) {
	ctx := gousb.NewContext()

	device, err := ctx.OpenDeviceWithVIDPID(avtVendorID, avtProductID)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("open AVT device: %w", err)
	}
	if device == nil {
		ctx.Close()
		return nil, fmt.Errorf("AVT device not found (VID:0x%04x PID:0x%04x)", avtVendorID, avtProductID)
	}

	cfg, err := device.Config(1)
	if err != nil {
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("set USB config: %w", err)
	}

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim USB interface: %w", err)
	}

	epOut, err := intf.OutEndpoint(avtEndpointOut)
	if err != nil {
		intf.Close()
		cfg.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("open OUT endpoint: %w", err)
	}

	epIn, err := intf.InEndpoint(avtEndpointIn)
	if err != nil {
		intf.Close()
		cfg.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("open IN endpoint: %w", err)
	}

	return &AvtDevice{
		ctx:     ctx,
		device:  device,
		cfg:     cfg,
		intf:    intf,
		epOut:   epOut,
		epIn:    epIn,
		log:     log,
		timeout: ScenarioWrite.Timeout(),
	}, nil
}

// Initialize drains the box and forces it back to 1x.
func (d *AvtDevice) Initialize() bool {
	d.ClearQueue()
	if !d.SetSpeed(OneX) {
		return false
	}
	d.log.Debug("AVT ready")
	return true
}

// SendFrame wraps one VPW frame in the AVT transmit opcode.
func (d *AvtDevice) SendFrame(m *vpw.Message) bool {
	frame := m.Bytes()
	packet := make([]byte, 3+len(frame))
	packet[0] = avtOpFrame
	packet[1] = byte(len(frame) >> 8)
	packet[2] = byte(len(frame))
	copy(packet[3:], frame)

	if _, err := d.epOut.Write(packet); err != nil {
		d.log.WithError(err).Debug("USB write failed")
		return false
	}
	return true
}

// ReceiveFrame reads one wrapped frame, skipping box status packets.
func (d *AvtDevice) ReceiveFrame() *vpw.Message {
	deadline := time.Now().Add(d.timeout)
	buf := make([]byte, 4096+16)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), remaining)
		n, err := d.epIn.ReadContext(ctx, buf)
		cancel()
		if err != nil {
			return nil
		}
		if n < 3 || buf[0] != avtOpFrame {
			continue
		}
		length := int(buf[1])<<8 | int(buf[2])
		if length > n-3 {
			length = n - 3
		}
		frame := make([]byte, length)
		copy(frame, buf[3:3+length])
		return vpw.Received(frame, vpw.TransportOK)
	}
}

// SetSpeed issues the AVT speed opcode and waits for its acknowledgement.
func (d *AvtDevice) SetSpeed(speed VpwSpeed) bool {
	operand := byte(0)
	if speed == FourX {
		operand = 1
	}
	if _, err := d.epOut.Write([]byte{avtOpSetSpeed, operand}); err != nil {
		d.log.WithError(err).Debug("speed command failed")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	buf := make([]byte, 16)
	n, err := d.epIn.ReadContext(ctx, buf)
	if err != nil || n < 1 || buf[0] != avtAckSetSpeed {
		d.log.Debugf("no speed ack (n=%d err=%v)", n, err)
		return false
	}
	return true
}

func (d *AvtDevice) ClearQueue() {
	d.epOut.Write([]byte{avtOpFlush})
	// Drain anything already buffered on the IN endpoint.
	buf := make([]byte, 4096)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := d.epIn.ReadContext(ctx, buf)
		cancel()
		if err != nil {
			return
		}
	}
}

func (d *AvtDevice) SetTimeout(scenario TimeoutScenario) {
	d.timeout = scenario.Timeout()
}

func (d *AvtDevice) Supports4x() bool {
	return true
}

func (d *AvtDevice) MaxSendSize() int {
	return avtMaxSendSize
}

func (d *AvtDevice) Dispose() {
	// Never leave the bus at 4x for the next occupant.
	d.SetSpeed(OneX)
	if d.intf != nil {
		d.intf.Close()
	}
	if d.cfg != nil {
		d.cfg.Close()
	}
	if d.device != nil {
		d.device.Close()
	}
	if d.ctx != nil {
		d.ctx.Close()
	}
}
