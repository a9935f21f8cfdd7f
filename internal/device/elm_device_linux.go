// internal/device/elm_device_linux.go
// Serial-line ELM/STN scantool driver. The STN1100 family (OBDLink SX/MX)
// is the only ELM-compatible interpreter fast enough for 4x VPW.

package device

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	serial "github.com/daedaluz/goserial"
	"github.com/sirupsen/logrus"

	"pcmflash/pkg/vpw"
)

const (
	// A mode 0x36 payload of 192 bytes plus the 10-byte header and 2-byte
	// sum has to fit in one interpreter transmit buffer.
	elmMaxSendSize = 192 + 12

	elmPrompt = '>'
)

// ElmDevice drives an ELM327/STN interpreter over a serial line in raw
// J1850 VPW mode: frames go out as hex strings, responses come back as hex
// lines terminated by the '>' prompt.
type ElmDevice struct {
	port    *serial.Port
	log     *logrus.Entry
	timeout time.Duration
	fourX   bool
}

// OpenElm opens and probes the interpreter on the named serial port.
func OpenElm(path string, log *logrus.Entry) (*ElmDevice, error) {
	opts := serial.NewOptions().SetReadTimeout(time.Second)
	port, err := serial.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, fmt.Errorf("raw mode on %s: %w", path, err)
	}
	return &ElmDevice{
		port:    port,
		log:     log,
		timeout: ScenarioWrite.Timeout(),
	}, nil
}

// Initialize resets the interpreter and selects J1850 VPW.
func (d *ElmDevice) Initialize() bool {
	d.ClearQueue()

	for _, cmd := range []string{
		"ATZ",   // reset
		"ATE0",  // echo off
		"ATH1",  // headers on, we frame by hand
		"ATAL",  // allow long messages
		"ATSP2", // SAE J1850 VPW
	} {
		reply, err := d.command(cmd)
		if err != nil {
			d.log.WithError(err).Debugf("init command %s failed", cmd)
			return false
		}
		if strings.Contains(reply, "?") {
			d.log.Debugf("interpreter rejected %s: %q", cmd, reply)
			return false
		}
		if cmd == "ATZ" {
			// STN chips identify themselves in the reset banner; only
			// they can do 41.6 kbps.
			d.fourX = strings.Contains(reply, "STN")
		}
	}

	d.log.Debugf("interpreter ready, 4x capable: %v", d.fourX)
	return true
}

// SendFrame transmits one frame as a hex string.
func (d *ElmDevice) SendFrame(m *vpw.Message) bool {
	line := strings.ToUpper(hex.EncodeToString(m.Bytes())) + "\r"
	if _, err := d.port.Write([]byte(line)); err != nil {
		d.log.WithError(err).Debug("serial write failed")
		return false
	}
	return true
}

// ReceiveFrame reads hex lines until a decodable frame or the timeout.
func (d *ElmDevice) ReceiveFrame() *vpw.Message {
	deadline := time.Now().Add(d.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		line, err := d.readLine(remaining)
		if err != nil {
			return nil
		}
		cleaned := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\r' || r == '\n' || r == elmPrompt {
				return -1
			}
			return r
		}, line)
		if cleaned == "" || strings.HasPrefix(cleaned, "NODATA") {
			continue
		}
		frame, err := hex.DecodeString(cleaned)
		if err != nil {
			// Interpreter status text, not a frame.
			continue
		}
		return vpw.Received(frame, vpw.TransportOK)
	}
}

// SetSpeed switches the interpreter between 1x and 4x VPW. STN protocol 12
// is high-speed J1850 VPW; plain ELM chips only know protocol 2.
func (d *ElmDevice) SetSpeed(speed VpwSpeed) bool {
	cmd := "STP 2"
	if speed == FourX {
		if !d.fourX {
			return false
		}
		cmd = "STP 12"
	}
	reply, err := d.command(cmd)
	if err != nil || strings.Contains(reply, "?") {
		d.log.Debugf("speed change to %s failed: %q err=%v", speed, reply, err)
		return false
	}
	return true
}

func (d *ElmDevice) ClearQueue() {
	d.port.Flush(serial.TCIOFLUSH)
}

func (d *ElmDevice) SetTimeout(scenario TimeoutScenario) {
	d.timeout = scenario.Timeout()
}

func (d *ElmDevice) Supports4x() bool {
	return d.fourX
}

func (d *ElmDevice) MaxSendSize() int {
	return elmMaxSendSize
}

func (d *ElmDevice) Dispose() {
	// Best effort: leave the interpreter at 1x for the next tool.
	d.SetSpeed(OneX)
	d.port.Close()
}

// command sends an AT/ST command and collects the reply up to the prompt.
func (d *ElmDevice) command(cmd string) (string, error) {
	d.ClearQueue()
	if _, err := d.port.Write([]byte(cmd + "\r")); err != nil {
		return "", err
	}
	return d.readLine(2 * time.Second)
}

// readLine accumulates bytes until the interpreter prompt or the deadline.
func (d *ElmDevice) readLine(timeout time.Duration) (string, error) {
	var sb strings.Builder
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 64)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("timed out waiting for interpreter")
		}
		n, err := d.port.ReadTimeout(buf, remaining)
		if err != nil {
			return "", err
		}
		for i := 0; i < n; i++ {
			if buf[i] == elmPrompt {
				return sb.String(), nil
			}
			sb.WriteByte(buf[i])
		}
		if n > 0 && strings.HasSuffix(sb.String(), "\r") && sb.Len() > 1 {
			return sb.String(), nil
		}
	}
}
