//go:build !linux

package device

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// OpenElm requires termios support; only the Linux build carries the serial
// driver.
func OpenElm(path string, log *logrus.Entry) (Device, error) {
	return nil, fmt.Errorf("serial scantool support is only built on linux")
}
