//go:build mips || mipsle

// gousb needs libusb, which the small MIPS router builds don't carry.

package device

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func OpenAvt(log *logrus.Entry) (Device, error) {
	return nil, fmt.Errorf("AVT USB support is not built on MIPS")
}
