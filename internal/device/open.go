// internal/device/open.go
package device

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Open selects and initializes a scantool driver by name.
func Open(deviceType, serialPort string, log *logrus.Entry) (Device, error) {
	var (
		dev Device
		err error
	)
	switch deviceType {
	case "elm":
		dev, err = OpenElm(serialPort, log)
	case "avt":
		dev, err = OpenAvt(log)
	default:
		return nil, fmt.Errorf("unknown device type %q (want elm or avt)", deviceType)
	}
	if err != nil {
		return nil, err
	}
	if !dev.Initialize() {
		dev.Dispose()
		return nil, fmt.Errorf("%s device did not initialize", deviceType)
	}
	return dev, nil
}
