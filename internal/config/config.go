// internal/config/config.go
// Tool configuration. Like the kernel binaries, the optional pcmflash.env
// file lives next to the executable; process environment variables win over
// file entries.

package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config selects the scantool and the kernel binaries.
type Config struct {
	DeviceType  string // "elm" or "avt"
	SerialPort  string
	Enable4x    bool
	ReadKernel  string
	WriteKernel string
	MonitorAddr string
}

// envFile sits beside the binary so a flashing laptop can be set up by
// dropping one directory in place.
const envFile = "pcmflash.env"

// keys maps every recognized variable to its field.
var keys = map[string]func(*Config, string){
	"PCMFLASH_DEVICE":       func(c *Config, v string) { c.DeviceType = v },
	"PCMFLASH_PORT":         func(c *Config, v string) { c.SerialPort = v },
	"PCMFLASH_4X":           func(c *Config, v string) { c.Enable4x = enabled(v) },
	"PCMFLASH_READ_KERNEL":  func(c *Config, v string) { c.ReadKernel = v },
	"PCMFLASH_WRITE_KERNEL": func(c *Config, v string) { c.WriteKernel = v },
	"PCMFLASH_MONITOR_ADDR": func(c *Config, v string) { c.MonitorAddr = v },
}

var loaded *Config

// Defaults returns the stock configuration.
func Defaults() *Config {
	return &Config{
		DeviceType:  "elm",
		SerialPort:  "/dev/ttyUSB0",
		Enable4x:    true,
		ReadKernel:  "kernels/read-kernel.bin",
		WriteKernel: "kernels/write-kernel.bin",
		MonitorAddr: ":9853",
	}
}

// Load reads the configuration once and caches it.
func Load() *Config {
	if loaded != nil {
		return loaded
	}

	cfg := Defaults()
	readEnvFile(cfg)
	for key, set := range keys {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			set(cfg, v)
		}
	}

	loaded = cfg
	return cfg
}

// readEnvFile applies KEY=value lines from the file next to the executable.
// A missing or unreadable file just means defaults.
func readEnvFile(cfg *Config) {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	f, err := os.Open(filepath.Join(filepath.Dir(exe), envFile))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if strings.HasPrefix(key, "#") {
			continue
		}
		if set, known := keys[key]; known {
			set(cfg, strings.TrimSpace(value))
		}
	}
}

func enabled(v string) bool {
	return v != "0" && !strings.EqualFold(v, "false")
}
