// Package serial reads the diagnostics the firmware prints on its UART.
package serial

import (
	"io"
	"time"

	"cfcard/config"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate of the firmware UART
	Baud int

	// Read timeout (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultConfig returns the firmware UART settings for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// FromConfig converts the serial section of the tool configuration
func FromConfig(c config.SerialConfig) *Config {
	return &Config{
		Device:      c.Device,
		Baud:        c.Baud,
		ReadTimeout: c.ReadTimeout(),
	}
}
