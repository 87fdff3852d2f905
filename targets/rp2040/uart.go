//go:build rp2040

package main

import (
	"machine"
)

var debugUART *machine.UART

// InitDebugUART initializes UART0 on GPIO0 (TX) and GPIO1 (RX)
// Baud rate: 115200
func InitDebugUART() error {
	debugUART = machine.UART0
	return debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
}

// DebugPrintln writes a string to the debug UART with newline
func DebugPrintln(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
