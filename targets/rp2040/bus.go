//go:build rp2040

package main

import (
	"machine"

	"cfcard/bus"
)

// Pin assignment of the PATA connector
const (
	pinData0 = machine.GPIO2  // D0..D7 on GPIO2..GPIO9
	pinAddr0 = machine.GPIO10 // A0..A2 on GPIO10..GPIO12
	pinDIOR  = machine.GPIO13
	pinDIOW  = machine.GPIO14
	pinIRQ   = machine.GPIO15
)

var (
	pinOutput = machine.PinConfig{Mode: machine.PinOutput}
	pinInput  = machine.PinConfig{Mode: machine.PinInput}
)

// RPBus implements bus.Bus on RP2040 GPIOs
type RPBus struct {
	data    [8]machine.Pin
	addr    [3]machine.Pin
	strobes [2]machine.Pin

	// output driver state per strobe line
	driven [2]bool
	dir    bus.Direction
}

var _ bus.Bus = (*RPBus)(nil)

// NewRPBus creates the bus on the standard pin assignment
func NewRPBus() *RPBus {
	b := &RPBus{}
	for i := range b.data {
		b.data[i] = pinData0 + machine.Pin(i)
	}
	for i := range b.addr {
		b.addr[i] = pinAddr0 + machine.Pin(i)
	}
	b.strobes[bus.LineRead] = pinDIOR
	b.strobes[bus.LineWrite] = pinDIOW
	return b
}

// Configure sets up the address lines and leaves the data bus reading and
// the strobes released
func (b *RPBus) Configure() {
	for _, p := range b.addr {
		p.Configure(pinOutput)
	}
	for i, p := range b.strobes {
		p.Configure(pinInput)
		b.driven[i] = false
	}
	b.dir = bus.Input
	for _, p := range b.data {
		p.Configure(pinInput)
	}
}

// SetStrobe drives a strobe line or releases it
func (b *RPBus) SetStrobe(line bus.Line, state bus.StrobeState) {
	if line > bus.LineWrite {
		return
	}
	p := b.strobes[line]
	if !state.Driven() {
		if b.driven[line] {
			p.Configure(pinInput)
			b.driven[line] = false
		}
		return
	}
	// level first, so the line does not glitch when the driver turns on
	p.Set(state.Level())
	if !b.driven[line] {
		p.Configure(pinOutput)
		b.driven[line] = true
	}
}

// SetDataDirection turns the data bus around
func (b *RPBus) SetDataDirection(dir bus.Direction) {
	if dir == b.dir {
		return
	}
	cfg := pinInput
	if dir == bus.Output {
		cfg = pinOutput
	}
	for _, p := range b.data {
		p.Configure(cfg)
	}
	b.dir = dir
}

// WriteData puts a byte on the data bus
func (b *RPBus) WriteData(value byte) {
	for i, p := range b.data {
		p.Set(value&(1<<i) != 0)
	}
}

// ReadData samples the data bus
func (b *RPBus) ReadData() byte {
	var v byte
	for i, p := range b.data {
		if p.Get() {
			v |= 1 << i
		}
	}
	return v
}

// SetAddress selects a command block register
func (b *RPBus) SetAddress(addr bus.Register) {
	for i, p := range b.addr {
		p.Set(addr&(1<<i) != 0)
	}
}

// AttachInterrupt calls handler on each rising edge of INTRQ
func (b *RPBus) AttachInterrupt(handler func()) error {
	pinIRQ.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return pinIRQ.SetInterrupt(machine.PinRising, func(machine.Pin) {
		handler()
	})
}
