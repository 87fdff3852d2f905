// Package bus defines the electrical interface between the PATA protocol and
// the pins wired to the drive. Platform code implements Bus; the protocol
// layers never touch pins directly.
package bus

// Line identifies one of the two strobe lines.
type Line uint8

const (
	// LineRead is the read strobe (DIOR-, device pin 25).
	LineRead Line = iota
	// LineWrite is the write strobe (DIOW-, device pin 23).
	LineWrite
)

func (l Line) String() string {
	switch l {
	case LineRead:
		return "DIOR"
	case LineWrite:
		return "DIOW"
	default:
		return "unknown"
	}
}

// StrobeState is the logical state of a strobe line.
type StrobeState int8

// Strobe states. The PATA strobes are active low, so Assert drives the line
// low and Negate drives it high.
const (
	HighZ  StrobeState = 0
	Assert StrobeState = -1
	Negate StrobeState = 1
)

// Driven reports whether the line's output driver is enabled.
func (s StrobeState) Driven() bool {
	return s != HighZ
}

// Level returns the electrical level for the state: true for high.
// A released line reports low so that no pull-up is left enabled.
func (s StrobeState) Level() bool {
	return s == Negate
}

func (s StrobeState) String() string {
	switch s {
	case HighZ:
		return "hi-z"
	case Assert:
		return "assert"
	case Negate:
		return "negate"
	default:
		return "invalid"
	}
}

// Direction is the direction of the 8-bit data bus, seen from the host.
type Direction uint8

const (
	// Input: drive -> host.
	Input Direction = iota
	// Output: host -> drive.
	Output
)

// Register is a 3-bit command block register address.
type Register uint8

// AddressMask selects the three address lines (device pins 35, 33, 36).
const AddressMask Register = 0x07

// Bus is the abstract bus interface that the protocol code uses.
// Platform-specific implementations handle actual pin control. None of the
// operations can fail: they are plain pin manipulations.
type Bus interface {
	// Configure resolves pin handles. It is called once, before the first
	// strobe is touched.
	Configure()

	// SetStrobe puts a strobe line into the given state.
	SetStrobe(line Line, state StrobeState)

	// SetDataDirection switches the 8 data lines between input and output.
	SetDataDirection(dir Direction)

	// WriteData drives a value onto the data bus. Only valid in Output.
	WriteData(value byte)

	// ReadData samples the data bus. Only valid in Input.
	ReadData() byte

	// SetAddress puts a register address on the address lines.
	SetAddress(addr Register)
}
