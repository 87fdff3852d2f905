package sdemu

// State is the position of a Decoder inside a command frame.
type State uint8

const (
	StateIdle     State = iota // between frames; control tokens are recognized
	StateArgument              // collecting the four argument bytes
	StateChecksum              // next byte is the CRC
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArgument:
		return "argument"
	case StateChecksum:
		return "checksum"
	default:
		return "unknown"
	}
}

// Event is what a single byte meant to the decoder.
type Event uint8

const (
	EventNone       Event = iota // byte belongs to the current frame
	EventCommand                 // a new frame started
	EventFrameEnd                // checksum consumed, frame complete
	EventStartBlock              // multiple block write token
	EventStopTran                // end of multiple block write
	EventReadStop                // idle byte after STOP_TRANSMISSION
	EventPadding                 // idle byte
	EventIgnored                 // any other 0xFx byte between frames
)

// Decoder splits the host's byte stream into six-byte command frames: a
// command byte of the form 01xxxxxx, a big-endian 32-bit argument and a CRC.
// Between frames, bytes with the top nibble set are in-band tokens and do
// not move the decoder.
//
// A byte arriving between frames that is neither a token nor a command byte
// is taken as an argument byte. The decoder then runs one position ahead
// until the next checksum slot brings it back to idle.
//
// The zero value is ready to use; its last command is GO_IDLE_STATE.
type Decoder struct {
	pos int
	cmd Command
	arg uint32
}

// Feed consumes one byte from the host.
func (d *Decoder) Feed(b byte) Event {
	if d.pos == 0 && b&0xF0 == 0xF0 {
		switch {
		case b == TokenWriteMultiple:
			return EventStartBlock
		case b == TokenStopTran:
			return EventStopTran
		case b == Idle && d.cmd == CmdStopTransmission:
			return EventReadStop
		case b == Idle:
			return EventPadding
		default:
			return EventIgnored
		}
	}

	switch {
	case d.pos == 0 && b&0xC0 == 0x40:
		d.arg = 0
		d.cmd = Command(b & 0x3F)
		d.pos = 1
		return EventCommand
	case d.pos <= 4:
		d.arg = d.arg<<8 | uint32(b)
		d.pos++
		return EventNone
	default:
		d.pos = 0
		return EventFrameEnd
	}
}

// State returns where the decoder is inside a frame.
func (d *Decoder) State() State {
	switch {
	case d.pos == 0:
		return StateIdle
	case d.pos <= 4:
		return StateArgument
	default:
		return StateChecksum
	}
}

// Pos returns the index of the next byte within the frame, 0 to 5.
func (d *Decoder) Pos() int { return d.pos }

// Command returns the command of the last frame started.
func (d *Decoder) Command() Command { return d.cmd }

// Argument returns the argument accumulated so far.
func (d *Decoder) Argument() uint32 { return d.arg }
