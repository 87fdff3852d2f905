package sdemu

import (
	"fmt"
	"log/slog"

	"cfcard/diag"
	"cfcard/pata"
)

// Disk is the block device behind a Card. *pata.Drive implements it.
type Disk interface {
	Init(preferLBA bool) (pata.Mode, error)
	ReadMultiple(sector uint32, buf []byte) (int, error)
	WriteMultiple(sector uint32, buf []byte) error
	ResetReadCursor()
	ResetWriteCursor()
}

var _ Disk = (*pata.Drive)(nil)

// Options configures a Card.
type Options struct {
	// PreferLBA is passed to Disk.Init. A drive that ends up in CHS mode
	// fails GO_IDLE_STATE, since the card only offers block addressing.
	PreferLBA bool

	// Logger defaults to the sd component logger.
	Logger *slog.Logger
}

// DefaultOptions returns options requesting LBA addressing.
func DefaultOptions() Options {
	return Options{PreferLBA: true}
}

// Session is a snapshot of the transfer bookkeeping of a Card.
type Session struct {
	Command         Command
	Argument        uint32
	ReadInProgress  bool
	WriteInProgress bool
	SectorsWritten  uint32

	// InitErr is the drive error of the last GO_IDLE_STATE, nil if the
	// drive came up.
	InitErr error
}

// Card emulates an SD card in SPI mode on top of a Disk.
//
// Block transfers never report a drive failure to the host through the SD
// responses: a failed read leaves the buffer as it was and a failed write is
// acknowledged anyway. The Go return values of SendBlock and ReceiveBlock
// carry the error.
type Card struct {
	disk Disk
	opts Options
	log  *slog.Logger

	dec Decoder
	out Emitter

	reading bool
	writing bool
	written uint32

	mode          pata.Mode
	initErr       error
	unknownLogged bool
}

// NewCard creates a card backed by disk. The disk is initialized by the
// first GO_IDLE_STATE.
func NewCard(disk Disk, opts Options) *Card {
	if opts.Logger == nil {
		opts.Logger = diag.Logger(diag.ComponentSD)
	}
	return &Card{
		disk: disk,
		opts: opts,
		log:  opts.Logger,
	}
}

// Send consumes one byte from the host.
func (c *Card) Send(b byte) {
	switch ev := c.dec.Feed(b); ev {
	case EventCommand:
		c.out.Reset()
		c.unknownLogged = false
		switch c.dec.Command() {
		case CmdReadMultipleBlock:
			c.disk.ResetReadCursor()
		case CmdWriteMultipleBlock:
			c.disk.ResetWriteCursor()
		}
	case EventFrameEnd:
		c.log.Debug("command", "cmd", c.dec.Command(), "arg", fmt.Sprintf("0x%08x", c.dec.Argument()))
	case EventStartBlock:
		c.written++
		c.writing = true
	case EventStopTran:
		c.writing = false
	case EventReadStop:
		c.reading = false
	case EventIgnored:
		c.log.Debug("ignored", "token", fmt.Sprintf("0x%02x", b))
	}
}

// Receive returns the next response byte for the current command.
func (c *Card) Receive() byte {
	switch cmd := c.dec.Command(); cmd {
	case CmdGoIdleState:
		// once per response cycle
		if c.out.Pos() == 0 {
			c.mode, c.initErr = c.disk.Init(c.opts.PreferLBA)
			if c.initErr != nil {
				c.log.Debug("drive init failed", "err", c.initErr)
			}
		}
		if c.mode != pata.ModeLBA {
			return c.out.Next(respGoIdleError)
		}
		return c.out.Next(respGoIdle)

	case CmdSendIfCond:
		return c.out.Next(respSendIfCond)

	case CmdStopTransmission:
		return c.out.Next(respStop)

	case CmdReadMultipleBlock:
		if c.reading {
			return c.out.Next(respReadNext)
		}
		return c.out.Next(respReadFirst)

	case CmdWriteMultipleBlock:
		return c.writeResponse()

	case AcmdSendOpCond:
		return c.out.Next(respSendOpCond)

	case CmdAppCmd:
		return c.out.Next(respAppCmd)

	case CmdReadOCR:
		return c.out.Next(respReadOCR)

	default:
		if !c.unknownLogged {
			c.log.Error("unknown command", "cmd", cmd, "arg", fmt.Sprintf("0x%08x", c.dec.Argument()))
			c.unknownLogged = true
		}
		return 0
	}
}

func (c *Card) writeResponse() byte {
	if c.writing {
		return c.out.Next(respWriteNext)
	}

	var b byte
	switch c.written {
	case 0:
		return c.out.Next(respWriteStart)
	case 1:
		b = c.out.Next(respWriteSingleEnd)
	default:
		b = c.out.Next(respWriteMultiEnd)
	}
	if c.out.Pos() == 0 {
		c.written = 0
	}
	return b
}

// SendBlock writes one block from the host to the next sector of the
// current WRITE_MULTIPLE_BLOCK.
func (c *Card) SendBlock(buf []byte) error {
	return c.disk.WriteMultiple(c.dec.Argument(), buf)
}

// ReceiveBlock reads the next sector of the current READ_MULTIPLE_BLOCK
// into buf.
func (c *Card) ReceiveBlock(buf []byte) (int, error) {
	c.reading = true
	return c.disk.ReadMultiple(c.dec.Argument(), buf)
}

// Command returns the command being answered.
func (c *Card) Command() Command {
	return c.dec.Command()
}

// Mode returns the drive mode seen by the last GO_IDLE_STATE.
func (c *Card) Mode() pata.Mode {
	return c.mode
}

// Session returns the current transfer bookkeeping.
func (c *Card) Session() Session {
	return Session{
		Command:         c.dec.Command(),
		Argument:        c.dec.Argument(),
		ReadInProgress:  c.reading,
		WriteInProgress: c.writing,
		SectorsWritten:  c.written,
		InitErr:         c.initErr,
	}
}
