// Package sim provides a register-level model of a PATA drive that
// implements bus.Bus. It reacts to strobe edges the way a drive does, so the
// protocol code can be exercised without hardware.
package sim

import (
	"cfcard/ata"
	"cfcard/bus"
)

// Options controls the behaviour of the simulated drive.
type Options struct {
	// Sectors is the drive capacity. Zero derives it from the store size
	// when the store reports one.
	Sectors uint32

	// PowerOnBusyReads is the number of status reads reporting BSY after
	// power-up. At least one read is always busy, as with a real drive
	// spinning up.
	PowerOnBusyReads int

	// CommandBusyReads is the number of status reads reporting BSY after
	// every command.
	CommandBusyReads int

	// Absent makes every status read return 0x00, as an unconnected bus
	// with pull-downs does.
	Absent bool

	// StuckBusy keeps BSY set forever.
	StuckBusy bool

	// NoLBA leaves the LBA bit clear after "initialize device parameters".
	NoLBA bool

	// No8Bit aborts the 8-bit transfer feature.
	No8Bit bool
}

type transfer uint8

const (
	transferNone transfer = iota
	transferRead
	transferWrite
)

// Drive is a simulated PATA drive on an 8-bit bus.
type Drive struct {
	opts  Options
	store Storage

	// Bus side
	dir     bus.Direction
	addr    bus.Register
	dataOut byte // driven by the host
	dataIn  byte // driven by the drive
	strobes [2]bus.StrobeState

	// Command block
	status   byte
	errReg   byte
	features byte
	count    byte
	lba      [3]byte
	dh       byte
	busy     int

	buf    [ata.SectorSize]byte
	bufPos int
	xfer   transfer
	sector uint32

	// Observations for tests
	Configured  int      // Configure calls
	StrobeEdges int      // strobe assertions of either line
	StatusReads int      // reads of the status register
	Commands    []byte   // command register writes, in order
	DHWrites    []byte   // drive/head register writes, in order
	ReadLog     []uint32 // sectors served by read commands
	WriteLog    []uint32 // sectors committed by write commands
	StoreErrors int      // failed store accesses
}

var _ bus.Bus = (*Drive)(nil)

// New creates a simulated drive on top of store.
func New(store Storage, opts Options) *Drive {
	if opts.Sectors == 0 {
		if s, ok := store.(interface{ Size() int64 }); ok {
			opts.Sectors = uint32(s.Size() / ata.SectorSize)
		}
	}
	return &Drive{
		opts:    opts,
		store:   store,
		status:  ata.StatusReady | ata.StatusSeek,
		busy:    max(1, opts.PowerOnBusyReads),
		strobes: [2]bus.StrobeState{bus.HighZ, bus.HighZ},
	}
}

// Configure implements bus.Bus.
func (d *Drive) Configure() {
	d.Configured++
}

// SetStrobe implements bus.Bus. A read strobe assertion puts the addressed
// register on the bus; a write strobe negation latches the bus into it.
func (d *Drive) SetStrobe(line bus.Line, state bus.StrobeState) {
	if line > bus.LineWrite {
		return
	}
	prev := d.strobes[line]
	d.strobes[line] = state

	switch {
	case state == bus.Assert && prev != bus.Assert:
		d.StrobeEdges++
		if line == bus.LineRead {
			d.dataIn = d.readRegister(d.addr)
		}
	case line == bus.LineWrite && prev == bus.Assert && state == bus.Negate:
		d.writeRegister(d.addr, d.dataOut)
	}
}

// SetDataDirection implements bus.Bus.
func (d *Drive) SetDataDirection(dir bus.Direction) {
	d.dir = dir
}

// WriteData implements bus.Bus.
func (d *Drive) WriteData(value byte) {
	d.dataOut = value
}

// ReadData implements bus.Bus. With the bus in output direction the host
// reads back its own value.
func (d *Drive) ReadData() byte {
	if d.dir == bus.Output {
		return d.dataOut
	}
	return d.dataIn
}

// SetAddress implements bus.Bus.
func (d *Drive) SetAddress(addr bus.Register) {
	d.addr = addr & bus.AddressMask
}

// DriveHead returns the current drive/head register.
func (d *Drive) DriveHead() byte {
	return d.dh
}

// SetDriveHead presets the drive/head register, e.g. to select drive 1.
func (d *Drive) SetDriveHead(v byte) {
	d.dh = v
}

// Sectors returns the simulated capacity.
func (d *Drive) Sectors() uint32 {
	return d.opts.Sectors
}

func (d *Drive) readRegister(addr bus.Register) byte {
	switch addr {
	case ata.RegData:
		return d.readData()
	case ata.RegError:
		return d.errReg
	case ata.RegCount:
		return d.count
	case ata.RegLBA0, ata.RegLBA1, ata.RegLBA2:
		return d.lba[addr-ata.RegLBA0]
	case ata.RegDriveHead:
		return d.dh
	default:
		return d.readStatus()
	}
}

func (d *Drive) readStatus() byte {
	d.StatusReads++
	switch {
	case d.opts.Absent:
		return 0x00
	case d.opts.StuckBusy:
		return ata.StatusBusy
	case d.busy > 0:
		d.busy--
		return ata.StatusBusy
	}
	return d.status
}

func (d *Drive) readData() byte {
	if d.xfer != transferRead {
		return 0
	}
	v := d.buf[d.bufPos]
	d.bufPos++
	if d.bufPos == len(d.buf) {
		d.endTransfer()
	}
	return v
}

func (d *Drive) writeRegister(addr bus.Register, v byte) {
	switch addr {
	case ata.RegData:
		d.writeData(v)
	case ata.RegFeature:
		d.features = v
	case ata.RegCount:
		d.count = v
	case ata.RegLBA0, ata.RegLBA1, ata.RegLBA2:
		d.lba[addr-ata.RegLBA0] = v
	case ata.RegDriveHead:
		d.dh = v
		d.DHWrites = append(d.DHWrites, v)
	default:
		d.command(v)
	}
}

func (d *Drive) writeData(v byte) {
	if d.xfer != transferWrite {
		return
	}
	d.buf[d.bufPos] = v
	d.bufPos++
	if d.bufPos < len(d.buf) {
		return
	}
	if _, err := d.store.WriteAt(d.buf[:], int64(d.sector)*ata.SectorSize); err != nil {
		d.StoreErrors++
		d.fail(ata.ErrUncorrectable)
	} else {
		d.WriteLog = append(d.WriteLog, d.sector)
	}
	d.endTransfer()
}

func (d *Drive) command(cmd byte) {
	d.Commands = append(d.Commands, cmd)
	d.busy = d.opts.CommandBusyReads
	d.errReg = 0
	d.status = ata.StatusReady | ata.StatusSeek
	d.xfer = transferNone

	switch cmd {
	case ata.CmdInitParams:
		if d.opts.NoLBA {
			d.dh &^= ata.DriveHeadLBA
		} else {
			d.dh |= ata.DriveHeadLBA
		}

	case ata.CmdSetFeatures:
		if d.features != ata.Feature8Bit || d.opts.No8Bit {
			d.fail(ata.ErrAborted)
		}

	case ata.CmdRead:
		if !d.loadAddress() {
			return
		}
		if _, err := d.store.ReadAt(d.buf[:], int64(d.sector)*ata.SectorSize); err != nil {
			d.StoreErrors++
			d.fail(ata.ErrUncorrectable)
			return
		}
		d.ReadLog = append(d.ReadLog, d.sector)
		d.startTransfer(transferRead)

	case ata.CmdWrite:
		if !d.loadAddress() {
			return
		}
		d.startTransfer(transferWrite)

	default:
		d.fail(ata.ErrAborted)
	}
}

// loadAddress latches the 28-bit LBA from the command block. Out of range
// addresses fail with IDNF, leaving DRQ clear.
func (d *Drive) loadAddress() bool {
	d.sector = uint32(d.dh&0x0F)<<24 | uint32(d.lba[2])<<16 | uint32(d.lba[1])<<8 | uint32(d.lba[0])
	if d.sector >= d.opts.Sectors {
		d.fail(ata.ErrIDNotFound)
		return false
	}
	return true
}

func (d *Drive) startTransfer(x transfer) {
	d.xfer = x
	d.bufPos = 0
	d.status |= ata.StatusDRQ
}

func (d *Drive) endTransfer() {
	d.xfer = transferNone
	d.bufPos = 0
	d.status &^= ata.StatusDRQ
}

func (d *Drive) fail(errBits byte) {
	d.errReg = errBits
	d.status |= ata.StatusErr
	d.status &^= ata.StatusDRQ
}
