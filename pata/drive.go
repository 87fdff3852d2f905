// Package pata implements the PATA register protocol over a bus.Bus: the
// register read/write cycles, the polled status handshake, drive
// initialization and sector transfers in 8-bit PIO mode.
package pata

import (
	"log/slog"
	"sync/atomic"
	"time"

	"cfcard/ata"
	"cfcard/bus"
	"cfcard/diag"
)

// Mode is the addressing mode chosen at initialization.
type Mode uint8

const (
	ModeNotInitialized Mode = iota
	ModeLBA
	ModeCHS
)

func (m Mode) String() string {
	switch m {
	case ModeNotInitialized:
		return "not-initialized"
	case ModeLBA:
		return "lba"
	case ModeCHS:
		return "chs"
	default:
		return "unknown"
	}
}

// Config holds the timing parameters of the protocol.
type Config struct {
	// StatusTimeout is the number of status polls, one per PollInterval,
	// before a status wait gives up. Increase for slow disks.
	StatusTimeout int
	PollInterval  time.Duration

	// ReadyTimeout is the number of ReadyInterval waits allowed for the
	// drive to become ready during initialization.
	ReadyTimeout  int
	ReadyInterval time.Duration

	// AbsentDelay is slept after a failed probe.
	AbsentDelay time.Duration

	// Sleep blocks for the given duration. Defaults to time.Sleep.
	Sleep func(time.Duration)

	// Logger receives warnings and errors. Defaults to the pata component
	// logger.
	Logger *slog.Logger
}

// DefaultConfig returns the stock timing: 100 polls of 1 ms for status and
// 30 polls of 1 s for the power-up ready wait.
func DefaultConfig() Config {
	return Config{
		StatusTimeout: 100,
		PollInterval:  time.Millisecond,
		ReadyTimeout:  30,
		ReadyInterval: time.Second,
		AbsentDelay:   time.Second,
		Sleep:         time.Sleep,
	}
}

// applyDefaults fills in zero fields from DefaultConfig
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = def.StatusTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = def.ReadyTimeout
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = def.ReadyInterval
	}
	if cfg.AbsentDelay <= 0 {
		cfg.AbsentDelay = def.AbsentDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = def.Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = diag.Logger(diag.ComponentPATA)
	}
}

// cursor tracks a multi-sector transfer. A call with a new starting sector
// restarts it; a repeated starting sector continues with the next one.
type cursor struct {
	valid   bool
	anchor  uint32
	current uint32
}

func (c *cursor) next(sector uint32) uint32 {
	if !c.valid || sector != c.anchor {
		c.valid = true
		c.anchor = sector
		c.current = sector
	}
	s := c.current
	c.current++
	return s
}

// Drive is a session with one PATA drive. It is not safe for concurrent use;
// all calls must come from the context that owns the bus.
type Drive struct {
	bus bus.Bus
	cfg Config
	log *slog.Logger

	mode       Mode
	configured bool

	readCursor  cursor
	writeCursor cursor

	// written from interrupt context, atomics only
	lastStatus atomic.Uint32
	irqStatus  atomic.Uint32
	irqCount   atomic.Uint32
}

// New creates a drive session on b. Zero fields of cfg take their defaults.
func New(b bus.Bus, cfg Config) *Drive {
	applyDefaults(&cfg)
	return &Drive{
		bus: b,
		cfg: cfg,
		log: cfg.Logger,
	}
}

// Mode returns the cached addressing mode.
func (d *Drive) Mode() Mode {
	return d.mode
}

// Initialized reports whether the drive can be used.
func (d *Drive) Initialized() bool {
	return d.mode != ModeNotInitialized
}

// ReadRegister performs one read cycle on the command block.
func (d *Drive) ReadRegister(addr bus.Register) byte {
	d.bus.SetStrobe(bus.LineRead, bus.Negate)
	d.bus.SetDataDirection(bus.Input)
	d.bus.SetAddress(addr & bus.AddressMask)
	d.bus.SetStrobe(bus.LineRead, bus.Assert)
	v := d.bus.ReadData()
	d.bus.SetStrobe(bus.LineRead, bus.Negate)

	if addr == ata.RegStatus {
		d.lastStatus.Store(uint32(v))
	}
	return v
}

// WriteRegister performs one write cycle on the command block.
func (d *Drive) WriteRegister(addr bus.Register, value byte) {
	d.bus.SetStrobe(bus.LineWrite, bus.Negate)
	d.bus.SetDataDirection(bus.Output)
	d.bus.WriteData(value)
	d.bus.SetAddress(addr & bus.AddressMask)
	d.bus.SetStrobe(bus.LineWrite, bus.Assert)
	d.bus.SetStrobe(bus.LineWrite, bus.Negate)
}

// WaitForStatus polls the status register until BSY is clear and every bit
// of flags is set. It gives up after cfg.StatusTimeout polls.
func (d *Drive) WaitForStatus(flags byte) error {
	s := d.ReadRegister(ata.RegStatus)
	for retries := 0; s&ata.StatusBusy != 0 || s&flags != flags; retries++ {
		if retries >= d.cfg.StatusTimeout {
			d.log.Warn("status wait timeout, increasing the status timeout might help",
				"retries", retries, "flags", flags, "status", diag.FormatBits(diag.StatusBits, s))
			return ErrStatusTimeout
		}
		d.cfg.Sleep(d.cfg.PollInterval)
		s = d.ReadRegister(ata.RegStatus)
	}
	return nil
}
