// Package ata holds the register map, command codes and flag bits of the
// ATA command block as seen over an 8-bit PATA interface.
package ata

import "cfcard/bus"

// Command block registers
const (
	RegData    bus.Register = 0b000 // Data register
	RegError   bus.Register = 0b001 // Read: Error
	RegFeature bus.Register = 0b001 // Write: Features
	RegCount   bus.Register = 0b010 // Sector Count

	RegSector    bus.Register = 0b011 // Sector Number
	RegLBA0      bus.Register = 0b011 // LBA bits 0-7
	RegCylLow    bus.Register = 0b100 // Cylinder Low
	RegLBA1      bus.Register = 0b100 // LBA bits 8-15
	RegCylHigh   bus.Register = 0b101 // Cylinder High
	RegLBA2      bus.Register = 0b101 // LBA bits 16-23
	RegDriveHead bus.Register = 0b110 // Drive/Head
	RegLBA3      bus.Register = 0b110 // LBA bits 24-27
	RegStatus    bus.Register = 0b111 // Read: Status
	RegCommand   bus.Register = 0b111 // Write: Command
)

// Control block registers. These need the CS1 line, which is not wired on
// the 3-bit address bus; they are listed for completeness only.
const (
	RegIdle      = 0b1000 // Data bus high impedance
	RegAltStatus = 0b1110 // Read: Alternate Status
	RegControl   = 0b1110 // Write: Device Control
	RegAddress   = 0b1111 // Read: Drive Address
)

// Drive commands
const (
	CmdInitParams  = 0x91 // Initialize drive parameters
	CmdRead        = 0x21 // Read sector without retry
	CmdWrite       = 0x31 // Write sector without retry
	CmdSetFeatures = 0xEF // Set features
	CmdIdentify    = 0xEC // Identify drive
)

// Set features subcommands
const (
	Feature8Bit = 0x01 // Enable 8-bit data transfers
)

// Device control flags
const (
	CtlReset  = 0x0C // SRST
	CtlNoIntr = 0x0A // nIEN
)

// Status register flags
const (
	StatusBusy    = 1 << 7 // BSY: drive busy / not available
	StatusReady   = 1 << 6 // DRDY: drive ready for command
	StatusFault   = 1 << 5 // DWF: drive write fault
	StatusSeek    = 1 << 4 // DSC: drive seek complete
	StatusDRQ     = 1 << 3 // DRQ: drive ready for data transfer
	StatusCorr    = 1 << 2 // CORR: corrected data
	StatusIndex   = 1 << 1 // IDX
	StatusErr     = 1 << 0 // ERR: see error register
	StatusTopMask = StatusBusy | StatusReady
)

// Drive/Head register flags
const (
	DriveHeadLBA    = 1 << 6 // Set when LBA addressing is enabled
	DriveHeadLBASel = 0xE0   // LBA addressing, drive 0
	DriveHeadUpper  = 0xF0   // Bits that select mode and drive
)

// Error register flags
const (
	ErrBadBlock      = 1 << 7 // BBK
	ErrUncorrectable = 1 << 6 // UNC
	ErrMediaChanged  = 1 << 5 // MC
	ErrIDNotFound    = 1 << 4 // IDNF
	ErrMediaChangeRq = 1 << 3 // MCR
	ErrAborted       = 1 << 2 // ABRT: unknown command or parameter
	ErrTrack0        = 1 << 1 // TK0NF
	ErrAddressMark   = 1 << 0 // AMNF
)

// SectorSize is the fixed transfer unit.
const SectorSize = 512

// MaxSector is the largest address reachable with 28-bit LBA.
const MaxSector = 1<<28 - 1
