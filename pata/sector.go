package pata

import (
	"fmt"

	"cfcard/ata"
)

// loadAddress writes a 28-bit sector address. upper supplies the mode and
// drive select bits of the LBA 24-27 register.
func (d *Drive) loadAddress(sector uint32, upper byte) {
	d.WriteRegister(ata.RegLBA3, upper&ata.DriveHeadUpper|byte(sector>>24)&0x0F)
	d.WriteRegister(ata.RegLBA2, byte(sector>>16))
	d.WriteRegister(ata.RegLBA1, byte(sector>>8))
	d.WriteRegister(ata.RegLBA0, byte(sector))
}

// ReadSector reads the first len(buf) bytes of a sector, at most one sector.
// It returns the number of bytes read; zero means the read failed and buf
// holds no data from the drive.
//
// The drive/head bits are forced to LBA, drive 0.
func (d *Drive) ReadSector(sector uint32, buf []byte) (int, error) {
	size := min(len(buf), ata.SectorSize)

	d.loadAddress(sector, ata.DriveHeadLBASel)
	d.WriteRegister(ata.RegCommand, ata.CmdRead)
	if err := d.WaitForStatus(ata.StatusDRQ); err != nil {
		d.log.Error("cannot find sector, maybe it is out of range?", "sector", sector)
		return 0, fmt.Errorf("read sector %d: %w", sector, err)
	}
	for i := 0; i < size; i++ {
		buf[i] = d.ReadRegister(ata.RegData)
	}
	return size, nil
}

// WriteSector writes one full sector from buf.
//
// Unlike ReadSector it keeps the upper nibble of the drive/head register as
// found, so a previously selected drive stays selected.
func (d *Drive) WriteSector(sector uint32, buf []byte) error {
	if len(buf) < ata.SectorSize {
		return ErrBufferSize
	}

	upper := d.ReadRegister(ata.RegLBA3) & ata.DriveHeadUpper
	d.loadAddress(sector, upper)
	d.WriteRegister(ata.RegCommand, ata.CmdWrite)
	if err := d.WaitForStatus(ata.StatusDRQ); err != nil {
		d.log.Error("writing to drive failed", "sector", sector)
		return fmt.Errorf("write sector %d: %w", sector, err)
	}
	for _, b := range buf[:ata.SectorSize] {
		d.WriteRegister(ata.RegData, b)
	}
	return nil
}

// ReadMultiple reads consecutive sectors across calls. The first call with
// a given starting sector reads that sector; each further call with the same
// starting sector reads the next one. The position advances even when the
// read fails, so a failed sector is skipped, not retried.
func (d *Drive) ReadMultiple(sector uint32, buf []byte) (int, error) {
	return d.ReadSector(d.readCursor.next(sector), buf)
}

// WriteMultiple is the write counterpart of ReadMultiple.
func (d *Drive) WriteMultiple(sector uint32, buf []byte) error {
	return d.WriteSector(d.writeCursor.next(sector), buf)
}

// ResetReadCursor makes the next ReadMultiple start at its starting sector
// even if that equals the previous one.
func (d *Drive) ResetReadCursor() {
	d.readCursor = cursor{}
}

// ResetWriteCursor is the write counterpart of ResetReadCursor.
func (d *Drive) ResetWriteCursor() {
	d.writeCursor = cursor{}
}
