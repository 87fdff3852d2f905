package pata

import (
	"fmt"

	"cfcard/ata"
	"cfcard/diag"
)

// DumpStatus reads the status register and logs its bits.
func (d *Drive) DumpStatus() byte {
	s := d.ReadRegister(ata.RegStatus)
	d.log.Info("status register", "value", hex8(s), "bits", diag.FormatBits(diag.StatusBits, s))
	return s
}

// DumpError reads the error register and logs its bits.
func (d *Drive) DumpError() byte {
	e := d.ReadRegister(ata.RegError)
	d.log.Info("error register", "value", hex8(e), "bits", diag.FormatBits(diag.ErrorBits, e))
	return e
}

// DumpRegisters logs the command block. Reading the data register consumes
// a byte if a transfer is pending.
func (d *Drive) DumpRegisters() {
	dh := d.ReadRegister(ata.RegDriveHead)
	data := d.ReadRegister(ata.RegData)
	count := d.ReadRegister(ata.RegCount)
	hi := d.ReadRegister(ata.RegCylHigh)
	lo := d.ReadRegister(ata.RegCylLow)
	sn := d.ReadRegister(ata.RegSector)

	if dh&ata.DriveHeadLBA != 0 {
		d.log.Info("registers", "data", hex8(data), "count", count,
			"lba", fmt.Sprintf("0x%02x%02x%02x%02x", dh, hi, lo, sn))
		return
	}
	d.log.Info("registers", "data", hex8(data), "count", count,
		"drive_head", hex8(dh), "cyl_hi", hex8(hi), "cyl_lo", hex8(lo), "sector", hex8(sn))
}

// InterruptHandler returns a hook for the drive's INTRQ line. It records
// the edge and the last status seen by the protocol, and neither touches the
// bus nor allocates, so it can run in interrupt context. LogInterrupts
// reports what it saw.
func (d *Drive) InterruptHandler() func() {
	return func() {
		d.irqStatus.Store(d.lastStatus.Load())
		d.irqCount.Add(1)
	}
}

// LogInterrupts logs the interrupts taken since the previous call and
// returns their number. Call it from the main loop, not from the handler.
func (d *Drive) LogInterrupts() uint32 {
	n := d.irqCount.Swap(0)
	if n == 0 {
		return 0
	}
	s := byte(d.irqStatus.Load())
	d.log.Info("interrupt", "count", n, "status", diag.FormatBits(diag.StatusBits, s))
	return n
}

func hex8(v byte) string {
	return fmt.Sprintf("0x%02x", v)
}
