package pata

import (
	"cfcard/ata"
	"cfcard/bus"
	"cfcard/diag"
)

// Init brings the drive up and selects the addressing mode. Once it has
// succeeded the mode is cached and later calls return it without touching
// the bus. On failure it returns ModeNotInitialized and the cause.
//
// A drive that refuses LBA addressing is downgraded to CHS with a warning;
// a drive that refuses 8-bit transfers cannot be used at all.
func (d *Drive) Init(preferLBA bool) (Mode, error) {
	if d.mode != ModeNotInitialized {
		return d.mode, nil
	}
	d.log.Info("init disk")

	if !d.configured {
		d.bus.Configure()
		d.configured = true
	}
	d.bus.SetStrobe(bus.LineWrite, bus.Negate)
	d.bus.SetStrobe(bus.LineRead, bus.Negate)

	// A drive that is powering up reports busy; an empty bus does not.
	if d.ReadRegister(ata.RegStatus)&ata.StatusBusy == 0 {
		d.log.Error("drive not found")
		d.cfg.Sleep(d.cfg.AbsentDelay)
		return ModeNotInitialized, ErrDriveAbsent
	}

	// until BSY == 0 and DRDY == 1
	for tries := 0; d.ReadRegister(ata.RegStatus)&ata.StatusTopMask != ata.StatusReady; tries++ {
		if tries >= d.cfg.ReadyTimeout {
			d.log.Error("init timed out, try to reset the disk (pull pin 1 to ground)",
				"status", diag.FormatBits(diag.StatusBits, byte(d.lastStatus.Load())))
			return ModeNotInitialized, ErrInitTimeout
		}
		d.cfg.Sleep(d.cfg.ReadyInterval)
	}

	mode := ModeCHS
	if preferLBA {
		mode = ModeLBA
		d.WriteRegister(ata.RegDriveHead, ata.DriveHeadLBASel)
		d.WriteRegister(ata.RegCommand, ata.CmdInitParams)
		// judged by the LBA bit below, not by the wait
		_ = d.WaitForStatus(0)
		if d.ReadRegister(ata.RegDriveHead)&ata.DriveHeadLBA == 0 {
			d.log.Warn("falling back to CHS addressing", "err", ErrLBAUnsupported)
			mode = ModeCHS
		}
	}

	// 8-bit data transfer
	d.WriteRegister(ata.RegFeature, ata.Feature8Bit)
	d.WriteRegister(ata.RegCommand, ata.CmdSetFeatures)
	_ = d.WaitForStatus(0)
	if errBits := d.ReadRegister(ata.RegError); errBits&ata.ErrAborted != 0 {
		d.log.Error("8-bit transfer mode could not be set",
			"error", diag.FormatBits(diag.ErrorBits, errBits))
		return ModeNotInitialized, ErrTransferMode
	}

	d.mode = mode
	d.log.Info("init success", "mode", mode)
	return mode, nil
}
