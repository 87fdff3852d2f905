//go:build rp2040

package main

import (
	"log/slog"
	"time"

	"cfcard/ata"
	"cfcard/config"
	"cfcard/diag"
	"cfcard/pata"
	"cfcard/sdemu"
	"cfcard/sdhost"
)

const retryDelay = 5 * time.Second

func main() {
	if err := InitDebugUART(); err != nil {
		return
	}
	out := diag.NewLineWriter(DebugPrintln)

	cfg := config.Default()
	cfg.Log.Level = "info"
	cfg.Log.Apply(out)
	log := diag.Logger(diag.ComponentHost)
	log.Info("cfcard starting")

	b := NewRPBus()
	drive := pata.New(b, cfg.Drive.PATA())
	card := sdemu.NewCard(drive, sdemu.Options{PreferLBA: cfg.Drive.PreferLBA})
	host := sdhost.New(sdemu.NewSPI(card), sdhost.Options{})

	for {
		err := host.Init()
		if err == nil {
			break
		}
		log.Error("card init failed", "err", err, "mode", card.Mode())
		time.Sleep(retryDelay)
	}

	if err := b.AttachInterrupt(drive.InterruptHandler()); err != nil {
		log.Warn("no interrupt hook", "err", err)
	}

	selfTest(host, out, log)

	for {
		drive.LogInterrupts()
		time.Sleep(time.Second)
	}
}

// selfTest reads the boot sector through the SD emulation and dumps it
func selfTest(host *sdhost.Host, out *diag.LineWriter, log *slog.Logger) {
	buf := make([]byte, ata.SectorSize)
	if err := host.ReadBlocks(buf, 0); err != nil {
		log.Error("self test read failed", "err", err)
		return
	}
	diag.Hexdump(out, buf)
	out.Flush()

	if buf[510] != 0x55 || buf[511] != 0xAA {
		log.Warn("sector 0 has no boot signature")
		return
	}
	log.Info("self test passed")
}
