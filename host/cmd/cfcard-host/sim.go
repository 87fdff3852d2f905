package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"cfcard/ata"
	"cfcard/bus/sim"
	"cfcard/diag"
	"cfcard/pata"
	"cfcard/sdemu"
	"cfcard/sdhost"
)

// stack is the driver stack over an image file.
type stack struct {
	file  *os.File
	hw    *sim.Drive
	drive *pata.Drive
	card  *sdemu.Card
	host  *sdhost.Host
}

func (o *options) openStack() (*stack, error) {
	path := o.cfg.Image.Path
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	sectors := st.Size() / ata.SectorSize
	if sectors == 0 || sectors > ata.MaxSector+1 {
		f.Close()
		return nil, fmt.Errorf("%s: %d bytes is not a usable image size", path, st.Size())
	}

	hw := sim.New(f, sim.Options{Sectors: uint32(sectors)})
	drive := pata.New(hw, o.cfg.Drive.PATA())
	card := sdemu.NewCard(drive, sdemu.Options{PreferLBA: o.cfg.Drive.PreferLBA})
	return &stack{
		file:  f,
		hw:    hw,
		drive: drive,
		card:  card,
		host:  sdhost.New(sdemu.NewSPI(card), sdhost.Options{}),
	}, nil
}

func (s *stack) Close() error {
	return s.file.Close()
}

// within rejects transfers past the end of the image; the SD path would
// not report them.
func (s *stack) within(start uint32, count int) error {
	if uint64(start)+uint64(count) > uint64(s.hw.Sectors()) {
		return fmt.Errorf("sectors %d..%d beyond image of %d sectors", start, uint64(start)+uint64(count)-1, s.hw.Sectors())
	}
	return nil
}

// bringUp initializes either the drive alone or the whole SD path.
func (s *stack) bringUp(raw, preferLBA bool) error {
	if raw {
		_, err := s.drive.Init(preferLBA)
		return err
	}
	return s.host.Init()
}

func (s *stack) read(raw bool, start uint32, count int) ([]byte, error) {
	buf := make([]byte, count*ata.SectorSize)
	if !raw {
		return buf, s.host.ReadBlocks(buf, start)
	}
	for i := 0; i < count; i++ {
		if _, err := s.drive.ReadSector(start+uint32(i), buf[i*ata.SectorSize:(i+1)*ata.SectorSize]); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (s *stack) write(raw bool, start uint32, data []byte) error {
	if !raw {
		return s.host.WriteBlocks(data, start)
	}
	for off := 0; off < len(data); off += ata.SectorSize {
		if err := s.drive.WriteSector(start+uint32(off/ata.SectorSize), data[off:]); err != nil {
			return err
		}
	}
	return nil
}

func parseSector(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid sector %q: %w", s, err)
	}
	if v > ata.MaxSector {
		return 0, fmt.Errorf("sector %d beyond 28-bit LBA", v)
	}
	return uint32(v), nil
}

func newSimCmd(opts *options) *cobra.Command {
	simCmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the driver stack against a disk image",
		Long: `Run the driver stack against a disk image.

Commands:
  create    Create a zero filled image
  info      Initialize the drive and show its state
  read      Hexdump sectors
  write     Write a file to sectors

By default transfers go through the SD card emulation, as a filesystem
library on the firmware would see them. --raw talks to the PATA layer
directly.`,
	}
	simCmd.PersistentFlags().StringVarP(&opts.imagePath, "image", "i", "", "disk image (default from config)")

	simCmd.AddCommand(
		newSimCreateCmd(opts),
		newSimInfoCmd(opts),
		newSimReadCmd(opts),
		newSimWriteCmd(opts),
	)
	return simCmd
}

func newSimCreateCmd(opts *options) *cobra.Command {
	var (
		sectors int
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a zero filled image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sectors <= 0 {
				sectors = opts.cfg.Image.Sectors
			}
			path := opts.cfg.Image.Path
			flags := os.O_RDWR | os.O_CREATE | os.O_EXCL
			if force {
				flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				return err
			}
			if err := f.Truncate(int64(sectors) * ata.SectorSize); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s: %d sectors\n", path, sectors)
			return nil
		},
	}
	cmd.Flags().IntVar(&sectors, "sectors", 0, "image size in sectors (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing image")
	return cmd
}

func newSimInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Initialize the drive and show its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStack()
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "image:   %s\n", opts.cfg.Image.Path)
			fmt.Fprintf(out, "sectors: %d\n", s.hw.Sectors())

			initErr := s.host.Init()
			fmt.Fprintf(out, "mode:    %s\n", s.card.Mode())
			fmt.Fprintf(out, "status:  %s\n", diag.FormatBits(diag.StatusBits, s.drive.DumpStatus()))
			if initErr != nil {
				fmt.Fprintf(out, "card:    %v\n", initErr)
				if err := s.card.Session().InitErr; err != nil {
					fmt.Fprintf(out, "drive:   %v\n", err)
				}
				return nil
			}
			fmt.Fprintln(out, "card:    ready")

			mbr := make([]byte, ata.SectorSize)
			if err := s.host.ReadBlocks(mbr, 0); err != nil {
				return err
			}
			sig := "none"
			if mbr[510] == 0x55 && mbr[511] == 0xAA {
				sig = "55aa"
			}
			fmt.Fprintf(out, "boot signature: %s\n", sig)
			return nil
		},
	}
}

func newSimReadCmd(opts *options) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "read [sector] [count]",
		Short: "Hexdump sectors",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseSector(args[0])
			if err != nil {
				return err
			}
			count := 1
			if len(args) == 2 {
				if count, err = strconv.Atoi(args[1]); err != nil || count <= 0 {
					return fmt.Errorf("invalid count %q", args[1])
				}
			}

			s, err := opts.openStack()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.within(start, count); err != nil {
				return err
			}
			if err := s.bringUp(raw, opts.cfg.Drive.PreferLBA); err != nil {
				return err
			}
			buf, err := s.read(raw, start, count)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				fmt.Fprintf(out, "sector %d\n", start+uint32(i))
				if err := diag.Hexdump(out, buf[i*ata.SectorSize:(i+1)*ata.SectorSize]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "bypass the SD card emulation")
	return cmd
}

func newSimWriteCmd(opts *options) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "write [sector] [file]",
		Short: "Write a file to sectors",
		Long: `Write a file to consecutive sectors. The last sector is zero padded.
A file name of - reads standard input.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseSector(args[0])
			if err != nil {
				return err
			}
			var data []byte
			if args[1] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[1])
			}
			if err != nil {
				return err
			}
			if len(data) == 0 {
				return errors.New("nothing to write")
			}
			if pad := len(data) % ata.SectorSize; pad != 0 {
				data = append(data, bytes.Repeat([]byte{0}, ata.SectorSize-pad)...)
			}

			s, err := opts.openStack()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.within(start, len(data)/ata.SectorSize); err != nil {
				return err
			}
			if err := s.bringUp(raw, opts.cfg.Drive.PreferLBA); err != nil {
				return err
			}
			if err := s.write(raw, start, data); err != nil {
				return err
			}
			if s.hw.StoreErrors > 0 {
				return fmt.Errorf("%d sectors could not be stored", s.hw.StoreErrors)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d sectors at %d\n", len(data)/ata.SectorSize, start)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "bypass the SD card emulation")
	return cmd
}
