// Package sdhost is a minimal SD card host in SPI mode. It follows the
// command sequences of common SD filesystem libraries: version 2 card
// initialization and streaming multiple block reads and writes with block
// addressing. It runs over any drivers.SPI, an emulated card included.
package sdhost

import (
	"errors"
	"fmt"
	"log/slog"

	"tinygo.org/x/drivers"

	"cfcard/diag"
)

// BlockSize is the data block size of a high capacity card.
const BlockSize = 512

const (
	cmdGoIdleState        = 0
	cmdSendIfCond         = 8
	cmdStopTransmission   = 12
	cmdReadMultipleBlock  = 18
	cmdWriteMultipleBlock = 25
	acmdSendOpCond        = 41
	cmdAppCmd             = 55
	cmdReadOCR            = 58

	r1Ready          = 0x00
	r1Idle           = 0x01
	r1IllegalCommand = 0x04

	tokenStartBlock    = 0xFE
	tokenWriteMultiple = 0xFC
	tokenStopTran      = 0xFD

	dataResMask     = 0x1F
	dataResAccepted = 0x05

	ocrHighCapacity = 0xC0
	hostHighCap     = 0x40000000
)

var (
	ErrNoResponse      = errors.New("sdhost: no response from card")
	ErrNoCard          = errors.New("sdhost: card did not enter idle state")
	ErrSendIfCond      = errors.New("sdhost: interface condition check failed")
	ErrOpCond          = errors.New("sdhost: card did not leave idle state")
	ErrNotHighCapacity = errors.New("sdhost: card is not high capacity")
	ErrCommand         = errors.New("sdhost: command failed")
	ErrStartBlock      = errors.New("sdhost: missing start block token")
	ErrWriteRejected   = errors.New("sdhost: data block rejected")
	ErrBusy            = errors.New("sdhost: card busy")
	ErrBlockSize       = errors.New("sdhost: buffer is not a whole number of blocks")
	ErrNotInitialized  = errors.New("sdhost: card not initialized")
)

// Options bounds the polling loops of a Host. Zero fields take defaults.
type Options struct {
	// Retries is the number of bytes read while waiting for a response,
	// a start token or the end of busy.
	Retries int

	// GoIdleRetries is the number of GO_IDLE_STATE attempts.
	GoIdleRetries int

	// OpCondRetries is the number of SD_SEND_OP_COND attempts.
	OpCondRetries int

	// Logger defaults to the host component logger.
	Logger *slog.Logger
}

// Host talks to one card.
type Host struct {
	spi  drivers.SPI
	opts Options
	log  *slog.Logger

	ready bool
	cmd   [6]byte
	rx    [1]byte
}

// New creates a host on spi.
func New(spi drivers.SPI, opts Options) *Host {
	if opts.Retries <= 0 {
		opts.Retries = 256
	}
	if opts.GoIdleRetries <= 0 {
		opts.GoIdleRetries = 10
	}
	if opts.OpCondRetries <= 0 {
		opts.OpCondRetries = 100
	}
	if opts.Logger == nil {
		opts.Logger = diag.Logger(diag.ComponentHost)
	}
	return &Host{spi: spi, opts: opts, log: opts.Logger}
}

// Init resets the card and brings it into transfer state.
func (h *Host) Init() error {
	h.ready = false

	// at least 74 clocks with the card deselected
	for i := 0; i < 10; i++ {
		if err := h.send(0xFF); err != nil {
			return err
		}
	}

	for tries := 0; ; tries++ {
		r, err := h.command(cmdGoIdleState, 0)
		if err != nil && !errors.Is(err, ErrNoResponse) {
			return err
		}
		if err == nil && r == r1Idle {
			break
		}
		if tries+1 >= h.opts.GoIdleRetries {
			return ErrNoCard
		}
	}

	r, err := h.command(cmdSendIfCond, 0x1AA)
	if err != nil {
		return err
	}
	if r&r1IllegalCommand != 0 {
		return fmt.Errorf("%w: version 1 card", ErrSendIfCond)
	}
	var check byte
	for i := 0; i < 4; i++ {
		if check, err = h.recv(); err != nil {
			return err
		}
	}
	if check != 0xAA {
		return fmt.Errorf("%w: check pattern 0x%02x", ErrSendIfCond, check)
	}

	for tries := 0; ; tries++ {
		r, err := h.appCommand(acmdSendOpCond, hostHighCap)
		if err != nil {
			return err
		}
		if r == r1Ready {
			break
		}
		if tries+1 >= h.opts.OpCondRetries {
			return ErrOpCond
		}
	}

	if r, err = h.command(cmdReadOCR, 0); err != nil {
		return err
	}
	if r != r1Ready {
		return fmt.Errorf("%w: READ_OCR r1 0x%02x", ErrCommand, r)
	}
	ocr, err := h.recv()
	if err != nil {
		return err
	}
	// rest of the OCR is the voltage window
	for i := 0; i < 3; i++ {
		if _, err := h.recv(); err != nil {
			return err
		}
	}
	if ocr&ocrHighCapacity != ocrHighCapacity {
		return ErrNotHighCapacity
	}
	if err := h.send(0xFF); err != nil {
		return err
	}

	h.ready = true
	h.log.Info("card ready", "ocr", fmt.Sprintf("0x%02x", ocr))
	return nil
}

// ReadBlocks reads len(dst)/BlockSize blocks starting at block start.
func (h *Host) ReadBlocks(dst []byte, start uint32) error {
	if err := h.checkTransfer(dst); err != nil {
		return err
	}

	r, err := h.command(cmdReadMultipleBlock, start)
	if err != nil {
		return err
	}
	if r != r1Ready {
		return fmt.Errorf("%w: READ_MULTIPLE_BLOCK r1 0x%02x", ErrCommand, r)
	}

	for off := 0; off < len(dst); off += BlockSize {
		if err := h.waitStartBlock(); err != nil {
			h.stopRead()
			return fmt.Errorf("block %d: %w", start+uint32(off/BlockSize), err)
		}
		if err := h.spi.Tx(nil, dst[off:off+BlockSize]); err != nil {
			return err
		}
		// CRC
		for i := 0; i < 2; i++ {
			if _, err := h.recv(); err != nil {
				return err
			}
		}
	}
	return h.stopRead()
}

// WriteBlocks writes len(src)/BlockSize blocks starting at block start.
func (h *Host) WriteBlocks(src []byte, start uint32) error {
	if err := h.checkTransfer(src); err != nil {
		return err
	}

	r, err := h.command(cmdWriteMultipleBlock, start)
	if err != nil {
		return err
	}
	if r != r1Ready {
		return fmt.Errorf("%w: WRITE_MULTIPLE_BLOCK r1 0x%02x", ErrCommand, r)
	}

	for off := 0; off < len(src); off += BlockSize {
		if err := h.waitReady(); err != nil {
			return err
		}
		if err := h.send(tokenWriteMultiple); err != nil {
			return err
		}
		if err := h.spi.Tx(src[off:off+BlockSize], nil); err != nil {
			return err
		}
		// CRC, not checked in SPI mode. Idle bytes, since the card
		// watches for tokens between frames.
		for i := 0; i < 2; i++ {
			if err := h.send(0xFF); err != nil {
				return err
			}
		}

		res, err := h.recv()
		if err != nil {
			return err
		}
		if res&dataResMask != dataResAccepted {
			h.stopWrite()
			return fmt.Errorf("block %d: %w: response 0x%02x", start+uint32(off/BlockSize), ErrWriteRejected, res)
		}
	}
	return h.stopWrite()
}

// Ready reports whether Init succeeded.
func (h *Host) Ready() bool {
	return h.ready
}

func (h *Host) checkTransfer(buf []byte) error {
	if !h.ready {
		return ErrNotInitialized
	}
	if len(buf) == 0 || len(buf)%BlockSize != 0 {
		return ErrBlockSize
	}
	return nil
}

func (h *Host) stopRead() error {
	r, err := h.command(cmdStopTransmission, 0)
	if err != nil {
		return err
	}
	if err := h.send(0xFF); err != nil {
		return err
	}
	if r != r1Ready {
		return fmt.Errorf("%w: STOP_TRANSMISSION r1 0x%02x", ErrCommand, r)
	}
	return nil
}

func (h *Host) stopWrite() error {
	if err := h.waitReady(); err != nil {
		return err
	}
	if err := h.send(tokenStopTran); err != nil {
		return err
	}
	if err := h.waitReady(); err != nil {
		return err
	}
	return h.send(0xFF)
}

func (h *Host) appCommand(cmd byte, arg uint32) (byte, error) {
	if _, err := h.command(cmdAppCmd, 0); err != nil {
		return 0, err
	}
	return h.command(cmd, arg)
}

// command sends a frame and returns the R1 response.
func (h *Host) command(cmd byte, arg uint32) (byte, error) {
	if cmd != cmdGoIdleState && cmd != cmdStopTransmission {
		if err := h.waitReady(); err != nil {
			return 0, err
		}
	}

	buf := h.cmd[:]
	buf[0] = 0x40 | cmd
	buf[1] = byte(arg >> 24)
	buf[2] = byte(arg >> 16)
	buf[3] = byte(arg >> 8)
	buf[4] = byte(arg)
	buf[5] = crc7(buf[:5])
	if err := h.spi.Tx(buf, nil); err != nil {
		return 0, err
	}

	if cmd == cmdStopTransmission {
		// stuff byte
		if _, err := h.recv(); err != nil {
			return 0, err
		}
	}

	for i := 0; i < h.opts.Retries; i++ {
		r, err := h.recv()
		if err != nil {
			return 0, err
		}
		if r&0x80 == 0 {
			return r, nil
		}
	}
	h.log.Debug("no response", "cmd", cmd)
	return 0xFF, ErrNoResponse
}

func (h *Host) waitReady() error {
	for i := 0; i < h.opts.Retries; i++ {
		b, err := h.recv()
		if err != nil {
			return err
		}
		if b == 0xFF {
			return nil
		}
	}
	return ErrBusy
}

func (h *Host) waitStartBlock() error {
	b := byte(0xFF)
	for i := 0; i < h.opts.Retries && b == 0xFF; i++ {
		var err error
		if b, err = h.recv(); err != nil {
			return err
		}
	}
	if b != tokenStartBlock {
		return fmt.Errorf("%w: got 0x%02x", ErrStartBlock, b)
	}
	return nil
}

func (h *Host) send(b byte) error {
	_, err := h.spi.Transfer(b)
	return err
}

func (h *Host) recv() (byte, error) {
	if err := h.spi.Tx(nil, h.rx[:]); err != nil {
		return 0, err
	}
	return h.rx[0], nil
}
