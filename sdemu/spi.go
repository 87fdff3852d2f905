package sdemu

import (
	"errors"

	"tinygo.org/x/drivers"

	"cfcard/ata"
)

// ErrFullDuplex is returned by SPI.Tx when asked to send and receive at
// once. The card answers only what the host asks for with a receive.
var ErrFullDuplex = errors.New("sdemu: full duplex transfer not supported")

// SPI presents a Card as a half-duplex SPI bus, so drivers written against
// drivers.SPI can use the card as they would a real one. A sector sized
// transfer is a data block; anything else is the command channel.
type SPI struct {
	card *Card
}

var _ drivers.SPI = (*SPI)(nil)

// NewSPI wraps card.
func NewSPI(card *Card) *SPI {
	return &SPI{card: card}
}

// Tx sends w or fills r. Drive errors behind a block transfer are not
// reported; the SD protocol has no way to signal them.
func (s *SPI) Tx(w, r []byte) error {
	switch {
	case w != nil && r != nil:
		return ErrFullDuplex
	case len(w) == ata.SectorSize:
		_ = s.card.SendBlock(w)
	case len(r) == ata.SectorSize:
		_, _ = s.card.ReceiveBlock(r)
	default:
		for _, b := range w {
			s.card.Send(b)
		}
		for i := range r {
			r[i] = s.card.Receive()
		}
	}
	return nil
}

// Transfer sends b. The reply is always the idle level; use Tx with a read
// buffer to receive.
func (s *SPI) Transfer(b byte) (byte, error) {
	s.card.Send(b)
	return Idle, nil
}
