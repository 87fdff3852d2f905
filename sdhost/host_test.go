package sdhost

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"cfcard/ata"
	"cfcard/bus/sim"
	"cfcard/diag"
	"cfcard/pata"
	"cfcard/sdemu"
)

// stack wires a host to an emulated card on a simulated drive.
type stack struct {
	host *Host
	card *sdemu.Card
	hw   *sim.Drive
	mem  sim.Memory
}

func newStack(t *testing.T, sectors int, opts sim.Options) *stack {
	t.Helper()
	discard := diag.NewLogger(io.Discard, nil)

	mem := sim.NewMemory(sectors)
	for i := range mem {
		mem[i] = byte(i / ata.SectorSize)
	}
	hw := sim.New(mem, opts)
	drive := pata.New(hw, pata.Config{
		Sleep:  func(time.Duration) {},
		Logger: discard,
	})
	card := sdemu.NewCard(drive, sdemu.Options{PreferLBA: true, Logger: discard})
	host := New(sdemu.NewSPI(card), Options{Logger: discard})
	return &stack{host: host, card: card, hw: hw, mem: mem}
}

func (s *stack) init(t *testing.T) {
	t.Helper()
	if err := s.host.Init(); err != nil {
		t.Fatalf("Init() = %v", err)
	}
}

func TestInit(t *testing.T) {
	s := newStack(t, 16, sim.Options{PowerOnBusyReads: 3})
	s.init(t)

	if !s.host.Ready() {
		t.Error("Ready() = false after Init")
	}
	if s.card.Mode() != pata.ModeLBA {
		t.Errorf("card mode = %v, want lba", s.card.Mode())
	}
	if s.hw.Configured != 1 {
		t.Errorf("drive configured %d times", s.hw.Configured)
	}
}

func TestInitFailures(t *testing.T) {
	tests := []struct {
		name string
		opts sim.Options
	}{
		{"no lba", sim.Options{NoLBA: true}},
		{"absent", sim.Options{Absent: true}},
		{"no 8-bit", sim.Options{No8Bit: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStack(t, 16, tt.opts)
			if err := s.host.Init(); !errors.Is(err, ErrNoCard) {
				t.Errorf("Init() = %v, want ErrNoCard", err)
			}
			if s.host.Ready() {
				t.Error("Ready() after failed Init")
			}
		})
	}
}

func TestNotInitialized(t *testing.T) {
	s := newStack(t, 16, sim.Options{})
	if err := s.host.ReadBlocks(make([]byte, BlockSize), 0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ReadBlocks() = %v, want ErrNotInitialized", err)
	}
}

func TestBlockSize(t *testing.T) {
	s := newStack(t, 16, sim.Options{})
	s.init(t)

	for _, n := range []int{0, 1, BlockSize - 1, BlockSize + 1} {
		if err := s.host.ReadBlocks(make([]byte, n), 0); !errors.Is(err, ErrBlockSize) {
			t.Errorf("ReadBlocks(%d bytes) = %v, want ErrBlockSize", n, err)
		}
		if err := s.host.WriteBlocks(make([]byte, n), 0); !errors.Is(err, ErrBlockSize) {
			t.Errorf("WriteBlocks(%d bytes) = %v, want ErrBlockSize", n, err)
		}
	}
}

func TestReadBlocks(t *testing.T) {
	tests := []struct {
		name   string
		start  uint32
		blocks int
	}{
		{"single", 0, 1},
		{"two", 4, 2},
		{"many", 3, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStack(t, 16, sim.Options{CommandBusyReads: 1})
			s.init(t)

			dst := make([]byte, tt.blocks*BlockSize)
			if err := s.host.ReadBlocks(dst, tt.start); err != nil {
				t.Fatalf("ReadBlocks() = %v", err)
			}
			for i := 0; i < tt.blocks; i++ {
				want := byte(tt.start) + byte(i)
				block := dst[i*BlockSize : (i+1)*BlockSize]
				if !bytes.Equal(block, bytes.Repeat([]byte{want}, BlockSize)) {
					t.Errorf("block %d does not hold sector %d", i, want)
				}
			}
			if len(s.hw.ReadLog) != tt.blocks {
				t.Errorf("ReadLog = %v", s.hw.ReadLog)
			}
			if s.card.Session().ReadInProgress {
				t.Error("read still in progress after ReadBlocks")
			}
		})
	}
}

func TestRepeatedRead(t *testing.T) {
	s := newStack(t, 16, sim.Options{})
	s.init(t)

	a := make([]byte, BlockSize)
	b := make([]byte, BlockSize)
	if err := s.host.ReadBlocks(a, 5); err != nil {
		t.Fatalf("first ReadBlocks() = %v", err)
	}
	if err := s.host.ReadBlocks(b, 5); err != nil {
		t.Fatalf("second ReadBlocks() = %v", err)
	}
	if a[0] != 5 || b[0] != 5 {
		t.Errorf("read sectors %d and %d, want 5 twice", a[0], b[0])
	}
}

func TestWriteBlocks(t *testing.T) {
	tests := []struct {
		name   string
		start  uint32
		blocks int
	}{
		{"single", 2, 1},
		{"multiple", 8, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStack(t, 16, sim.Options{})
			s.init(t)

			src := make([]byte, tt.blocks*BlockSize)
			for i := range src {
				src[i] = byte(i*3 + 1)
			}
			if err := s.host.WriteBlocks(src, tt.start); err != nil {
				t.Fatalf("WriteBlocks() = %v", err)
			}
			off := int(tt.start) * ata.SectorSize
			if !bytes.Equal(s.mem[off:off+len(src)], src) {
				t.Error("image does not hold the written blocks")
			}
			if sess := s.card.Session(); sess.WriteInProgress || sess.SectorsWritten != 0 {
				t.Errorf("session after write = %+v", sess)
			}

			// the card is ready for the next transfer
			got := make([]byte, len(src))
			if err := s.host.ReadBlocks(got, tt.start); err != nil {
				t.Fatalf("ReadBlocks() = %v", err)
			}
			if !bytes.Equal(got, src) {
				t.Error("read back differs")
			}
		})
	}
}

func TestWriteThenWrite(t *testing.T) {
	s := newStack(t, 16, sim.Options{})
	s.init(t)

	one := bytes.Repeat([]byte{0x11}, BlockSize)
	two := bytes.Repeat([]byte{0x22}, 2*BlockSize)
	if err := s.host.WriteBlocks(one, 1); err != nil {
		t.Fatalf("WriteBlocks(one) = %v", err)
	}
	if err := s.host.WriteBlocks(two, 1); err != nil {
		t.Fatalf("WriteBlocks(two) = %v", err)
	}
	want := []uint32{1, 1, 2}
	if len(s.hw.WriteLog) != len(want) {
		t.Fatalf("WriteLog = %v, want %v", s.hw.WriteLog, want)
	}
	for i := range want {
		if s.hw.WriteLog[i] != want[i] {
			t.Errorf("WriteLog = %v, want %v", s.hw.WriteLog, want)
		}
	}
}

func TestDriveErrorsAreInvisible(t *testing.T) {
	s := newStack(t, 4, sim.Options{})
	s.init(t)

	// past the end of the drive: the card still hands out a block
	dst := bytes.Repeat([]byte{0xEE}, BlockSize)
	if err := s.host.ReadBlocks(dst, 4); err != nil {
		t.Fatalf("ReadBlocks() = %v", err)
	}
	if dst[0] != 0xEE {
		t.Error("buffer changed by a failed drive read")
	}
	if len(s.hw.ReadLog) != 0 {
		t.Errorf("ReadLog = %v, want no served reads", s.hw.ReadLog)
	}
}

var errBus = errors.New("bus fault")

// faultySPI fails every single byte transfer once a data block went out.
type faultySPI struct {
	*sdemu.SPI
	blockSent bool
}

func (f *faultySPI) Tx(w, r []byte) error {
	if len(w) == BlockSize {
		f.blockSent = true
	}
	return f.SPI.Tx(w, r)
}

func (f *faultySPI) Transfer(b byte) (byte, error) {
	if f.blockSent {
		return 0xFF, errBus
	}
	return f.SPI.Transfer(b)
}

func TestWriteBlocksCRCError(t *testing.T) {
	s := newStack(t, 16, sim.Options{})
	spi := &faultySPI{SPI: sdemu.NewSPI(s.card)}
	h := New(spi, Options{Logger: diag.NewLogger(io.Discard, nil)})
	if err := h.Init(); err != nil {
		t.Fatalf("Init() = %v", err)
	}

	if err := h.WriteBlocks(make([]byte, BlockSize), 0); !errors.Is(err, errBus) {
		t.Errorf("WriteBlocks() = %v, want the bus error", err)
	}
}

// silentSPI is a bus with nothing attached.
type silentSPI struct{}

func (silentSPI) Tx(w, r []byte) error {
	for i := range r {
		r[i] = 0xFF
	}
	return nil
}

func (silentSPI) Transfer(byte) (byte, error) { return 0xFF, nil }

func TestNoCard(t *testing.T) {
	h := New(silentSPI{}, Options{Retries: 8, Logger: diag.NewLogger(io.Discard, nil)})
	if err := h.Init(); !errors.Is(err, ErrNoCard) {
		t.Errorf("Init() = %v, want ErrNoCard", err)
	}
}
