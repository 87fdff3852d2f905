package sdemu

// Response is a canned reply, emitted one byte per host receive.
type Response []byte

var (
	respGoIdle      = Response{0xFF, R1Idle, 0xFF}
	respGoIdleError = Response{0xFF, 0x00, 0xFF}
	respSendIfCond  = Response{0xFF, R1Idle, 0x00, 0x00, 0x01, 0xAA, 0xFF}
	respStop        = Response{0x7F, R1Ready, 0xFF} // stuff byte first
	respAppCmd      = respGoIdle
	respSendOpCond  = Response{0xFF, R1Ready, 0xFF}
	respReadOCR     = Response{0xFF, R1Ready, 0xC0, 0xFF, 0x80, 0x00, 0xFF} // high capacity, powered up

	// R1, start token, dummy CRC 0xabcd
	respReadFirst = Response{0xFF, R1Ready, 0xFF, 0xFF, TokenStartBlock, 0xAB, 0xCD, 0xFF}
	// start token, dummy CRC 0x1234
	respReadNext = Response{0xFF, TokenStartBlock, 0x12, 0x34, 0xFF}

	respWriteStart     = Response{0xFF, R1Ready, 0xFF}
	respWriteNext      = Response{0xE5, 0x03, 0xFF} // data accepted
	respWriteMultiEnd  = Response{0x80, 0x03, 0xFF}
	respWriteSingleEnd = Response{0x83, 0xFF}
)

// Emitter walks a Response. It returns to the first byte after the last
// one. Asked for a response shorter than its position, it emits one idle
// byte and starts over, which lets the first bytes of a longer response hand
// over to a shorter one without the host noticing.
type Emitter struct {
	pos int
}

// Next returns the next byte of r.
func (e *Emitter) Next(r Response) byte {
	if e.pos >= len(r) {
		e.pos = 0
		return Idle
	}
	b := r[e.pos]
	e.pos++
	if e.pos == len(r) {
		e.pos = 0
	}
	return b
}

// Pos returns the index of the byte Next emits.
func (e *Emitter) Pos() int { return e.pos }

// Reset moves back to the first byte.
func (e *Emitter) Reset() { e.pos = 0 }
