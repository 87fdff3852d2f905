// Package sdemu makes a PATA drive look like an SD card in SPI mode. A
// Card decodes the command frames a filesystem library sends, answers them
// with the canned responses such a library expects, and maps the data block
// transfers onto multi-sector reads and writes of the drive.
package sdemu

import "fmt"

// Command is an SD command index, the low six bits of the first frame byte.
type Command uint8

const (
	CmdGoIdleState        Command = 0  // CMD0
	CmdSendIfCond         Command = 8  // CMD8
	CmdStopTransmission   Command = 12 // CMD12
	CmdReadMultipleBlock  Command = 18 // CMD18
	CmdWriteMultipleBlock Command = 25 // CMD25
	AcmdSendOpCond        Command = 41 // ACMD41, after CMD55
	CmdAppCmd             Command = 55 // CMD55
	CmdReadOCR            Command = 58 // CMD58
)

func (c Command) String() string {
	switch c {
	case CmdGoIdleState:
		return "GO_IDLE_STATE"
	case CmdSendIfCond:
		return "SEND_IF_COND"
	case CmdStopTransmission:
		return "STOP_TRANSMISSION"
	case CmdReadMultipleBlock:
		return "READ_MULTIPLE_BLOCK"
	case CmdWriteMultipleBlock:
		return "WRITE_MULTIPLE_BLOCK"
	case AcmdSendOpCond:
		return "SD_SEND_OP_COND"
	case CmdAppCmd:
		return "APP_CMD"
	case CmdReadOCR:
		return "READ_OCR"
	default:
		return fmt.Sprintf("CMD%d", uint8(c))
	}
}

// R1 response values
const (
	R1Ready = 0x00
	R1Idle  = 0x01
)

// Data tokens
const (
	TokenStartBlock    = 0xFE // single block read, multiple block read
	TokenWriteMultiple = 0xFC // multiple block write
	TokenStopTran      = 0xFD // end of multiple block write
)

// Idle is the value of an undriven MISO line.
const Idle = 0xFF
