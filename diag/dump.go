package diag

import (
	"fmt"
	"io"
	"strings"
)

// Register bit names, most significant bit first.
var (
	StatusBits = [8]string{"BSY", "DRDY", "DWF", "DSC", "DRQ", "CORR", "IDX", "ERR"}
	ErrorBits  = [8]string{"BBK", "UNC", "MC", "IDNF", "MCR", "ABRT", "TK0NF", "AMNF"}
)

// FormatBits renders a register value as "NAME=bit" pairs, most significant
// bit first.
func FormatBits(names [8]string, value byte) string {
	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		if value&(0x80>>i) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Hexdump writes buf as rows of 16 bytes: offset, hex bytes, printable
// ASCII. A short last row is padded so the ASCII column stays aligned.
func Hexdump(w io.Writer, buf []byte) error {
	for addr := 0; addr < len(buf); addr += 16 {
		end := min(addr+16, len(buf))
		row := buf[addr:end]

		var sb strings.Builder
		fmt.Fprintf(&sb, "0x%04x\t", addr)
		for _, b := range row {
			fmt.Fprintf(&sb, "%02x ", b)
		}
		sb.WriteString(strings.Repeat("   ", 16-len(row)))
		sb.WriteByte('\t')
		for _, b := range row {
			if b >= 32 && b < 127 {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')

		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
