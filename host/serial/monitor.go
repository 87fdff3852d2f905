package serial

import (
	"context"
	"errors"
	"io"

	"cfcard/diag"
)

// Monitor copies complete lines from r to sink until ctx is done or r
// fails. A read timeout shows up as io.EOF and is not an error.
func Monitor(ctx context.Context, r io.Reader, sink func(line string)) error {
	lw := diag.NewLineWriter(sink)
	defer lw.Flush()

	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			lw.Write(buf[:n])
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
}
