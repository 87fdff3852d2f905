package diag

// LineWriter adapts a line-oriented sink, such as a UART println, to
// io.Writer. Bytes are collected until a newline and the line is passed on
// without the newline.
type LineWriter struct {
	sink func(string)
	buf  []byte
}

// NewLineWriter returns a LineWriter delivering complete lines to sink.
func NewLineWriter(sink func(string)) *LineWriter {
	return &LineWriter{sink: sink, buf: make([]byte, 0, 128)}
}

// Write implements io.Writer. It never fails.
func (w *LineWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			w.flush()
			continue
		}
		w.buf = append(w.buf, b)
	}
	return len(p), nil
}

// Flush delivers any partial line.
func (w *LineWriter) Flush() {
	if len(w.buf) > 0 {
		w.flush()
	}
}

func (w *LineWriter) flush() {
	if w.sink != nil {
		w.sink(string(w.buf))
	}
	w.buf = w.buf[:0]
}
