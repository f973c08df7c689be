package build

import (
	"bytes"
	"io"
	"sync"
)

// Serializes writes to a writer shared by concurrent jobs.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Prefixes every line written to it.
//
// Output is buffered until a newline so that every line reaches the
// underlying writer in a single Write, which keeps lines of concurrent jobs
// from interleaving. Call Flush to emit a trailing partial line.
type prefixWriter struct {
	w      io.Writer
	prefix []byte
	buf    []byte // Pending partial line.
}

// Creates a prefix writer.
func newPrefixWriter(w io.Writer, prefix string) *prefixWriter {
	return &prefixWriter{w: w, prefix: []byte(prefix)}
}

func (pw *prefixWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			pw.buf = append(pw.buf, p...)
			break
		}
		line := make([]byte, 0, len(pw.prefix)+len(pw.buf)+i+1)
		line = append(line, pw.prefix...)
		line = append(line, pw.buf...)
		line = append(line, p[:i+1]...)
		pw.buf = pw.buf[:0]
		if _, err := pw.w.Write(line); err != nil {
			return n - len(p), err
		}
		p = p[i+1:]
	}
	return n, nil
}

// Writes a pending partial line, terminated with a newline.
func (pw *prefixWriter) Flush() error {
	if len(pw.buf) == 0 {
		return nil
	}
	_, err := pw.Write([]byte{'\n'})
	return err
}
