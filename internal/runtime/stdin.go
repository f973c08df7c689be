package runtime

import (
	"io"
	"sync"
)

// Feeds a process's stdin and signals when the input is exhausted.
//
// The done channel is closed once, on the first error from the underlying
// reader. io.EOF counts as exhaustion; any other error is kept and reported
// by Err so that the caller can tell a truncated stream from a complete one.
type stdinReader struct {
	r    io.Reader
	once sync.Once
	done chan struct{}
	err  error
}

func newStdinReader(r io.Reader) *stdinReader {
	return &stdinReader{r: r, done: make(chan struct{})}
}

func (s *stdinReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil {
		s.once.Do(func() {
			if err != io.EOF {
				s.err = err
			}
			close(s.done)
		})
	}
	return n, err
}

// Returns the read error that ended the stream. It is nil after a clean
// EOF and while the stream is still being read.
func (s *stdinReader) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
