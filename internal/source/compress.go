package source

import (
	"compress/bzip2"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression applied to a tarball.
type compression int

const (
	none compression = iota
	gzipped
	xzed
	zstded
	bzipped
)

var suffixes = []struct {
	suffix string
	c      compression
}{
	{".tar", none},
	{".tar.gz", gzipped},
	{".tgz", gzipped},
	{".tar.xz", xzed},
	{".txz", xzed},
	{".tar.zst", zstded},
	{".tzst", zstded},
	{".tar.bz2", bzipped},
	{".tbz2", bzipped},
}

// Returns the compression implied by the extension of name.
func compressionOf(name string) (compression, error) {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.c, nil
		}
	}
	return none, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Wraps rc in the decompressor matching name. Closing the result closes rc.
func decompress(rc io.ReadCloser, name string) (io.ReadCloser, error) {
	c, err := compressionOf(name)
	if err != nil {
		return nil, err
	}

	switch c {
	case gzipped:
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, err
		}
		return &stream{Reader: zr, closers: []func() error{zr.Close, rc.Close}}, nil
	case xzed:
		xr, err := xz.NewReader(rc)
		if err != nil {
			return nil, err
		}
		return &stream{Reader: xr, closers: []func() error{rc.Close}}, nil
	case zstded:
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, err
		}
		return &stream{Reader: zr, closers: []func() error{func() error { zr.Close(); return nil }, rc.Close}}, nil
	case bzipped:
		return &stream{Reader: bzip2.NewReader(rc), closers: []func() error{rc.Close}}, nil
	}
	return rc, nil
}

// A decompressed stream over an underlying reader.
type stream struct {
	io.Reader
	closers []func() error
}

func (s *stream) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
