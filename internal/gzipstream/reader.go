// Package gzipstream decompresses a single-member gzip stream read from a
// source that cannot seek, such as a live HTTP response body.
//
// The reader parses the member header lazily on the first Read and then feeds
// the raw bytes through an incremental DEFLATE decoder. It reports io.EOF as
// soon as the source runs dry or the DEFLATE stream of the first member ends;
// whatever follows (the CRC32/ISIZE trailer, padding, further members) is never
// read. Integrity checks that would need the trailer are skipped, so a
// corrupted payload with a valid DEFLATE structure goes unnoticed. Multi-member
// archives are cut after their first member.
package gzipstream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

var (
	// ErrNotSeekable is returned by Seek; the stream only moves forward.
	ErrNotSeekable = errors.New("gzipstream: stream is not seekable")
	// ErrHeader is returned when the member header is malformed.
	ErrHeader = errors.New("gzipstream: invalid header")
)

const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 8

	flagHdrCrc  = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// Header is the metadata of the member that was read.
type Header struct {
	Name    string
	Comment string
	ModTime time.Time
	OS      byte
}

// Reader is an io.ReadCloser over the decompressed member. It is not safe for
// concurrent use.
type Reader struct {
	Header Header

	src          io.Reader
	br           *bufio.Reader
	decompressor io.ReadCloser
	started      bool
	done         bool
	err          error
}

// NewReader wraps src without touching it; nothing is read until the first
// call to Read.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src}
}

// Read implements io.Reader.
func (z *Reader) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	if z.done {
		return 0, io.EOF
	}
	if !z.started {
		z.started = true
		z.br = bufio.NewReader(z.src)
		if err := z.readHeader(); err != nil {
			if errors.Is(err, io.EOF) {
				// empty source: nothing to decompress
				z.done = true
				return 0, io.EOF
			}
			z.err = err
			return 0, err
		}
		z.decompressor = flate.NewReader(z.br)
	}

	n, err := z.decompressor.Read(p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// end of member or source exhausted mid-member
		z.done = true
		return n, io.EOF
	default:
		z.err = err
		return n, err
	}
}

// Seek always fails with ErrNotSeekable.
func (z *Reader) Seek(offset int64, whence int) (int64, error) {
	return 0, ErrNotSeekable
}

// Seekable reports false.
func (z *Reader) Seekable() bool {
	return false
}

// Close releases the decoder and closes the source when it is an io.Closer.
func (z *Reader) Close() error {
	if z.decompressor != nil {
		_ = z.decompressor.Close()
	}
	z.done = true
	if c, ok := z.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (z *Reader) readHeader() error {
	var buf [10]byte
	if _, err := io.ReadFull(z.br, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("%w: %w", ErrHeader, err)
	}
	if buf[0] != gzipID1 || buf[1] != gzipID2 || buf[2] != gzipDeflate {
		return ErrHeader
	}

	flg := buf[3]
	if mtime := binary.LittleEndian.Uint32(buf[4:8]); mtime > 0 {
		z.Header.ModTime = time.Unix(int64(mtime), 0)
	}
	z.Header.OS = buf[9]

	if flg&flagExtra != 0 {
		if _, err := io.ReadFull(z.br, buf[:2]); err != nil {
			return fmt.Errorf("%w: %w", ErrHeader, noEOF(err))
		}
		size := int64(binary.LittleEndian.Uint16(buf[:2]))
		if _, err := io.CopyN(io.Discard, z.br, size); err != nil {
			return fmt.Errorf("%w: %w", ErrHeader, noEOF(err))
		}
	}
	if flg&flagName != 0 {
		s, err := z.readString()
		if err != nil {
			return err
		}
		z.Header.Name = s
	}
	if flg&flagComment != 0 {
		s, err := z.readString()
		if err != nil {
			return err
		}
		z.Header.Comment = s
	}
	if flg&flagHdrCrc != 0 {
		if _, err := io.ReadFull(z.br, buf[:2]); err != nil {
			return fmt.Errorf("%w: %w", ErrHeader, noEOF(err))
		}
	}
	return nil
}

// readString reads a zero-terminated ISO 8859-1 string.
func (z *Reader) readString() (string, error) {
	raw, err := z.br.ReadBytes(0)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHeader, noEOF(err))
	}
	raw = raw[:len(raw)-1]
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
