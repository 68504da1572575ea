package fetch

import (
	"bytes"
	"compress/bzip2"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Compression selects how a body is unpacked.
type Compression int

const (
	// None passes bytes through.
	None Compression = iota
	// Gzip expects gzip but also recognises xz and bzip2 by magic bytes.
	Gzip
	// Brotli has no magic number, so it must be asked for explicitly.
	Brotli
	// Auto sniffs magic bytes; a binary body with no known magic is tried
	// as brotli. Text is left alone.
	Auto
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	case Auto:
		return "auto"
	}
	return "none"
}

// Decompress unpacks data according to mode. Upstreams are inconsistent about
// compressing, so any failure returns data unchanged.
func Decompress(data []byte, mode Compression) []byte {
	if mode == None || len(data) == 0 {
		return data
	}
	var (
		r   io.Reader
		err error
	)
	if mode == Brotli {
		r = brotli.NewReader(bytes.NewReader(data))
	} else {
		r, err = sniff(data)
		if err != nil {
			return data
		}
		if r == nil {
			if mode != Auto || looksLikeText(data) {
				return data
			}
			r = brotli.NewReader(bytes.NewReader(data))
		}
	}
	out, err := io.ReadAll(r)
	if err != nil || len(out) == 0 {
		return data
	}
	if c, ok := r.(io.Closer); ok {
		c.Close()
	}
	return out
}

func sniff(data []byte) (io.Reader, error) {
	br := bytes.NewReader(data)
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return gzip.NewReader(br)
	case len(data) >= 3 && data[0] == 'B' && data[1] == 'Z' && data[2] == 'h':
		return bzip2.NewReader(br), nil
	case len(data) >= 6 && bytes.Equal(data[:6], []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}):
		return xz.NewReader(br)
	}
	return nil, nil
}

// looksLikeText reports whether data starts like JSON, XML/HTML or M3U.
func looksLikeText(data []byte) bool {
	t := bytes.TrimPrefix(data, utf8BOM)
	t = bytes.TrimLeft(t, " \t\r\n")
	if len(t) == 0 {
		return true
	}
	switch t[0] {
	case '{', '[', '<', '#':
		return true
	}
	return false
}
