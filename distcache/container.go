package distcache

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

// Compression is the container wrapped around the raw layout on disk.
type Compression uint8

const (
	// CompressionNone stores the raw layout.
	CompressionNone Compression = iota
	// CompressionZstd wraps the raw layout in a zstd frame.
	CompressionZstd
	// CompressionLZ4 wraps the raw layout in an lz4 frame.
	CompressionLZ4
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", c)
	}
}

// ParseCompression parses "none", "zstd" or "lz4".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "raw":
		return CompressionNone, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// Sniff reports the container of a stream from its first bytes. A raw file
// starts with a 3-byte version and never matches a compression magic.
func Sniff(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, lz4Magic):
		return CompressionLZ4
	}
	return CompressionNone
}

// Read decodes a distance cache, transparently decompressing zstd and lz4
// containers. It returns the detected container.
func Read(r io.Reader) (*File, Compression, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, CompressionNone, errors.Wrap(err, "peek container")
	}
	kind := Sniff(head)
	var f *File
	switch kind {
	case CompressionZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, kind, errors.Wrap(err, "zstd reader")
		}
		defer dec.Close()
		f, err = Decode(dec)
		if err != nil {
			return nil, kind, err
		}
	case CompressionLZ4:
		f, err = Decode(lz4.NewReader(br))
		if err != nil {
			return nil, kind, err
		}
	default:
		f, err = Decode(br)
		if err != nil {
			return nil, kind, err
		}
	}
	return f, kind, nil
}

// Write encodes f inside the requested container.
func Write(w io.Writer, f *File, compression Compression) error {
	switch compression {
	case CompressionNone:
		return f.Encode(w)
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return errors.Wrap(err, "zstd writer")
		}
		if err := f.Encode(enc); err != nil {
			_ = enc.Close()
			return err
		}
		return errors.Wrap(enc.Close(), "zstd close")
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		if err := f.Encode(zw); err != nil {
			_ = zw.Close()
			return err
		}
		return errors.Wrap(zw.Close(), "lz4 close")
	}
	return fmt.Errorf("unknown compression %d", compression)
}

// ReadFile decodes the distance cache stored at path.
func ReadFile(path string) (*File, Compression, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, CompressionNone, errors.Wrap(err, "open distance cache")
	}
	defer fh.Close()
	f, kind, err := Read(fh)
	if err != nil {
		return nil, kind, errors.Wrapf(err, "decode %s", path)
	}
	return f, kind, nil
}

// WriteFile stores f at path inside the requested container.
func WriteFile(path string, f *File, compression Compression) error {
	fh, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create distance cache")
	}
	if err := Write(fh, f, compression); err != nil {
		_ = fh.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return fh.Close()
}

// Load reads the file at path and builds its lookup table.
func Load(path string) (*Cache, error) {
	f, _, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(f)
}

// Digest returns the BLAKE3-256 hash of the raw layout of f. Files with the
// same content have the same digest whatever their container.
func Digest(f *File) ([32]byte, error) {
	h := blake3.New(32, nil)
	if err := f.Encode(h); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
