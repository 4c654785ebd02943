// Package distcache reads and writes precomputed geodesic pixel distance
// tables and serves them for linking cost lookups.
//
// All integers in the file are 3-byte big-endian unsigned values, all
// floating-point values are 4-byte big-endian IEEE-754. Two layouts exist:
//
//	version 1 (2D+t): [1][Wdur][Wover f32][Wmax] values components
//	version 2 (2D):   [2] values components
//
//	values     = [count] {f32}*count
//	components = [Ncomps] {[comp] [Nsrc] {[px1] [Ndst] {[px2] targets}*}*}*
//	targets v1 = [Nwins] {[didx] [wstart] [wend]}*Nwins
//	targets v2 = [didx]
//
// The stream must end exactly after the last component.
package distcache

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Version identifies the file layout.
type Version uint32

const (
	// VersionTimeWindowed is the 2D+t layout with per-entry window ranges.
	VersionTimeWindowed Version = 1
	// VersionStatic is the 2D layout with a single implicit window.
	VersionStatic Version = 2
)

// MaxUint24 is the largest value a 3-byte integer field can hold.
const MaxUint24 = 1<<24 - 1

var (
	// ErrTruncated is returned when the stream ends inside a record.
	ErrTruncated = errors.New("distance cache truncated")
	// ErrTrailingBytes is returned when bytes follow the last component.
	ErrTrailingBytes = errors.New("distance cache has trailing bytes")
	// ErrUnknownVersion is returned for a version other than 1 or 2.
	ErrUnknownVersion = errors.New("unknown distance cache version")
	// ErrValueIndex is returned when an entry references a missing value.
	ErrValueIndex = errors.New("distance value index out of range")
	// ErrFieldRange is returned when a value does not fit a 3-byte field.
	ErrFieldRange = errors.New("value does not fit a 3-byte field")
)

// Span references a value for the inclusive window range [WindowStart, WindowEnd].
type Span struct {
	ValueIndex  uint32
	WindowStart uint32
	WindowEnd   uint32
}

// Target is a destination pixel with its distance spans. Version 2 files
// hold exactly one span with window range [0, 0].
type Target struct {
	Pixel uint32
	Spans []Span
}

// Source is a source pixel with its destinations.
type Source struct {
	Pixel   uint32
	Targets []Target
}

// Component is a connected component label with its source pixels.
type Component struct {
	Label   uint32
	Sources []Source
}

// File is the decoded content of a distance cache file, in file order.
type File struct {
	Version Version
	// Window fields are only meaningful for VersionTimeWindowed.
	WindowDuration uint32
	WindowOverlap  float32
	WindowCount    uint32

	Values     []float32
	Components []Component
}

type decoder struct {
	r      *bufio.Reader
	offset int64
	buf    [4]byte
}

func (d *decoder) read(n int) ([]byte, error) {
	got, err := io.ReadFull(d.r, d.buf[:n])
	d.offset += int64(got)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(ErrTruncated, "at byte %d", d.offset)
		}
		return nil, errors.Wrapf(err, "read at byte %d", d.offset)
	}
	return d.buf[:n], nil
}

func (d *decoder) u24() (uint32, error) {
	b, err := d.read(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

func (d *decoder) f32() (float32, error) {
	b, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// capHint bounds preallocation by counts read from untrusted input.
func capHint(n uint32) int {
	return int(min(n, 1024))
}

// Decode reads a raw (uncompressed) distance cache.
func Decode(r io.Reader) (*File, error) {
	d := &decoder{r: bufio.NewReader(r)}
	version, err := d.u24()
	if err != nil {
		return nil, errors.Wrap(err, "version")
	}
	f := &File{Version: Version(version)}
	switch f.Version {
	case VersionTimeWindowed:
		if f.WindowDuration, err = d.u24(); err != nil {
			return nil, errors.Wrap(err, "window duration")
		}
		if f.WindowOverlap, err = d.f32(); err != nil {
			return nil, errors.Wrap(err, "window overlap")
		}
		if f.WindowCount, err = d.u24(); err != nil {
			return nil, errors.Wrap(err, "window count")
		}
	case VersionStatic:
	default:
		return nil, errors.Wrapf(ErrUnknownVersion, "version %d", version)
	}

	nvalues, err := d.u24()
	if err != nil {
		return nil, errors.Wrap(err, "value count")
	}
	f.Values = make([]float32, 0, capHint(nvalues))
	for i := uint32(0); i < nvalues; i++ {
		v, err := d.f32()
		if err != nil {
			return nil, errors.Wrapf(err, "value %d", i)
		}
		f.Values = append(f.Values, v)
	}

	ncomps, err := d.u24()
	if err != nil {
		return nil, errors.Wrap(err, "component count")
	}
	f.Components = make([]Component, 0, capHint(ncomps))
	for i := uint32(0); i < ncomps; i++ {
		c, err := d.component(f)
		if err != nil {
			return nil, errors.Wrapf(err, "component %d", i)
		}
		f.Components = append(f.Components, c)
	}

	if _, err := d.r.ReadByte(); err != io.EOF {
		if err != nil {
			return nil, errors.Wrap(err, "end of stream")
		}
		return nil, errors.Wrapf(ErrTrailingBytes, "at byte %d", d.offset)
	}
	return f, nil
}

func (d *decoder) component(f *File) (Component, error) {
	var c Component
	var err error
	if c.Label, err = d.u24(); err != nil {
		return c, err
	}
	nsrc, err := d.u24()
	if err != nil {
		return c, err
	}
	c.Sources = make([]Source, 0, capHint(nsrc))
	for j := uint32(0); j < nsrc; j++ {
		var s Source
		if s.Pixel, err = d.u24(); err != nil {
			return c, err
		}
		ndst, err := d.u24()
		if err != nil {
			return c, err
		}
		s.Targets = make([]Target, 0, capHint(ndst))
		for k := uint32(0); k < ndst; k++ {
			t, err := d.target(f)
			if err != nil {
				return c, errors.Wrapf(err, "source pixel %d", s.Pixel)
			}
			s.Targets = append(s.Targets, t)
		}
		c.Sources = append(c.Sources, s)
	}
	return c, nil
}

func (d *decoder) target(f *File) (Target, error) {
	var t Target
	var err error
	if t.Pixel, err = d.u24(); err != nil {
		return t, err
	}
	if f.Version == VersionStatic {
		didx, err := d.u24()
		if err != nil {
			return t, err
		}
		if int(didx) >= len(f.Values) {
			return t, errors.Wrapf(ErrValueIndex, "index %d, %d values", didx, len(f.Values))
		}
		t.Spans = []Span{{ValueIndex: didx}}
		return t, nil
	}
	nwins, err := d.u24()
	if err != nil {
		return t, err
	}
	t.Spans = make([]Span, 0, capHint(nwins))
	for l := uint32(0); l < nwins; l++ {
		var s Span
		if s.ValueIndex, err = d.u24(); err != nil {
			return t, err
		}
		if int(s.ValueIndex) >= len(f.Values) {
			return t, errors.Wrapf(ErrValueIndex, "index %d, %d values", s.ValueIndex, len(f.Values))
		}
		if s.WindowStart, err = d.u24(); err != nil {
			return t, err
		}
		if s.WindowEnd, err = d.u24(); err != nil {
			return t, err
		}
		t.Spans = append(t.Spans, s)
	}
	return t, nil
}

type encoder struct {
	w   *bufio.Writer
	buf [4]byte
	err error
}

func (e *encoder) u24(v uint32, field string) {
	if e.err != nil {
		return
	}
	if v > MaxUint24 {
		e.err = errors.Wrapf(ErrFieldRange, "%s = %d", field, v)
		return
	}
	e.buf[0], e.buf[1], e.buf[2] = byte(v>>16), byte(v>>8), byte(v)
	_, e.err = e.w.Write(e.buf[:3])
}

func (e *encoder) count(n int, field string) {
	if n > MaxUint24 {
		if e.err == nil {
			e.err = errors.Wrapf(ErrFieldRange, "%s = %d", field, n)
		}
		return
	}
	e.u24(uint32(n), field)
}

func (e *encoder) f32(v float32) {
	if e.err != nil {
		return
	}
	binary.BigEndian.PutUint32(e.buf[:], math.Float32bits(v))
	_, e.err = e.w.Write(e.buf[:4])
}

// Encode writes f in the raw layout of its version. Decoding a file and
// encoding it again reproduces the input byte for byte.
func (f *File) Encode(w io.Writer) error {
	if f.Version != VersionTimeWindowed && f.Version != VersionStatic {
		return errors.Wrapf(ErrUnknownVersion, "version %d", f.Version)
	}
	e := &encoder{w: bufio.NewWriter(w)}
	e.u24(uint32(f.Version), "version")
	if f.Version == VersionTimeWindowed {
		e.u24(f.WindowDuration, "window duration")
		e.f32(f.WindowOverlap)
		e.u24(f.WindowCount, "window count")
	}
	e.count(len(f.Values), "value count")
	for _, v := range f.Values {
		e.f32(v)
	}
	e.count(len(f.Components), "component count")
	for _, c := range f.Components {
		e.u24(c.Label, "component")
		e.count(len(c.Sources), "source count")
		for _, s := range c.Sources {
			e.u24(s.Pixel, "source pixel")
			e.count(len(s.Targets), "target count")
			for _, t := range s.Targets {
				e.u24(t.Pixel, "target pixel")
				if f.Version == VersionStatic {
					if len(t.Spans) != 1 {
						if e.err == nil {
							e.err = fmt.Errorf("version 2 target pixel %d has %d spans, expected 1", t.Pixel, len(t.Spans))
						}
						continue
					}
					e.u24(t.Spans[0].ValueIndex, "value index")
					continue
				}
				e.count(len(t.Spans), "window count")
				for _, sp := range t.Spans {
					e.u24(sp.ValueIndex, "value index")
					e.u24(sp.WindowStart, "window start")
					e.u24(sp.WindowEnd, "window end")
				}
			}
		}
	}
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// NumEntries returns the number of (component, source, target, span) records.
func (f *File) NumEntries() int {
	n := 0
	for _, c := range f.Components {
		for _, s := range c.Sources {
			for _, t := range s.Targets {
				n += len(t.Spans)
			}
		}
	}
	return n
}
