// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package packet implements the codec buffer: an owned byte sequence with a
// read cursor and a configurable width for count prefixes.
//
// Writes always append to the end of the buffer. Reads consume from the
// cursor. The only way to change bytes that were already written is one of
// the Patch operations, which overwrite a fixed-size field in place and
// never change the length of the buffer.
//
// Wire format, all integers in host byte order:
//
//	count prefix      1, 2, 4 or 8 bytes, see LengthFormat
//	string            count + bytes
//	sequence<T>       count + T...
//	array<T,N>        T * N
//	Pair<A,B>         A B
//	Optional<T>       bool flag (1 byte) [+ T]
//	map<K,V>          count + (K V)...
//	fixed leaf        raw bytes
//
// A Packet is not safe for concurrent use.
package packet

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Packet is a growable byte buffer with a read cursor.
type Packet struct {
	buf    []byte
	cursor int
	lf     LengthFormat
}

// Option configures a Packet on construction.
type Option func(*Packet)

// WithLengthFormat sets the width of count prefixes.
func WithLengthFormat(f LengthFormat) Option {
	return func(p *Packet) {
		p.lf = f
	}
}

// New returns an empty packet.
func New(opts ...Option) *Packet {
	p := &Packet{lf: DefaultLengthFormat}
	for _, o := range opts {
		o(p)
	}
	return p
}

// FromBytes returns a packet holding a copy of data, positioned at its start.
func FromBytes(data []byte, opts ...Option) *Packet {
	p := New(opts...)
	p.SetBytes(data)
	return p
}

func (p *Packet) LengthFormat() LengthFormat { return p.lf }

// SetLengthFormat changes the width used by subsequent count reads and writes.
// It is not validated here; an unknown format fails on first use.
func (p *Packet) SetLengthFormat(f LengthFormat) { p.lf = f }

// Tell returns the read cursor.
func (p *Packet) Tell() int { return p.cursor }

// Size returns the number of bytes in the buffer.
func (p *Packet) Size() int { return len(p.buf) }

// Remaining returns the number of bytes between the cursor and the end.
func (p *Packet) Remaining() int { return len(p.buf) - p.cursor }

// Seek moves the read cursor to an absolute offset in [0, Size()].
func (p *Packet) Seek(offset int) error {
	if offset < 0 || offset > len(p.buf) {
		return errors.Wrapf(ErrOutOfRange, "seek to %d in %d bytes", offset, len(p.buf))
	}
	p.cursor = offset
	return nil
}

// Bytes returns the buffer. The slice aliases the packet until the next write.
func (p *Packet) Bytes() []byte { return p.buf }

// SetBytes replaces the buffer with a copy of data and rewinds the cursor.
func (p *Packet) SetBytes(data []byte) {
	p.buf = append(p.buf[:0], data...)
	p.cursor = 0
}

// Reset empties the buffer and rewinds the cursor. The length format is kept.
func (p *Packet) Reset() {
	p.buf = p.buf[:0]
	p.cursor = 0
}

// Resize truncates or zero-extends the buffer to n bytes.
func (p *Packet) Resize(n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(p.buf) {
		p.buf = p.buf[:n]
	} else {
		p.buf = append(p.buf, make([]byte, n-len(p.buf))...)
	}
	if p.cursor > n {
		p.cursor = n
	}
}

// next consumes n bytes and returns them without copying.
func (p *Packet) next(n int) ([]byte, error) {
	if n < 0 || n > p.Remaining() {
		return nil, &UnderrunError{Need: n, Have: p.Remaining()}
	}
	b := p.buf[p.cursor : p.cursor+n]
	p.cursor += n
	return b, nil
}

// WriteRaw appends b without any framing.
func (p *Packet) WriteRaw(b []byte) {
	p.buf = append(p.buf, b...)
}

// ReadRaw consumes n bytes and returns a copy of them.
func (p *Packet) ReadRaw(n int) ([]byte, error) {
	b, err := p.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadAllString consumes the rest of the buffer as one unframed string.
func (p *Packet) ReadAllString() string {
	s := string(p.buf[p.cursor:])
	p.cursor = len(p.buf)
	return s
}

// WriteLength appends a count prefix using the configured length format.
func (p *Packet) WriteLength(n uint64) error {
	sz, err := p.lf.Size()
	if err != nil {
		return err
	}
	if n > p.lf.Max() {
		return errors.Wrapf(ErrLengthOverflow, "count %d with %s", n, p.lf)
	}
	p.buf = append(p.buf, make([]byte, sz)...)
	putLength(p.buf[len(p.buf)-sz:], p.lf, n)
	return nil
}

// ReadLength consumes a count prefix using the configured length format.
func (p *Packet) ReadLength() (uint64, error) {
	sz, err := p.lf.Size()
	if err != nil {
		return 0, err
	}
	b, err := p.next(sz)
	if err != nil {
		return 0, errors.Wrap(err, "reading length")
	}
	switch p.lf {
	case UInt8:
		return uint64(b[0]), nil
	case UInt16:
		return uint64(binary.NativeEndian.Uint16(b)), nil
	case UInt32:
		return uint64(binary.NativeEndian.Uint32(b)), nil
	default:
		return binary.NativeEndian.Uint64(b), nil
	}
}

// readCount reads a count prefix and checks it against int.
func (p *Packet) readCount() (int, error) {
	n, err := p.ReadLength()
	if err != nil {
		return 0, err
	}
	if n > uint64(maxInt) {
		return 0, errors.Wrapf(ErrLengthOverflow, "count %d does not fit int", n)
	}
	return int(n), nil
}

// ReserveLength appends a zero count prefix and returns its offset, to be
// filled in later with PatchLength once the count is known.
func (p *Packet) ReserveLength() (int, error) {
	off := len(p.buf)
	if err := p.WriteLength(0); err != nil {
		return 0, err
	}
	return off, nil
}

// PatchLength overwrites the count prefix at offset.
func (p *Packet) PatchLength(offset int, n uint64) error {
	sz, err := p.lf.Size()
	if err != nil {
		return err
	}
	if n > p.lf.Max() {
		return errors.Wrapf(ErrLengthOverflow, "count %d with %s", n, p.lf)
	}
	if offset < 0 || offset+sz > len(p.buf) {
		return errors.Wrapf(ErrOutOfRange, "patch %d bytes at %d in %d bytes", sz, offset, len(p.buf))
	}
	putLength(p.buf[offset:offset+sz], p.lf, n)
	return nil
}

// WriteString appends s as a count prefix followed by its bytes.
func (p *Packet) WriteString(s string) error {
	if err := p.WriteLength(uint64(len(s))); err != nil {
		return errors.Wrap(err, "writing string length")
	}
	p.buf = append(p.buf, s...)
	return nil
}

// ReadString consumes a length-prefixed string.
func (p *Packet) ReadString() (string, error) {
	n, err := p.readCount()
	if err != nil {
		return "", errors.Wrap(err, "reading string length")
	}
	b, err := p.next(n)
	if err != nil {
		return "", errors.Wrap(err, "reading string body")
	}
	return string(b), nil
}

// WriteBytes appends b as a count prefix followed by its bytes.
func (p *Packet) WriteBytes(b []byte) error {
	if err := p.WriteLength(uint64(len(b))); err != nil {
		return errors.Wrap(err, "writing bytes length")
	}
	p.buf = append(p.buf, b...)
	return nil
}

// ReadBytes consumes a length-prefixed byte string and returns a copy of it.
func (p *Packet) ReadBytes() ([]byte, error) {
	n, err := p.readCount()
	if err != nil {
		return nil, errors.Wrap(err, "reading bytes length")
	}
	b, err := p.ReadRaw(n)
	return b, errors.Wrap(err, "reading bytes body")
}

const maxInt = int(^uint(0) >> 1)

func putLength(b []byte, f LengthFormat, n uint64) {
	switch f {
	case UInt8:
		b[0] = uint8(n)
	case UInt16:
		binary.NativeEndian.PutUint16(b, uint16(n))
	case UInt32:
		binary.NativeEndian.PutUint32(b, uint32(n))
	case UInt64:
		binary.NativeEndian.PutUint64(b, n)
	}
}
