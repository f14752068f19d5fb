// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package packet

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/pkg/errors"
)

// Fixed is the closed set of leaf types that are copied onto the wire as raw
// bytes in host byte order. Named types over these kinds are included.
type Fixed interface {
	~bool | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64
}

// WriteFixed appends the raw bytes of v.
func WriteFixed[T Fixed](p *Packet, v T) {
	rv := reflect.ValueOf(v)
	sz := fixedSize(rv.Kind())
	p.buf = append(p.buf, make([]byte, sz)...)
	putFixed(p.buf[len(p.buf)-sz:], rv)
}

// ReadFixed consumes the raw bytes of a T.
func ReadFixed[T Fixed](p *Packet) (T, error) {
	var v T
	rv := reflect.ValueOf(&v).Elem()
	b, err := p.next(fixedSize(rv.Kind()))
	if err != nil {
		return v, errors.Wrapf(err, "reading %T", v)
	}
	getFixed(b, rv)
	return v, nil
}

// PatchFixed overwrites the field of type T that starts at offset.
// The buffer length never changes.
func PatchFixed[T Fixed](p *Packet, offset int, v T) error {
	rv := reflect.ValueOf(v)
	sz := fixedSize(rv.Kind())
	if offset < 0 || offset+sz > len(p.buf) {
		return errors.Wrapf(ErrOutOfRange, "patch %d bytes at %d in %d bytes", sz, offset, len(p.buf))
	}
	putFixed(p.buf[offset:offset+sz], rv)
	return nil
}

// fixedSize returns the wire size of a leaf kind, or 0 if the kind is not a leaf.
// int and uint always take eight bytes.
func fixedSize(k reflect.Kind) int {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int64, reflect.Uint64, reflect.Float64, reflect.Int, reflect.Uint:
		return 8
	}
	return 0
}

func putFixed(b []byte, rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Bool:
		b[0] = 0
		if rv.Bool() {
			b[0] = 1
		}
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		putUint(b, uint64(rv.Int()))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		putUint(b, rv.Uint())
	case reflect.Float32:
		binary.NativeEndian.PutUint32(b, math.Float32bits(float32(rv.Float())))
	case reflect.Float64:
		binary.NativeEndian.PutUint64(b, math.Float64bits(rv.Float()))
	}
}

func getFixed(b []byte, rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Bool:
		rv.SetBool(b[0] != 0)
	case reflect.Int8:
		rv.SetInt(int64(int8(b[0])))
	case reflect.Int16:
		rv.SetInt(int64(int16(binary.NativeEndian.Uint16(b))))
	case reflect.Int32:
		rv.SetInt(int64(int32(binary.NativeEndian.Uint32(b))))
	case reflect.Int64, reflect.Int:
		rv.SetInt(int64(binary.NativeEndian.Uint64(b)))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		rv.SetUint(getUint(b))
	case reflect.Float32:
		rv.SetFloat(float64(math.Float32frombits(binary.NativeEndian.Uint32(b))))
	case reflect.Float64:
		rv.SetFloat(math.Float64frombits(binary.NativeEndian.Uint64(b)))
	}
}

// putUint stores the low len(b) bytes of v.
func putUint(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = uint8(v)
	case 2:
		binary.NativeEndian.PutUint16(b, uint16(v))
	case 4:
		binary.NativeEndian.PutUint32(b, uint32(v))
	case 8:
		binary.NativeEndian.PutUint64(b, v)
	}
}

func getUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.NativeEndian.Uint16(b))
	case 4:
		return uint64(binary.NativeEndian.Uint32(b))
	default:
		return binary.NativeEndian.Uint64(b)
	}
}
