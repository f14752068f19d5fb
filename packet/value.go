// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package packet

import (
	"reflect"
	"sort"

	"github.com/pkg/errors"
)

// Encoder is implemented by types that write their own wire form.
type Encoder interface {
	EncodeWire(p *Packet) error
}

// Decoder is implemented by types that read their own wire form.
// It is expected on the pointer receiver.
type Decoder interface {
	DecodeWire(p *Packet) error
}

// WireCodec is a type that can both encode and decode itself.
type WireCodec interface {
	Encoder
	Decoder
}

var (
	encoderType = reflect.TypeOf((*Encoder)(nil)).Elem()
	decoderType = reflect.TypeOf((*Decoder)(nil)).Elem()
)

// Write appends v to the packet.
//
// Types implementing Encoder are asked to encode themselves. Otherwise v is
// decomposed structurally: Fixed leaves are copied raw, strings and slices get
// a count prefix, arrays do not, pointers are optionals, maps are a count
// followed by key/value pairs and structs are their exported fields in order.
func Write[T any](p *Packet, v T) error {
	return p.encode(reflect.ValueOf(&v).Elem())
}

// Read consumes a T from the cursor.
func Read[T any](p *Packet) (T, error) {
	var v T
	err := ReadInto(p, &v)
	return v, err
}

// ReadInto consumes a T from the cursor and stores it in out.
// Slices and maps are replaced, not appended to.
func ReadInto[T any](p *Packet, out *T) error {
	return p.decode(reflect.ValueOf(out).Elem())
}

// Encode is the non-generic form of Write.
func (p *Packet) Encode(v interface{}) error {
	if v == nil {
		return errors.Wrap(ErrUnsupportedType, "encode of untyped nil")
	}
	rv := reflect.ValueOf(v)
	cp := reflect.New(rv.Type()).Elem()
	cp.Set(rv)
	return p.encode(cp)
}

// Decode is the non-generic form of ReadInto. ptr must be a non-nil pointer.
func (p *Packet) Decode(ptr interface{}) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Wrapf(ErrUnsupportedType, "decode needs a non-nil pointer, got %T", ptr)
	}
	return p.decode(rv.Elem())
}

// Marshal encodes v into a fresh buffer.
func Marshal(v interface{}, lf LengthFormat) ([]byte, error) {
	p := New(WithLengthFormat(lf))
	if err := p.Encode(v); err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

// Unmarshal decodes data into ptr. Unlike Decode it fails if the value
// does not account for every byte of data.
func Unmarshal(data []byte, lf LengthFormat, ptr interface{}) error {
	p := FromBytes(data, WithLengthFormat(lf))
	if err := p.Decode(ptr); err != nil {
		return err
	}
	if left := p.Remaining(); left != 0 {
		return errors.Wrapf(ErrTrailingBytes, "%d of %d bytes unread", left, len(data))
	}
	return nil
}

func asEncoder(rv reflect.Value) (Encoder, bool) {
	t := rv.Type()
	if t.Implements(encoderType) {
		return rv.Interface().(Encoder), true
	}
	if !reflect.PointerTo(t).Implements(encoderType) {
		return nil, false
	}
	if rv.CanAddr() {
		return rv.Addr().Interface().(Encoder), true
	}
	cp := reflect.New(t)
	cp.Elem().Set(rv)
	return cp.Interface().(Encoder), true
}

func hasDecoder(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(decoderType)
}

func (p *Packet) encode(rv reflect.Value) error {
	k := rv.Kind()
	if k == reflect.Interface {
		if rv.IsNil() {
			return errors.Wrapf(ErrUnsupportedType, "nil %s", rv.Type())
		}
		return p.encode(rv.Elem())
	}
	if k != reflect.Pointer {
		if enc, ok := asEncoder(rv); ok {
			return enc.EncodeWire(p)
		}
	}

	if sz := fixedSize(k); sz > 0 {
		p.buf = append(p.buf, make([]byte, sz)...)
		putFixed(p.buf[len(p.buf)-sz:], rv)
		return nil
	}

	switch k {
	case reflect.String:
		return p.WriteString(rv.String())

	case reflect.Slice:
		n := rv.Len()
		if err := p.WriteLength(uint64(n)); err != nil {
			return errors.Wrapf(err, "writing length of %s", rv.Type())
		}
		if isByteSeq(rv.Type()) {
			p.buf = append(p.buf, rv.Bytes()...)
			return nil
		}
		return p.encodeElems(rv, n)

	case reflect.Array:
		return p.encodeElems(rv, rv.Len())

	case reflect.Map:
		if err := p.WriteLength(uint64(rv.Len())); err != nil {
			return errors.Wrapf(err, "writing size of %s", rv.Type())
		}
		keys := rv.MapKeys()
		sortKeys(keys)
		for _, key := range keys {
			if err := p.encode(key); err != nil {
				return errors.Wrapf(err, "writing key of %s", rv.Type())
			}
			if err := p.encode(rv.MapIndex(key)); err != nil {
				return errors.Wrapf(err, "writing value of %s", rv.Type())
			}
		}
		return nil

	case reflect.Pointer:
		present := !rv.IsNil()
		WriteFixed(p, present)
		if !present {
			return nil
		}
		return p.encode(rv.Elem())

	case reflect.Struct:
		t := rv.Type()
		if err := checkFields(t); err != nil {
			return err
		}
		for i := 0; i < t.NumField(); i++ {
			if err := p.encode(rv.Field(i)); err != nil {
				return errors.Wrapf(err, "writing %s.%s", t, t.Field(i).Name)
			}
		}
		return nil
	}

	return errors.Wrapf(ErrUnsupportedType, "cannot encode %s", rv.Type())
}

func (p *Packet) encodeElems(rv reflect.Value, n int) error {
	for i := 0; i < n; i++ {
		if err := p.encode(rv.Index(i)); err != nil {
			return errors.Wrapf(err, "writing element %d", i)
		}
	}
	return nil
}

func (p *Packet) decode(rv reflect.Value) error {
	k := rv.Kind()
	if k != reflect.Pointer && k != reflect.Interface && hasDecoder(rv.Type()) {
		return rv.Addr().Interface().(Decoder).DecodeWire(p)
	}

	if sz := fixedSize(k); sz > 0 {
		b, err := p.next(sz)
		if err != nil {
			return errors.Wrapf(err, "reading %s", rv.Type())
		}
		getFixed(b, rv)
		return nil
	}

	switch k {
	case reflect.String:
		s, err := p.ReadString()
		if err != nil {
			return err
		}
		rv.SetString(s)
		return nil

	case reflect.Slice:
		n, err := p.readCount()
		if err != nil {
			return errors.Wrapf(err, "reading length of %s", rv.Type())
		}
		if isByteSeq(rv.Type()) {
			b, err := p.next(n)
			if err != nil {
				return errors.Wrapf(err, "reading %s", rv.Type())
			}
			rv.SetBytes(append(make([]byte, 0, n), b...))
			return nil
		}
		s := reflect.MakeSlice(rv.Type(), 0, boundedCap(n, p.Remaining()))
		zero := reflect.Zero(rv.Type().Elem())
		for i := 0; i < n; i++ {
			at := p.cursor
			s = reflect.Append(s, zero)
			if err := p.decode(s.Index(i)); err != nil {
				return errors.Wrapf(err, "reading element %d of %d", i, n)
			}
			if p.cursor == at {
				if s, err = p.repeatElem(s, n); err != nil {
					return err
				}
				break
			}
		}
		rv.Set(s)
		return nil

	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := p.decode(rv.Index(i)); err != nil {
				return errors.Wrapf(err, "reading element %d", i)
			}
		}
		return nil

	case reflect.Map:
		n, err := p.readCount()
		if err != nil {
			return errors.Wrapf(err, "reading size of %s", rv.Type())
		}
		t := rv.Type()
		m := reflect.MakeMapWithSize(t, boundedCap(n, p.Remaining()))
		for i := 0; i < n; i++ {
			at := p.cursor
			key := reflect.New(t.Key()).Elem()
			if err := p.decode(key); err != nil {
				return errors.Wrapf(err, "reading key %d of %d", i, n)
			}
			val := reflect.New(t.Elem()).Elem()
			if err := p.decode(val); err != nil {
				return errors.Wrapf(err, "reading value %d of %d", i, n)
			}
			m.SetMapIndex(key, val)
			if p.cursor == at {
				// the remaining entries repeat this key
				break
			}
		}
		rv.Set(m)
		return nil

	case reflect.Pointer:
		present, err := ReadFixed[bool](p)
		if err != nil {
			return err
		}
		if !present {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		e := reflect.New(rv.Type().Elem())
		if err := p.decode(e.Elem()); err != nil {
			return err
		}
		rv.Set(e)
		return nil

	case reflect.Struct:
		t := rv.Type()
		if err := checkFields(t); err != nil {
			return err
		}
		for i := 0; i < t.NumField(); i++ {
			if err := p.decode(rv.Field(i)); err != nil {
				return errors.Wrapf(err, "reading %s.%s", t, t.Field(i).Name)
			}
		}
		return nil
	}

	return errors.Wrapf(ErrUnsupportedType, "cannot decode %s", rv.Type())
}

// checkFields refuses structs with unexported fields before any byte is
// written or read, so a failed struct leaves no partial value behind.
func checkFields(t reflect.Type) error {
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.PkgPath != "" {
			return errors.Wrapf(ErrUnsupportedType, "%s has unexported field %s", t, f.Name)
		}
	}
	return nil
}

// isByteSeq reports slices of plain byte-sized integers that carry no hooks,
// which can be copied in one go.
func isByteSeq(t reflect.Type) bool {
	e := t.Elem()
	if e.Kind() != reflect.Uint8 {
		return false
	}
	return !e.Implements(encoderType) && !reflect.PointerTo(e).Implements(encoderType) && !hasDecoder(e)
}

// repeatElem finishes a sequence whose last element consumed no bytes. Every
// further element decodes from the same position to the same value, so they
// are copied instead of decoded. Elements without memory are free to hold in
// any number; others are held to the bytes left, like any other count.
func (p *Packet) repeatElem(s reflect.Value, n int) (reflect.Value, error) {
	t, have := s.Type(), s.Len()
	if t.Elem().Size() == 0 {
		return reflect.MakeSlice(t, n, n), nil
	}
	if n-have > p.Remaining() {
		return s, errors.Wrapf(ErrLengthOverflow, "%d elements of %s carry no bytes", n, t.Elem())
	}
	last := s.Index(have - 1)
	out := reflect.MakeSlice(t, n, n)
	reflect.Copy(out, s)
	for i := have; i < n; i++ {
		out.Index(i).Set(last)
	}
	return out, nil
}

// boundedCap keeps adversarial counts from turning into huge allocations:
// every element takes at least one byte, except zero-sized ones.
func boundedCap(n, remaining int) int {
	if n > remaining {
		return remaining
	}
	return n
}

// sortKeys orders map keys of ordered kinds so maps encode deterministically.
func sortKeys(keys []reflect.Value) {
	if len(keys) < 2 {
		return
	}
	var less func(a, b reflect.Value) bool
	switch keys[0].Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		less = func(a, b reflect.Value) bool { return a.Int() < b.Int() }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		less = func(a, b reflect.Value) bool { return a.Uint() < b.Uint() }
	case reflect.Float32, reflect.Float64:
		less = func(a, b reflect.Value) bool { return a.Float() < b.Float() }
	case reflect.String:
		less = func(a, b reflect.Value) bool { return a.String() < b.String() }
	case reflect.Bool:
		less = func(a, b reflect.Value) bool { return !a.Bool() && b.Bool() }
	default:
		return
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
}
