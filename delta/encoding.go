// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package delta

import (
	"encoding"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/packet"
)

// binaryFormat is the count width of MarshalBinary. It is fixed so that the
// bytes decode without knowing how they were written.
const binaryFormat = packet.UInt64

var (
	_ encoding.BinaryMarshaler   = Vector[int]{}
	_ encoding.BinaryUnmarshaler = (*Vector[int])(nil)
	_ json.Marshaler             = Vector[int]{}
	_ json.Unmarshaler           = (*Vector[int])(nil)

	_ encoding.BinaryMarshaler   = Map[string, int]{}
	_ encoding.BinaryUnmarshaler = (*Map[string, int])(nil)
	_ json.Marshaler             = UMap[string, int]{}
	_ json.Unmarshaler           = (*UMap[string, int])(nil)
)

// MarshalBinary returns the snapshot form of the elements, used by codecs
// like msgpack and cbor that do not know about wire hooks.
func (v Vector[T]) MarshalBinary() ([]byte, error) {
	data, err := packet.Marshal(v.items, binaryFormat)
	return data, errors.Wrap(err, "delta: marshal vector")
}

// UnmarshalBinary replaces the elements and discards the changelog.
func (v *Vector[T]) UnmarshalBinary(data []byte) error {
	var items []T
	if err := packet.Unmarshal(data, binaryFormat, &items); err != nil {
		return errors.Wrap(err, "delta: unmarshal vector")
	}
	v.items, v.log = items, v.log[:0]
	return nil
}

// MarshalJSON encodes the elements as an array.
func (v Vector[T]) MarshalJSON() ([]byte, error) {
	if v.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v.items)
}

func (v *Vector[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "delta: unmarshal vector")
	}
	v.items, v.log = items, v.log[:0]
	return nil
}

func (m keyed[K, V, O]) MarshalBinary() ([]byte, error) {
	p := packet.New(packet.WithLengthFormat(binaryFormat))
	if err := m.EncodeWire(p); err != nil {
		return nil, errors.Wrap(err, "delta: marshal map")
	}
	return p.Bytes(), nil
}

// UnmarshalBinary replaces the contents and discards the changelog. The
// container is left untouched on error.
func (m *keyed[K, V, O]) UnmarshalBinary(data []byte) error {
	var fresh keyed[K, V, O]
	p := packet.FromBytes(data, packet.WithLengthFormat(binaryFormat))
	if err := fresh.DecodeWire(p); err != nil {
		return errors.Wrap(err, "delta: unmarshal map")
	}
	if left := p.Remaining(); left != 0 {
		return errors.Wrapf(packet.ErrTrailingBytes, "delta: unmarshal map: %d bytes unread", left)
	}
	m.vals, m.log = fresh.vals, m.log[:0]
	return nil
}

// MarshalJSON encodes the contents as an object, which limits keys to what
// encoding/json accepts as map keys.
func (m keyed[K, V, O]) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Items())
}

func (m *keyed[K, V, O]) UnmarshalJSON(data []byte) error {
	var items map[K]V
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "delta: unmarshal map")
	}
	vals := make(map[K]*V, len(items))
	for k, v := range items {
		vals[k] = &v
	}
	m.vals, m.log = vals, m.log[:0]
	return nil
}
