// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package cbor

import (
	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/packet"
)

// Value carries a V inside a packet as a length-prefixed CBOR document.
type Value[V any] struct {
	V V
}

func Wrap[V any](v V) Value[V] { return Value[V]{V: v} }

func (w Value[V]) EncodeWire(p *packet.Packet) error {
	data, err := encMode.Marshal(w.V)
	if err != nil {
		return errors.Wrap(err, "cbor: value")
	}
	return errors.Wrap(p.WriteBytes(data), "cbor: value")
}

func (w *Value[V]) DecodeWire(p *packet.Packet) error {
	data, err := p.ReadBytes()
	if err != nil {
		return errors.Wrap(err, "cbor: value")
	}
	var v V
	if err := decMode.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "cbor: value")
	}
	w.V = v
	return nil
}
