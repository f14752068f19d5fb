// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package msgpack

import (
	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/packet"
)

// Value carries a V inside a packet as a length-prefixed msgpack document.
// It lets types the packet codec cannot decompose, like interfaces or
// foreign types without wire hooks, take part in payloads and snapshots.
// Unexported fields are skipped by msgpack as well.
type Value[V any] struct {
	V V
}

func Wrap[V any](v V) Value[V] { return Value[V]{V: v} }

func (w Value[V]) EncodeWire(p *packet.Packet) error {
	data, err := marshal(w.V)
	if err != nil {
		return err
	}
	return errors.Wrap(p.WriteBytes(data), "msgpack: value")
}

func (w *Value[V]) DecodeWire(p *packet.Packet) error {
	data, err := p.ReadBytes()
	if err != nil {
		return errors.Wrap(err, "msgpack: value")
	}
	var v V
	if err := unmarshal(data, &v); err != nil {
		return err
	}
	w.V = v
	return nil
}
