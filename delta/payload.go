// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package delta wraps sequences and maps so that every mutation is recorded
// in a changelog. Calculate drains the changelog into a Payload, which is
// written to a packet on the sending side and replayed with Read on the
// receiving side.
//
// Containers are not safe for concurrent use.
package delta

import (
	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/packet"
)

// ErrIndexOutOfRange is returned when a position does not exist in a Vector,
// either locally or while replaying a payload against diverged state.
var ErrIndexOutOfRange = errors.New("delta: index out of range")

// Entry is one change. A present value means insert or overwrite at Key,
// an absent value means remove at Key. On the wire it is Pair<K, Optional<V>>.
type Entry[K, V any] struct {
	Key   K
	Value packet.Optional[V]
}

func Addition[K, V any](key K, value V) Entry[K, V] {
	return Entry[K, V]{Key: key, Value: packet.Some(value)}
}

func Removal[K, V any](key K) Entry[K, V] {
	return Entry[K, V]{Key: key, Value: packet.None[V]()}
}

// IsRemoval returns true if the entry carries no value.
func (e Entry[K, V]) IsRemoval() bool { return !e.Value.Valid }

func (e Entry[K, V]) EncodeWire(p *packet.Packet) error {
	return packet.MakePair(e.Key, e.Value).EncodeWire(p)
}

func (e *Entry[K, V]) DecodeWire(p *packet.Packet) error {
	var pr packet.Pair[K, packet.Optional[V]]
	if err := pr.DecodeWire(p); err != nil {
		return errors.Wrap(err, "delta: entry")
	}
	e.Key, e.Value = pr.First, pr.Second
	return nil
}

// Payload is a list of entries in the order they have to be applied.
// It is written as a sequence of entries.
type Payload[K, V any] []Entry[K, V]

// ReadPayload consumes a payload from p.
func ReadPayload[K, V any](p *packet.Packet) (Payload[K, V], error) {
	pl, err := packet.Read[Payload[K, V]](p)
	return pl, errors.Wrap(err, "delta: reading payload")
}
