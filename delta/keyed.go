// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package delta

import (
	"iter"

	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/packet"
)

type change[K any] struct {
	add bool
	key K
}

// keyOrder puts the keys of a keyed container in iteration order.
type keyOrder[K comparable] interface {
	sort([]K)
}

// keyed is the state shared by Map and UMap. Values are boxed so that Index
// can hand out a stable pointer. The zero value is ready to use.
type keyed[K comparable, V any, O keyOrder[K]] struct {
	vals  map[K]*V
	log   []change[K]
	order O
}

// Index returns a pointer to the value at key, creating a zero value first
// if the key is missing. Every call records an addition, even if the caller
// only reads through the pointer. Use Get for lookups that must not show up
// in the next payload.
func (m *keyed[K, V, O]) Index(key K) *V {
	m.log = append(m.log, change[K]{add: true, key: key})
	return m.slot(key)
}

// Set stores value at key and records an addition.
func (m *keyed[K, V, O]) Set(key K, value V) {
	*m.Index(key) = value
}

// Erase removes key and records a removal, whether or not the key was present.
// It returns true if a value was removed.
func (m *keyed[K, V, O]) Erase(key K) bool {
	m.log = append(m.log, change[K]{key: key})
	return m.remove(key)
}

func (m *keyed[K, V, O]) EraseUntracked(key K) bool {
	return m.remove(key)
}

func (m *keyed[K, V, O]) slot(key K) *V {
	if v, ok := m.vals[key]; ok {
		return v
	}
	if m.vals == nil {
		m.vals = make(map[K]*V)
	}
	v := new(V)
	m.vals[key] = v
	return v
}

func (m *keyed[K, V, O]) remove(key K) bool {
	if _, ok := m.vals[key]; !ok {
		return false
	}
	delete(m.vals, key)
	return true
}

// Get looks up key without recording anything.
func (m *keyed[K, V, O]) Get(key K) (V, bool) {
	if v, ok := m.vals[key]; ok {
		return *v, true
	}
	var zero V
	return zero, false
}

func (m *keyed[K, V, O]) Has(key K) bool {
	_, ok := m.vals[key]
	return ok
}

func (m *keyed[K, V, O]) Len() int { return len(m.vals) }

func (m *keyed[K, V, O]) Empty() bool { return len(m.vals) == 0 }

// Clear drops all values without recording anything.
func (m *keyed[K, V, O]) Clear() {
	clear(m.vals)
}

// Keys returns the keys in iteration order.
func (m *keyed[K, V, O]) Keys() []K {
	ks := make([]K, 0, len(m.vals))
	for k := range m.vals {
		ks = append(ks, k)
	}
	m.order.sort(ks)
	return ks
}

func (m *keyed[K, V, O]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range m.Keys() {
			if !yield(k, *m.vals[k]) {
				return
			}
		}
	}
}

// Items returns a copy of the contents.
func (m *keyed[K, V, O]) Items() map[K]V {
	out := make(map[K]V, len(m.vals))
	for k, v := range m.vals {
		out[k] = *v
	}
	return out
}

func (m *keyed[K, V, O]) Dirty() bool { return len(m.log) > 0 }

func (m *keyed[K, V, O]) Pending() int { return len(m.log) }

// Calculate drains the changelog into a payload. Additions carry the value
// held at key now. An addition for a key that no longer exists is left out;
// the removal recorded after it already describes the outcome.
func (m *keyed[K, V, O]) Calculate() Payload[K, V] {
	pl := m.payload()
	m.log = m.log[:0]
	return pl
}

func (m *keyed[K, V, O]) payload() Payload[K, V] {
	pl := make(Payload[K, V], 0, len(m.log))
	for _, c := range m.log {
		if !c.add {
			pl = append(pl, Removal[K, V](c.key))
			continue
		}
		if v, ok := m.vals[c.key]; ok {
			pl = append(pl, Addition(c.key, *v))
		}
	}
	return pl
}

// WriteDelta writes the pending changes to p. The changelog is only drained
// if the payload was written.
func (m *keyed[K, V, O]) WriteDelta(p *packet.Packet) error {
	if err := m.WritePending(p); err != nil {
		return err
	}
	m.ClearPending()
	return nil
}

// WritePending writes the pending changes to p and keeps them.
func (m *keyed[K, V, O]) WritePending(p *packet.Packet) error {
	return errors.Wrap(packet.Write(p, m.payload()), "delta: writing map payload")
}

// ClearPending drops the changelog.
func (m *keyed[K, V, O]) ClearPending() { m.log = m.log[:0] }

// Read consumes a payload from p and applies it.
func (m *keyed[K, V, O]) Read(p *packet.Packet) error {
	pl, err := ReadPayload[K, V](p)
	if err != nil {
		return err
	}
	m.Apply(pl)
	return nil
}

// Apply replays a payload without recording it: present values are inserted
// or assigned, absent values erase their key.
func (m *keyed[K, V, O]) Apply(pl Payload[K, V]) {
	for _, e := range pl {
		if v, ok := e.Value.Get(); ok {
			*m.slot(e.Key) = v
		} else {
			m.remove(e.Key)
		}
	}
}

// EncodeWire writes the contents in iteration order as a map: a count
// followed by key/value pairs. The changelog is not part of it.
func (m *keyed[K, V, O]) EncodeWire(p *packet.Packet) error {
	if err := p.WriteLength(uint64(len(m.vals))); err != nil {
		return errors.Wrap(err, "delta: writing map size")
	}
	for _, k := range m.Keys() {
		if err := packet.Write(p, k); err != nil {
			return errors.Wrap(err, "delta: writing map key")
		}
		if err := packet.Write(p, *m.vals[k]); err != nil {
			return errors.Wrap(err, "delta: writing map value")
		}
	}
	return nil
}

// DecodeWire replaces the contents and discards the changelog. The container
// is left untouched if the input is not a complete map.
func (m *keyed[K, V, O]) DecodeWire(p *packet.Packet) error {
	n, err := p.ReadLength()
	if err != nil {
		return errors.Wrap(err, "delta: reading map size")
	}
	vals := make(map[K]*V, min(n, uint64(p.Remaining())))
	for i := uint64(0); i < n; i++ {
		at := p.Tell()
		pr, err := packet.Read[packet.Pair[K, V]](p)
		if err != nil {
			return errors.Wrapf(err, "delta: reading map entry %d of %d", i, n)
		}
		vals[pr.First] = &pr.Second
		if p.Tell() == at {
			// the remaining entries repeat this key
			break
		}
	}
	m.vals = vals
	m.log = m.log[:0]
	return nil
}
