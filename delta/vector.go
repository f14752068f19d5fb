// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package delta

import (
	"iter"
	"reflect"
	"slices"

	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/packet"
)

// vchange is a changelog record of a Vector. Additions keep the value that
// was inserted: later edits shift positions, so the value found at the same
// index when the log is drained may be a different element.
type vchange[T any] struct {
	add   bool
	index int
	value T
}

// Vector is a sequence that records insertions and removals by position.
//
// Payload indices are positions at the time of each mutation. A receiver
// that applies them must hold the same sequence the sender held at its
// previous flush; diverged state is not detected and yields a different
// sequence, or ErrIndexOutOfRange if a position does not exist.
type Vector[T any] struct {
	items []T
	log   []vchange[T]
}

// NewVector returns a vector holding a copy of items. The initial items are
// not part of the changelog.
func NewVector[T any](items ...T) *Vector[T] {
	return &Vector[T]{items: slices.Clone(items)}
}

func (v *Vector[T]) PushBack(x T) { v.insert(len(v.items), x, true) }

func (v *Vector[T]) PushBackUntracked(x T) { v.insert(len(v.items), x, false) }

// Insert places x at position i, shifting later elements up. i may equal Len.
func (v *Vector[T]) Insert(i int, x T) error {
	if i < 0 || i > len(v.items) {
		return errors.Wrapf(ErrIndexOutOfRange, "insert at %d into %d elements", i, len(v.items))
	}
	v.insert(i, x, true)
	return nil
}

func (v *Vector[T]) InsertUntracked(i int, x T) error {
	if i < 0 || i > len(v.items) {
		return errors.Wrapf(ErrIndexOutOfRange, "insert at %d into %d elements", i, len(v.items))
	}
	v.insert(i, x, false)
	return nil
}

// Erase removes the element at position i.
func (v *Vector[T]) Erase(i int) error {
	if i < 0 || i >= len(v.items) {
		return errors.Wrapf(ErrIndexOutOfRange, "erase at %d of %d elements", i, len(v.items))
	}
	v.erase(i, true)
	return nil
}

func (v *Vector[T]) EraseUntracked(i int) error {
	if i < 0 || i >= len(v.items) {
		return errors.Wrapf(ErrIndexOutOfRange, "erase at %d of %d elements", i, len(v.items))
	}
	v.erase(i, false)
	return nil
}

// Set replaces the element at position i. The payload has no update entry
// for positions, so this is recorded as a removal followed by an addition.
func (v *Vector[T]) Set(i int, x T) error {
	if err := v.Erase(i); err != nil {
		return err
	}
	v.insert(i, x, true)
	return nil
}

func (v *Vector[T]) insert(i int, x T, track bool) {
	v.items = slices.Insert(v.items, i, x)
	if track {
		v.log = append(v.log, vchange[T]{add: true, index: i, value: x})
	}
}

func (v *Vector[T]) erase(i int, track bool) {
	v.items = slices.Delete(v.items, i, i+1)
	if track {
		v.log = append(v.log, vchange[T]{index: i})
	}
}

// At returns the element at position i and panics if it does not exist.
func (v *Vector[T]) At(i int) T { return v.items[i] }

func (v *Vector[T]) Front() T { return v.items[0] }

func (v *Vector[T]) Back() T { return v.items[len(v.items)-1] }

func (v *Vector[T]) Len() int { return len(v.items) }

func (v *Vector[T]) Cap() int { return cap(v.items) }

// Reserve makes room for n more elements.
func (v *Vector[T]) Reserve(n int) { v.items = slices.Grow(v.items, n) }

// Clear drops all elements without recording anything.
func (v *Vector[T]) Clear() { v.items = v.items[:0] }

// Items returns a copy of the elements.
func (v *Vector[T]) Items() []T { return slices.Clone(v.items) }

func (v *Vector[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, x := range v.items {
			if !yield(i, x) {
				return
			}
		}
	}
}

// Equal compares the elements of both vectors. Changelogs are ignored.
func (v *Vector[T]) Equal(o *Vector[T]) bool {
	if len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if !reflect.DeepEqual(v.items[i], o.items[i]) {
			return false
		}
	}
	return true
}

// Dirty returns true if there are changes that were not calculated yet.
func (v *Vector[T]) Dirty() bool { return len(v.log) > 0 }

// Pending returns the number of changelog records.
func (v *Vector[T]) Pending() int { return len(v.log) }

// Calculate drains the changelog into a payload, in the order the changes
// were made.
func (v *Vector[T]) Calculate() Payload[uint64, T] {
	pl := v.payload()
	v.log = v.log[:0]
	return pl
}

func (v *Vector[T]) payload() Payload[uint64, T] {
	pl := make(Payload[uint64, T], 0, len(v.log))
	for _, c := range v.log {
		if c.add {
			pl = append(pl, Addition(uint64(c.index), c.value))
		} else {
			pl = append(pl, Removal[uint64, T](uint64(c.index)))
		}
	}
	return pl
}

// WriteDelta writes the pending changes to p. The changelog is only drained
// if the payload was written.
func (v *Vector[T]) WriteDelta(p *packet.Packet) error {
	if err := v.WritePending(p); err != nil {
		return err
	}
	v.ClearPending()
	return nil
}

// WritePending writes the pending changes to p and keeps them.
func (v *Vector[T]) WritePending(p *packet.Packet) error {
	return errors.Wrap(packet.Write(p, v.payload()), "delta: writing vector payload")
}

func (v *Vector[T]) ClearPending() { v.log = v.log[:0] }

// Read consumes a payload from p and applies it.
func (v *Vector[T]) Read(p *packet.Packet) error {
	pl, err := ReadPayload[uint64, T](p)
	if err != nil {
		return err
	}
	return v.Apply(pl)
}

// Apply replays a payload without recording it. It stops at the first entry
// whose position does not exist; earlier entries stay applied.
func (v *Vector[T]) Apply(pl Payload[uint64, T]) error {
	for n, e := range pl {
		if e.Key > uint64(len(v.items)) || (e.IsRemoval() && e.Key == uint64(len(v.items))) {
			return errors.Wrapf(ErrIndexOutOfRange, "entry %d: index %d with %d elements", n, e.Key, len(v.items))
		}
		i := int(e.Key)
		if x, ok := e.Value.Get(); ok {
			v.insert(i, x, false)
		} else {
			v.erase(i, false)
		}
	}
	return nil
}

// EncodeWire writes the elements as a plain sequence. The changelog is not
// part of it.
func (v *Vector[T]) EncodeWire(p *packet.Packet) error {
	return packet.Write(p, v.items)
}

// DecodeWire replaces the elements and discards the changelog.
func (v *Vector[T]) DecodeWire(p *packet.Packet) error {
	items, err := packet.Read[[]T](p)
	if err != nil {
		return errors.Wrap(err, "delta: reading vector")
	}
	v.items = items
	v.log = v.log[:0]
	return nil
}
