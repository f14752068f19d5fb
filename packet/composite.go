// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package packet

import (
	"fmt"

	"github.com/pkg/errors"
)

// Pair is two values written back to back.
type Pair[A, B any] struct {
	First  A
	Second B
}

func MakePair[A, B any](a A, b B) Pair[A, B] {
	return Pair[A, B]{First: a, Second: b}
}

func (pr Pair[A, B]) EncodeWire(p *Packet) error {
	if err := Write(p, pr.First); err != nil {
		return errors.Wrap(err, "pair: first")
	}
	return errors.Wrap(Write(p, pr.Second), "pair: second")
}

func (pr *Pair[A, B]) DecodeWire(p *Packet) error {
	if err := ReadInto(p, &pr.First); err != nil {
		return errors.Wrap(err, "pair: first")
	}
	return errors.Wrap(ReadInto(p, &pr.Second), "pair: second")
}

// Optional is a value that may be absent. On the wire it is a one byte flag,
// followed by the value only when the flag is set.
type Optional[T any] struct {
	Value T
	Valid bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

func (o Optional[T]) String() string {
	if !o.Valid {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.Value)
}

func (o Optional[T]) EncodeWire(p *Packet) error {
	WriteFixed(p, o.Valid)
	if !o.Valid {
		return nil
	}
	return errors.Wrap(Write(p, o.Value), "optional: value")
}

func (o *Optional[T]) DecodeWire(p *Packet) error {
	valid, err := ReadFixed[bool](p)
	if err != nil {
		return errors.Wrap(err, "optional: flag")
	}
	if !valid {
		*o = None[T]()
		return nil
	}
	var v T
	if err := ReadInto(p, &v); err != nil {
		return errors.Wrap(err, "optional: value")
	}
	*o = Some(v)
	return nil
}
