// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package codec defines how values are turned into bytes for storage,
// independent of the encoding used.
package codec // import "github.com/ssbc/wirestate/codec"

import (
	"reflect"

	"github.com/pkg/errors"
)

// NewCodecFunc builds a codec that decodes into values of the type of tipe.
type NewCodecFunc func(tipe interface{}) Codec

type Codec interface {
	// Marshal encodes a single value and returns the serialized byte slice.
	Marshal(value interface{}) ([]byte, error)

	// Unmarshal decodes and returns the value stored in data.
	Unmarshal(data []byte) (interface{}, error)
}

// ErrNoType is returned by codecs that cannot decode without a target type.
var ErrNoType = errors.New("codec: no target type")

// Target records the decode type of a codec. If tipe is a pointer,
// decoded values are returned as pointers too.
type Target struct {
	Type  reflect.Type
	AsPtr bool
}

// TargetOf returns the Target for tipe. A nil tipe yields the zero Target.
func TargetOf(tipe interface{}) Target {
	if tipe == nil {
		return Target{}
	}
	t := reflect.TypeOf(tipe)
	isPtr := t.Kind() == reflect.Pointer
	if isPtr {
		t = t.Elem()
	}
	return Target{Type: t, AsPtr: isPtr}
}

// Valid returns false for the zero Target.
func (t Target) Valid() bool { return t.Type != nil }

// New returns a pointer to a fresh zero value of the target type.
func (t Target) New() interface{} {
	return reflect.New(t.Type).Interface()
}

// Result turns a pointer made by New into what the codec hands out.
func (t Target) Result(ptr interface{}) interface{} {
	if t.AsPtr {
		return ptr
	}
	return reflect.ValueOf(ptr).Elem().Interface()
}
