// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package wire is a codec that uses the packet format itself. It has no
// type tags, so it always needs a target type.
package wire // import "github.com/ssbc/wirestate/codec/wire"

import (
	"reflect"

	"github.com/pkg/errors"

	cdc "github.com/ssbc/wirestate/codec"
	"github.com/ssbc/wirestate/packet"
)

var _ cdc.NewCodecFunc = NewCodec

// NewCodec creates a codec using the default length format.
func NewCodec(tipe interface{}) cdc.Codec {
	return NewCodecWithFormat(packet.DefaultLengthFormat)(tipe)
}

// NewCodecWithFormat returns a constructor for codecs writing counts in lf.
func NewCodecWithFormat(lf packet.LengthFormat) cdc.NewCodecFunc {
	return func(tipe interface{}) cdc.Codec {
		return &codec{target: cdc.TargetOf(tipe), lf: lf}
	}
}

type codec struct {
	target cdc.Target
	lf     packet.LengthFormat
}

// Marshal encodes v. Pointers to the target type are written as the value
// they point to, so the same bytes decode either way.
func (c *codec) Marshal(v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && c.target.Valid() && rv.Type().Elem() == c.target.Type {
		if rv.IsNil() {
			return nil, errors.Errorf("wire: marshal of nil %s", rv.Type())
		}
		v = rv.Elem().Interface()
	}
	data, err := packet.Marshal(v, c.lf)
	return data, errors.Wrap(err, "wire: marshal failed")
}

func (c *codec) Unmarshal(data []byte) (interface{}, error) {
	if !c.target.Valid() {
		return nil, cdc.ErrNoType
	}
	ptr := c.target.New()
	if err := packet.Unmarshal(data, c.lf, ptr); err != nil {
		return nil, errors.Wrap(err, "wire: unmarshal failed")
	}
	return c.target.Result(ptr), nil
}
