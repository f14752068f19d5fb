// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package cbor is a codec backed by fxamacker/cbor. Encoding uses the core
// deterministic profile, so equal values always produce equal bytes.
package cbor // import "github.com/ssbc/wirestate/codec/cbor"

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	cdc "github.com/ssbc/wirestate/codec"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cbor: encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic("cbor: decoder initialization failed: " + err.Error())
	}
}

var _ cdc.NewCodecFunc = NewCodec

// NewCodec creates a cbor codec that decodes into values of type tipe.
// With a nil tipe values decode into generic maps, slices and scalars.
func NewCodec(tipe interface{}) cdc.Codec {
	return &codec{target: cdc.TargetOf(tipe)}
}

type codec struct {
	target cdc.Target
}

func (*codec) Marshal(v interface{}) ([]byte, error) {
	data, err := encMode.Marshal(v)
	return data, errors.Wrap(err, "cbor: marshal failed")
}

func (c *codec) Unmarshal(data []byte) (interface{}, error) {
	if !c.target.Valid() {
		var v interface{}
		err := decMode.Unmarshal(data, &v)
		return v, errors.Wrap(err, "cbor: unmarshal failed")
	}

	ptr := c.target.New()
	if err := decMode.Unmarshal(data, ptr); err != nil {
		return nil, errors.Wrap(err, "cbor: unmarshal failed")
	}
	return c.target.Result(ptr), nil
}
