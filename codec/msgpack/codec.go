// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package msgpack is a codec backed by ugorji's msgpack implementation.
package msgpack // import "github.com/ssbc/wirestate/codec/msgpack"

import (
	"reflect"

	"github.com/pkg/errors"
	ugorji "github.com/ugorji/go/codec"

	cdc "github.com/ssbc/wirestate/codec"
)

var handle = newHandle()

func newHandle() *ugorji.MsgpackHandle {
	var h ugorji.MsgpackHandle
	h.WriteExt = true
	h.RawToString = true
	h.Canonical = true
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return &h
}

var _ cdc.NewCodecFunc = NewCodec

// NewCodec creates a msgpack codec that decodes into values of type tipe.
// With a nil tipe values decode into generic maps, slices and scalars.
func NewCodec(tipe interface{}) cdc.Codec {
	return &codec{target: cdc.TargetOf(tipe)}
}

type codec struct {
	target cdc.Target
}

func (*codec) Marshal(v interface{}) ([]byte, error) {
	return marshal(v)
}

func (c *codec) Unmarshal(data []byte) (interface{}, error) {
	if !c.target.Valid() {
		var v interface{}
		err := unmarshal(data, &v)
		return v, err
	}

	ptr := c.target.New()
	if err := unmarshal(data, ptr); err != nil {
		return nil, err
	}
	return c.target.Result(ptr), nil
}

func marshal(v interface{}) ([]byte, error) {
	var out []byte
	err := ugorji.NewEncoderBytes(&out, handle).Encode(v)
	return out, errors.Wrap(err, "msgpack: marshal failed")
}

func unmarshal(data []byte, ptr interface{}) error {
	err := ugorji.NewDecoderBytes(data, handle).Decode(ptr)
	return errors.Wrap(err, "msgpack: unmarshal failed")
}
