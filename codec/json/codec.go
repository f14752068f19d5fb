// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package json // import "github.com/ssbc/wirestate/codec/json"

import (
	"encoding/json"

	"github.com/pkg/errors"

	cdc "github.com/ssbc/wirestate/codec"
)

var _ cdc.NewCodecFunc = NewCodec

// NewCodec creates a json codec that decodes into values of type tipe.
// With a nil tipe values decode into the generic json types.
func NewCodec(tipe interface{}) cdc.Codec {
	return &codec{target: cdc.TargetOf(tipe)}
}

type codec struct {
	target cdc.Target
}

func (*codec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	return data, errors.Wrap(err, "json: marshal failed")
}

func (c *codec) Unmarshal(data []byte) (interface{}, error) {
	if !c.target.Valid() {
		var v interface{}
		err := json.Unmarshal(data, &v)
		return v, errors.Wrap(err, "json: unmarshal failed")
	}

	ptr := c.target.New()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, errors.Wrap(err, "json: unmarshal failed")
	}
	return c.target.Result(ptr), nil
}
