// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package codectest holds tests every codec.Codec has to pass.
package codectest // import "github.com/ssbc/wirestate/codec/codectest"

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssbc/wirestate/codec"
)

type Message struct {
	Author string
	Seq    uint64
	Tags   []string
	Score  float64
}

func sample() Message {
	return Message{Author: "@alice", Seq: 42, Tags: []string{"a", "b"}, Score: 0.5}
}

// Run runs the round trip tests against codecs made by newCodec.
func Run(t *testing.T, newCodec codec.NewCodecFunc) {
	t.Run("Value", func(t *testing.T) {
		r := require.New(t)
		c := newCodec(Message{})

		data, err := c.Marshal(sample())
		r.NoError(err)

		v, err := c.Unmarshal(data)
		r.NoError(err)
		r.Equal(sample(), v)
	})

	t.Run("Pointer", func(t *testing.T) {
		r := require.New(t)
		c := newCodec(&Message{})

		msg := sample()
		data, err := c.Marshal(&msg)
		r.NoError(err)

		v, err := c.Unmarshal(data)
		r.NoError(err)
		r.IsType(&Message{}, v)
		r.Equal(&msg, v)
	})

	t.Run("Deterministic", func(t *testing.T) {
		r := require.New(t)
		c := newCodec(map[string]int{})

		m := map[string]int{"z": 1, "a": 2, "m": 3}
		first, err := c.Marshal(m)
		r.NoError(err)
		for i := 0; i < 10; i++ {
			again, err := c.Marshal(m)
			r.NoError(err)
			r.Equal(first, again)
		}

		v, err := c.Unmarshal(first)
		r.NoError(err)
		r.Equal(m, v)
	})

	t.Run("Truncated", func(t *testing.T) {
		r := require.New(t)
		c := newCodec(Message{})

		data, err := c.Marshal(sample())
		r.NoError(err)

		_, err = c.Unmarshal(data[:len(data)-1])
		r.Error(err)
	})
}
