// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package wire

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	cdc "github.com/ssbc/wirestate/codec"
	"github.com/ssbc/wirestate/codec/codectest"
	"github.com/ssbc/wirestate/delta"
	"github.com/ssbc/wirestate/packet"
)

func TestCodec(t *testing.T) {
	codectest.Run(t, NewCodec)
}

func TestNeedsType(t *testing.T) {
	_, err := NewCodec(nil).Unmarshal([]byte{0})
	require.True(t, errors.Is(err, cdc.ErrNoType))
}

func TestLengthFormat(t *testing.T) {
	r := require.New(t)

	narrow := NewCodecWithFormat(packet.UInt8)("")
	data, err := narrow.Marshal("hey")
	r.NoError(err)
	r.Equal([]byte{3, 'h', 'e', 'y'}, data)

	_, err = NewCodec("").Unmarshal(data)
	r.Error(err, "a reader with a wider format must not accept the bytes")

	_, err = narrow.Marshal(strings.Repeat("x", 256))
	r.True(errors.Is(err, packet.ErrLengthOverflow))
}

func TestDeltaSnapshot(t *testing.T) {
	r := require.New(t)
	c := NewCodec(&delta.Vector[string]{})

	v := delta.NewVector("a", "b")
	v.PushBack("c")
	data, err := c.Marshal(v)
	r.NoError(err)

	got, err := c.Unmarshal(data)
	r.NoError(err)
	r.True(v.Equal(got.(*delta.Vector[string])))
	r.True(v.Dirty(), "snapshots leave the changelog alone")
}
